package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunOption configures a run loop or a single round.
type RunOption func(*runOptions)

type runOptions struct {
	maxIterations *int
	raiseOnError  bool
	flow          *Flow
	agent         *Agent
	controller    ControllerFactory
}

// WithMaxIterations caps the number of rounds. n <= 0 means unbounded.
func WithMaxIterations(n int) RunOption {
	return func(o *runOptions) {
		if n < 0 {
			n = 0
		}
		o.maxIterations = &n
	}
}

// WithUnboundedIterations lifts the round cap from Settings.
func WithUnboundedIterations() RunOption {
	return WithMaxIterations(0)
}

// WithoutRaiseOnError makes a run that ends FAILED return a nil result
// instead of an ErrTaskFailed error.
func WithoutRaiseOnError() RunOption {
	return func(o *runOptions) { o.raiseOnError = false }
}

// InFlow runs inside f instead of the ambient flow.
func InFlow(f *Flow) RunOption {
	return func(o *runOptions) { o.flow = f }
}

// ByAgent restricts every round to a.
func ByAgent(a *Agent) RunOption {
	return func(o *runOptions) { o.agent = a }
}

// UsingController overrides Settings.Controller.
func UsingController(factory ControllerFactory) RunOption {
	return func(o *runOptions) { o.controller = factory }
}

type runConfig struct {
	max     int
	raise   bool
	flow    *Flow
	agents  []*Agent
	factory ControllerFactory
}

// runConfig resolves options against the ambient settings and flow. Without
// a flow, a full run gets an implicit one unless StrictFlowContext is set; a
// single round always requires one.
func (t *Task) runConfig(ctx context.Context, opts []RunOption, requireFlow bool) (runConfig, error) {
	o := runOptions{raiseOnError: true}
	for _, opt := range opts {
		opt(&o)
	}

	s := SettingsFrom(ctx)
	rc := runConfig{max: s.MaxTaskIterations, raise: o.raiseOnError}
	if o.maxIterations != nil {
		rc.max = *o.maxIterations
	}

	rc.flow = o.flow
	if rc.flow == nil {
		rc.flow = FlowFrom(ctx)
	}
	if rc.flow == nil {
		switch {
		case requireFlow:
			return rc, configErrorf("%s must be run inside a flow", t.FriendlyName())
		case s.StrictFlowContext:
			return rc, configErrorf("%s has no flow and strict flow context is enabled", t.FriendlyName())
		}
		rc.flow = NewFlow("flow-"+t.id, "")
		if err := rc.flow.AddTask(t); err != nil {
			return rc, err
		}
	}

	if o.agent != nil {
		rc.agents = []*Agent{o.agent}
	}

	rc.factory = o.controller
	if rc.factory == nil {
		rc.factory = s.Controller
	}
	if rc.factory == nil {
		return rc, configErrorf("no controller configured to run %s", t.FriendlyName())
	}
	return rc, nil
}

type stepState int

const (
	stepPending stepState = iota
	stepDone
	stepFailed
)

type stepResult struct {
	state  stepState
	result any
	err    error
}

// step decides, after the given number of rounds, whether the loop needs
// another round or has finished.
func (t *Task) step(rounds int, rc runConfig) stepResult {
	switch t.Status() {
	case Incomplete:
		if rc.max > 0 && rounds >= rc.max {
			return stepResult{state: stepFailed, err: &Error{
				Kind: ErrIterationLimit,
				Msg:  fmt.Sprintf("%s did not complete within %d iterations", t.FriendlyName(), rc.max),
			}}
		}
		return stepResult{state: stepPending}
	case Successful:
		return stepResult{state: stepDone, result: t.Result()}
	case Failed:
		if rc.raise {
			return stepResult{state: stepFailed, err: &Error{
				Kind: ErrTaskFailed,
				Msg:  fmt.Sprintf("%s failed: %s", t.FriendlyName(), t.ErrorMessage()),
			}}
		}
	}
	return stepResult{state: stepDone}
}

// Run drives t through rounds until it completes and returns its result.
// A skipped task, or a failed one with WithoutRaiseOnError, yields nil.
func (t *Task) Run(ctx context.Context, opts ...RunOption) (any, error) {
	rc, err := t.runConfig(ctx, opts, false)
	if err != nil {
		return nil, err
	}

	for rounds := 0; ; rounds++ {
		s := t.step(rounds, rc)
		switch s.state {
		case stepDone:
			return s.result, nil
		case stepFailed:
			return nil, s.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.round(ctx, rc); err != nil {
			return nil, err
		}
	}
}

// Future is the pending outcome of RunAsync.
type Future struct {
	done   chan struct{}
	result any
	err    error
}

// Done is closed once the run has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the run has finished and returns its outcome.
func (f *Future) Wait() (any, error) {
	<-f.done
	return f.result, f.err
}

// RunAsync is Run with each round handed to Controller.RunOnceAsync. Rounds
// stay strictly sequential.
func (t *Task) RunAsync(ctx context.Context, opts ...RunOption) *Future {
	f := &Future{done: make(chan struct{})}

	rc, err := t.runConfig(ctx, opts, false)
	if err != nil {
		f.err = err
		close(f.done)
		return f
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for rounds := 0; ; rounds++ {
			s := t.step(rounds, rc)
			switch s.state {
			case stepDone:
				f.result = s.result
				return nil
			case stepFailed:
				return s.err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := <-t.roundAsync(gctx, rc); err != nil {
				return err
			}
		}
	})
	go func() {
		f.err = g.Wait()
		close(f.done)
	}()
	return f
}

// RunOnce runs a single round. It requires a flow.
func (t *Task) RunOnce(ctx context.Context, opts ...RunOption) error {
	rc, err := t.runConfig(ctx, opts, true)
	if err != nil {
		return err
	}
	return t.round(ctx, rc)
}

// RunOnceAsync runs a single round through Controller.RunOnceAsync.
func (t *Task) RunOnceAsync(ctx context.Context, opts ...RunOption) <-chan error {
	rc, err := t.runConfig(ctx, opts, true)
	if err != nil {
		out := make(chan error, 1)
		out <- err
		close(out)
		return out
	}
	return t.roundAsync(ctx, rc)
}

func (t *Task) round(ctx context.Context, rc runConfig) error {
	unlock := rc.flow.lockTask(t.id)
	defer unlock()

	c, err := rc.factory([]*Task{t}, rc.agents, rc.flow)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	return c.RunOnce(WithFlow(ctx, rc.flow))
}

func (t *Task) roundAsync(ctx context.Context, rc runConfig) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		unlock := rc.flow.lockTask(t.id)
		defer unlock()

		c, err := rc.factory([]*Task{t}, rc.agents, rc.flow)
		if err != nil {
			out <- fmt.Errorf("create controller: %w", err)
			return
		}
		select {
		case err := <-c.RunOnceAsync(WithFlow(ctx, rc.flow)):
			out <- err
		case <-ctx.Done():
			out <- ctx.Err()
		}
	}()
	return out
}
