package controller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/taskflow/internal/core"
)

// RetryConfig configures exponential backoff retry of agent turns.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerSettings configures the circuit breaker kept for each agent.
type BreakerSettings struct {
	FailureThreshold uint32        // Consecutive failures that open the circuit (default 5)
	MaxRequests      uint32        // Trial turns allowed while half-open (default 3)
	Timeout          time.Duration // Time spent open before trying again (default 30s)
}

// DefaultBreakerSettings returns the default breaker settings.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		MaxRequests:      3,
		Timeout:          30 * time.Second,
	}
}

// BreakerRegistry keeps one circuit breaker per agent name so that an agent
// that keeps failing stops being handed turns for a while.
type BreakerRegistry struct {
	mu       sync.Mutex
	settings BreakerSettings
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers use settings.
func NewBreakerRegistry(settings BreakerSettings) *BreakerRegistry {
	return &BreakerRegistry{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for the named agent, creating it on first use.
func (r *BreakerRegistry) Get(agent string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[agent]; ok {
		return cb
	}

	threshold := r.settings.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        agent,
		MaxRequests: r.settings.MaxRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("WARNING: circuit breaker for agent %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Cancellation and misconfiguration are not the agent's fault.
			return errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, core.ErrConfiguration)
		},
	})

	r.breakers[agent] = cb
	return cb
}

// State returns the current state of the named agent's breaker.
func (r *BreakerRegistry) State(agent string) gobreaker.State {
	return r.Get(agent).State()
}

// runProtected runs op through cb. With a retry config, failures other than
// an open circuit or a cancelled context are retried with exponential
// backoff.
func runProtected(ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg *RetryConfig, op func() error) error {
	once := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil || errors.Is(err, core.ErrConfiguration) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if retryCfg == nil {
		err := once()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	return backoff.Retry(once, backoff.WithContext(policy, ctx))
}
