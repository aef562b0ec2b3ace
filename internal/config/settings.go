package config

import (
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/controller"
	"github.com/aristath/taskflow/internal/core"
)

// Validate checks cross-field references and duration syntax.
func (c *Config) Validate() error {
	if c.MaxTaskIterations != nil && *c.MaxTaskIterations < 0 {
		return fmt.Errorf("max_task_iterations must not be negative, got %d", *c.MaxTaskIterations)
	}
	if c.DefaultAgent != "" {
		if _, ok := c.Agents[c.DefaultAgent]; !ok {
			return fmt.Errorf("default_agent %q is not defined in agents", c.DefaultAgent)
		}
	}
	if _, err := c.ControllerConfig(); err != nil {
		return err
	}
	return nil
}

// Settings converts the file settings to core settings. Agents and the
// controller are attached by the caller, which owns their behaviour.
func (c *Config) Settings() core.Settings {
	s := core.DefaultSettings()
	if c.MaxTaskIterations != nil {
		s.MaxTaskIterations = *c.MaxTaskIterations
	}
	if c.StrictFlowContext != nil {
		s.StrictFlowContext = *c.StrictFlowContext
	}
	if c.AllowSkipTool != nil {
		s.AllowSkipTool = *c.AllowSkipTool
	}
	return s
}

// ControllerConfig builds the retry and breaker configuration of the
// default controller.
func (c *Config) ControllerConfig() (controller.Config, error) {
	breaker := controller.DefaultBreakerSettings()
	if c.Breaker.FailureThreshold > 0 {
		breaker.FailureThreshold = c.Breaker.FailureThreshold
	}
	if c.Breaker.MaxRequests > 0 {
		breaker.MaxRequests = c.Breaker.MaxRequests
	}
	if err := parseDuration("breaker.timeout", c.Breaker.Timeout, &breaker.Timeout); err != nil {
		return controller.Config{}, err
	}

	cfg := controller.Config{Breakers: controller.NewBreakerRegistry(breaker)}
	if c.Retry == nil {
		return cfg, nil
	}

	retry := controller.DefaultRetryConfig()
	if c.Retry.Multiplier > 0 {
		retry.Multiplier = c.Retry.Multiplier
	}
	for _, d := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"retry.initial_interval", c.Retry.InitialInterval, &retry.InitialInterval},
		{"retry.max_interval", c.Retry.MaxInterval, &retry.MaxInterval},
		{"retry.max_elapsed_time", c.Retry.MaxElapsedTime, &retry.MaxElapsedTime},
	} {
		if err := parseDuration(d.key, d.value, d.dst); err != nil {
			return controller.Config{}, err
		}
	}
	cfg.Retry = &retry
	return cfg, nil
}

// parseDuration leaves dst untouched when value is empty.
func parseDuration(key, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got %s", key, value)
	}
	*dst = d
	return nil
}
