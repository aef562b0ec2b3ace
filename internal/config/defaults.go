package config

// DefaultConfig returns the default configuration: a bounded run loop and a
// single console agent that asks the human for every step.
func DefaultConfig() *Config {
	maxIterations := 100
	strict := false
	allowSkip := false
	return &Config{
		MaxTaskIterations: &maxIterations,
		StrictFlowContext: &strict,
		AllowSkipTool:     &allowSkip,
		DefaultAgent:      "console",
		Agents: map[string]AgentConfig{
			"console": {
				Description: "Relays each task to the person at the terminal.",
				UserAccess:  true,
			},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			MaxRequests:      3,
			Timeout:          "30s",
		},
	}
}
