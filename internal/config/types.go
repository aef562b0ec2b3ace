package config

// AgentConfig describes an agent that the CLI can hand turns to. An agent
// with a Command plays its turns through that executable; one without is
// played by the operator on the terminal.
type AgentConfig struct {
	Description  string   `json:"description,omitempty"`
	Instructions string   `json:"instructions,omitempty"` // Appended to every turn's instructions
	UserAccess   bool     `json:"user_access,omitempty"`  // Agent may talk to the human
	Tools        []string `json:"tools,omitempty"`        // Names of built-in tools to grant
	Command      string   `json:"command,omitempty"`      // Executable receiving turn JSON on stdin
	Args         []string `json:"args,omitempty"`
	WorkDir      string   `json:"work_dir,omitempty"`
}

// RetryConfig enables backoff retry of failed agent turns. Durations use
// Go duration syntax ("250ms", "1m").
type RetryConfig struct {
	InitialInterval string  `json:"initial_interval,omitempty"`
	MaxInterval     string  `json:"max_interval,omitempty"`
	MaxElapsedTime  string  `json:"max_elapsed_time,omitempty"`
	Multiplier      float64 `json:"multiplier,omitempty"`
}

// BreakerConfig tunes the per-agent circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32 `json:"failure_threshold,omitempty"`
	MaxRequests      uint32 `json:"max_requests,omitempty"`
	Timeout          string `json:"timeout,omitempty"`
}

// Config is the top-level configuration. Scalars that have a meaningful
// zero value are pointers so a later file can set them explicitly.
type Config struct {
	MaxTaskIterations *int                   `json:"max_task_iterations,omitempty"` // 0 means unbounded
	StrictFlowContext *bool                  `json:"strict_flow_context,omitempty"`
	AllowSkipTool     *bool                  `json:"allow_skip_tool,omitempty"`
	DefaultAgent      string                 `json:"default_agent,omitempty"` // Key into Agents
	Agents            map[string]AgentConfig `json:"agents"`
	Retry             *RetryConfig           `json:"retry,omitempty"` // nil disables retry
	Breaker           BreakerConfig          `json:"breaker"`
	StorePath         string                 `json:"store_path,omitempty"` // SQLite file; empty disables recording
}
