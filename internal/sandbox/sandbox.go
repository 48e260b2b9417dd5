package sandbox

import "time"

// State is a sandbox lifecycle state. Terminated is absorbing.
type State int8

const (
	StateCreated State = iota
	StateActive
	StateIdle
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config is the resource envelope an isolate runs under.
type Config struct {
	ID               string        `json:"id"`
	Tier             string        `json:"tier"`
	ExecutionTimeout time.Duration `json:"execution_timeout"`
	MemoryLimitMB    int           `json:"memory_limit_mb"`
	AllowedAPIs      []string      `json:"allowed_apis,omitempty"`
	NetworkAllowlist []string      `json:"network_allowlist,omitempty"`
}

// Sandbox is a snapshot of one isolate execution context. The manager
// owns the mutable record; callers always receive copies.
type Sandbox struct {
	Config
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Alert is one advisory resource observation. Alerts never block
// operations.
type Alert struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}
