package types

// ExecuteRequest represents a capability execution request over HTTP
type ExecuteRequest struct {
	IsolateID string                 `json:"isolate_id" binding:"required"`
	Operation string                 `json:"operation" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	TimeoutMS int                    `json:"timeout_ms,omitempty"`
}

// AssignRequest represents a permission tier assignment
type AssignRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// CreateSandboxRequest represents a sandbox creation request
type CreateSandboxRequest struct {
	ID               string   `json:"id,omitempty"`
	Tier             string   `json:"tier,omitempty"`
	ExecutionTimeout int      `json:"execution_timeout_ms,omitempty"`
	MemoryLimitMB    int      `json:"memory_limit_mb,omitempty"`
	AllowedAPIs      []string `json:"allowed_apis,omitempty"`
	NetworkAllowlist []string `json:"network_allowlist,omitempty"`
}
