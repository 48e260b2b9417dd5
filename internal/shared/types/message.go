package types

import "time"

// MessageType discriminates capability message kinds
type MessageType string

const (
	MessageRequest  MessageType = "request"
	MessageResponse MessageType = "response"
	MessageError    MessageType = "error"
)

// Message is the wire contract between an isolate and the orchestrator.
// Every request message produces exactly one terminal response or error,
// linked back by CorrelationID.
type Message struct {
	ID            string                 `json:"id"`
	Type          MessageType            `json:"type"`
	Operation     string                 `json:"operation"` // dotted domain.verb, e.g. "file.read"
	IsolateID     string                 `json:"isolate_id"`
	Timestamp     time.Time              `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Context carries the execution context of a capability request
type Context struct {
	IsolateID string  `json:"isolate_id"`
	MessageID string  `json:"message_id,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
}

// Result represents a capability execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"` // classification, set on failure
}

// Tool describes one capability operation
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}
