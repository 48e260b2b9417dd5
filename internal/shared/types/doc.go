// Package types provides shared data structures for the orchestrator.
//
// This package defines the types that cross component boundaries,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Message: Capability message (the isolate wire contract)
//   - Context: Execution context attached to a capability request
//   - Result: Standard operation result
//   - Tool: Capability operation specification
//
// Request Types:
//   - ExecuteRequest: Capability execution over HTTP
//   - AssignRequest: Permission tier assignment
//   - CreateSandboxRequest: Sandbox creation
package types
