// Package orchestrator is the composition root of the capability
// system: it wires the sandbox manager, permission engine, handler
// factory and message broker into one explicit context object and
// exposes the operations the outer surfaces (HTTP, WebSocket) call.
//
// There is no global singleton; embedders construct an Orchestrator,
// start it, and pass it around.
package orchestrator
