// Package ws provides the WebSocket transport for capability messages.
//
// Each connection speaks the capability wire contract directly: clients
// send "request" messages ({id?, type, operation, isolate_id, payload})
// and receive the terminal "response" or "error" message correlated by
// id. Requests on one connection run concurrently; terminal messages
// arrive in completion order, not submission order.
//
// Message Types (Client → Server):
//   - request: Execute a capability operation
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection banner
//   - response: Successful capability result
//   - error: Failed capability result
//   - pong: Keep-alive reply
//
// Example Usage:
//
//	handler := ws.NewHandler(orch, metrics, log)
//	router.GET("/stream", handler.HandleConnection)
package ws
