// Package main is the entry point for the isolate orchestrator server.
//
// The server lets untrusted, sandboxed isolates request privileged
// operations (file, network, canvas, database, process, DOM) which the
// orchestrator performs on their behalf after permission and rate-limit
// checks.
//
// The server provides:
//   - REST API for sandbox lifecycle and capability execution
//   - WebSocket stream speaking the capability message contract
//   - Prometheus metrics endpoint
//   - Rate limiting and CORS at the edge
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8900
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
