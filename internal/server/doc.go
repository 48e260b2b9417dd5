// Package server provides HTTP server setup for the orchestrator.
//
// This package wires the outer surfaces together:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, metrics)
//   - Orchestrator construction (broker, engine, handlers, sandboxes)
//   - WebSocket message stream
//   - Prometheus exposition
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Build the orchestrator and register capability domains
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server and background maintenance
//  6. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
