/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
orchestrator, tracking HTTP requests, capability executions, broker and
sandbox gauges, and system metrics.

# Features

- HTTP request metrics (latency, throughput, size)
- Capability execution metrics (duration, outcome code per domain.verb)
- Permission denial and timeout counters
- Broker pending-request and sandbox-count gauges
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record capability outcomes (satisfies the handler Recorder)
	metrics.RecordCapability("file", "file.read", "ok", elapsed)

	// Update gauges
	metrics.SetPending(3)
	metrics.SetSandboxes(12)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
