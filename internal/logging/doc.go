// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Security-relevant denials go through the audit child logger so they
// can be filtered and retained independently of operational logs.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Broker starting", zap.Int("max_pending", 100))
//	logger.Audit().Warn("Permission denied", zap.String("isolate_id", iso))
package logging
