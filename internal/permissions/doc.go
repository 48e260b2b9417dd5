// Package permissions implements the per-isolate capability model.
//
// Every capability request passes through a single authorization gate:
//
//	decision := engine.Validate(isolateID, operation, payload)
//
// which composes "profile exists" → IsAllowed → CheckRateLimit and
// short-circuits with a human-readable reason on the first failure.
// Isolates with no assigned profile are denied everything (fail closed),
// and unknown operation domains are always denied.
//
// Rate counters use a fixed one-minute window that resets entirely on
// the window tick. Bursts straddling a window boundary can reach up to
// 2x the nominal rate; this is a documented limitation of the fixed
// window, not a bug.
package permissions
