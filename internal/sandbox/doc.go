// Package sandbox manages isolate execution contexts: creation under a
// global concurrency cap, idle eviction, resource sampling with an
// advisory alert log, and idempotent termination.
//
// The package does not prescribe how untrusted code actually runs; the
// Runner interface is the execution primitive and the embedder may
// replace the default in-process goja runner with a subprocess or VM
// backed one without touching the manager.
package sandbox
