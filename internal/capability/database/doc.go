// Package database implements the database capability with automatic
// tenant isolation. Every statement an isolate submits is rewritten
// before execution: reads and mutations gain a `WHERE isolate_id = ?`
// predicate, inserts gain the isolate id column, and table definitions
// gain the discriminator column. An isolate can therefore never see or
// touch another isolate's rows, even though all tenants share one
// backing store.
//
// Statement separators, comment markers, EXEC-style tokens and
// destructive DDL are rejected before any profile check. Manual
// references to the discriminator column are likewise rejected; only
// the system may produce the injected pattern.
//
// The broker creates one handler instance per isolate and evicts it on
// sandbox termination.
package database
