// Package capability defines the contract every privileged-domain
// handler implements, the shared validation/authorization/timing
// scaffold they compose with, and the factory the broker routes
// through.
//
// A handler never sees an unauthorized request: Base.Run validates the
// message shape, consults the permission engine, records rate-limit
// usage, then times the domain execution and classifies any failure.
// Raw errors do not cross this boundary.
//
// The factory maps a domain name to a handler constructor so the broker
// can route purely by operation string; new domains register without
// touching the broker.
package capability
