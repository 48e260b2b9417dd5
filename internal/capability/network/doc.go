// Package network implements the network capability: outbound HTTP
// requests and webhook delivery on behalf of isolates that may not open
// sockets themselves.
//
// Requests only leave the orchestrator after the URL passes scheme and
// domain-allowlist checks; response bodies are capped at the profile's
// limit and every request carries an abortable deadline.
package network
