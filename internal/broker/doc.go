// Package broker correlates capability requests with their eventual
// responses. Each request becomes a message with a pending entry and a
// deadline timer; the handler runs asynchronously and the first of
// completion, timeout or shutdown resolves the entry. Late completions
// after an entry is gone are discarded, and a periodic sweep purges
// anything that outlives its deadline plus a grace period.
//
// Admission control is immediate rejection, not queueing: once the
// pending ceiling is reached new requests fail with Overloaded.
//
// Database handlers are the one routing special case: they are created
// and cached per isolate id so tenant state is purged deterministically
// on sandbox termination instead of lingering until garbage collection.
package broker
