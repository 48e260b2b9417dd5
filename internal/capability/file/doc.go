// Package file implements the file capability: read, write, delete,
// list, info and exists, scoped to a per-isolate directory under the
// orchestrator's storage root.
//
// Paths are validated before any profile check: traversal components,
// backslashes and absolute paths are rejected outright regardless of
// tier.
package file
