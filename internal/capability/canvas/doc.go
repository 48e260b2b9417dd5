// Package canvas implements the canvas capability. Drawing is
// replay-style: validated primitive operations are appended to a
// per-canvas log, and export walks the log to produce encoded output.
// Nothing is rasterized until an export asks for an image format.
//
// Canvas state is ephemeral and owned by the creating isolate; it is
// purged when the isolate terminates.
package canvas
