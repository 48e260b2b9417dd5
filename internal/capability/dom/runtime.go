package dom

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// LogEntry is one captured console call.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// scriptResult carries the exported completion value plus everything
// the script printed.
type scriptResult struct {
	Value   interface{}
	Console []LogEntry
}

// runScript executes src on a fresh goja VM. The VM exposes a capturing
// console and no-op timers; require/process/module are absent. The VM
// is interrupted when timeout elapses or ctx is cancelled.
func runScript(ctx context.Context, src string, timeout time.Duration) (*scriptResult, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	res := &scriptResult{Console: []LogEntry{}}

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	console := vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info"} {
		level := level
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			msg := ""
			for i, arg := range call.Arguments {
				if i > 0 {
					msg += " "
				}
				msg += arg.String()
			}
			res.Console = append(res.Console, LogEntry{Level: level, Message: msg})
			return goja.Undefined()
		})
	}
	vm.Set("console", console)

	// Timers are deliberately inert: scripts run to completion or not
	// at all, never in the background.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("script timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := vm.RunString(src)
	close(done)
	if err != nil {
		return res, err
	}
	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		res.Value = val.Export()
	}
	return res, nil
}
