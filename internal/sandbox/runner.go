package sandbox

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// Runner executes untrusted isolate code. The manager treats it as an
// opaque execution primitive so embedders can swap in a subprocess or
// VM implementation.
type Runner interface {
	Run(ctx context.Context, sb Sandbox, script string) (interface{}, error)
}

// GojaRunner runs isolate scripts on an in-process JavaScript VM with a
// hard interrupt at the sandbox's execution timeout. It satisfies the
// thread-level isolation contract: scripts get a fresh VM per call and
// no host globals.
type GojaRunner struct{}

// NewGojaRunner creates the default runner.
func NewGojaRunner() *GojaRunner { return &GojaRunner{} }

const defaultRunTimeout = 5 * time.Second

func (r *GojaRunner) Run(ctx context.Context, sb Sandbox, script string) (interface{}, error) {
	timeout := sb.ExecutionTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(1024)
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := vm.RunString(script)
	close(done)
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}
