package sandbox

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

//go:embed prelude.js
var preludeSource string

var prelude = goja.MustCompile("prelude.js", preludeSource, true)

// Runtime wraps one goja VM holding a single plugin.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	dispatch goja.Callable
	complete goja.Callable

	closed atomic.Bool
}

// New creates a sandboxed runtime with bindings injected and no plugin code
// evaluated yet.
func New(config Config, bindings Bindings) (*Runtime, error) {
	if bindings.Native == nil {
		return nil, errors.New("sandbox: native binding is required")
	}

	vm := goja.New()
	if config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	r := &Runtime{
		vm:     vm,
		config: config,
	}

	if err := r.setupGlobals(bindings); err != nil {
		return nil, err
	}

	return r, nil
}

// setupGlobals removes ambient host access and installs the prelude API.
func (r *Runtime) setupGlobals(bindings Bindings) error {
	for _, name := range []string{"require", "process", "module", "exports", "setTimeout", "setInterval"} {
		if err := r.vm.GlobalObject().Delete(name); err != nil {
			return fmt.Errorf("sandbox: remove %s: %w", name, err)
		}
	}

	info, err := sonic.MarshalString(bindings.Info)
	if err != nil {
		return fmt.Errorf("sandbox: encode script info: %w", err)
	}
	options, err := sonic.MarshalString(map[string]interface{}{
		"console": r.config.EnableConsole,
		"version": r.config.Version,
		"env":     r.config.Env,
	})
	if err != nil {
		return fmt.Errorf("sandbox: encode options: %w", err)
	}

	factory, err := r.vm.RunProgram(prelude)
	if err != nil {
		return fmt.Errorf("sandbox: load prelude: %w", err)
	}
	install, ok := goja.AssertFunction(factory)
	if !ok {
		return errors.New("sandbox: prelude is not a function")
	}

	exports, err := install(goja.Undefined(),
		r.vm.ToValue(r.makeNative(bindings.Native)),
		r.vm.ToValue(info),
		r.vm.ToValue(options),
	)
	if err != nil {
		return fmt.Errorf("sandbox: install prelude: %w", err)
	}

	obj := exports.ToObject(r.vm)
	if r.dispatch, ok = goja.AssertFunction(obj.Get("dispatch")); !ok {
		return errors.New("sandbox: prelude did not export dispatch")
	}
	if r.complete, ok = goja.AssertFunction(obj.Get("complete")); !ok {
		return errors.New("sandbox: prelude did not export complete")
	}
	return nil
}

// makeNative adapts the host binding to a JS function taking (action, payload).
func (r *Runtime) makeNative(native Native) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		action := call.Argument(0).String()
		var payload string
		if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			payload = arg.String()
		}
		return r.vm.ToValue(native(action, payload))
	}
}

// Evaluate runs the plugin source once. Any error leaves the runtime unusable
// and the caller is expected to Close it.
func (r *Runtime) Evaluate(ctx context.Context, name, script string) error {
	return r.run(ctx, "", func() error {
		_, err := r.vm.RunScript(name, script)
		return err
	})
}

// Dispatch delivers an inbound action to the plugin's registered handler.
// An uncaught exception is returned as *ScriptError and the runtime stays usable.
func (r *Runtime) Dispatch(ctx context.Context, action, payload string) error {
	return r.run(ctx, action, func() error {
		_, err := r.dispatch(goja.Undefined(), r.vm.ToValue(action), r.vm.ToValue(payload))
		return err
	})
}

// Complete hands the result of an asynchronous request back to the callback
// the plugin registered for requestKey.
func (r *Runtime) Complete(ctx context.Context, requestKey, payload string) error {
	return r.run(ctx, "request", func() error {
		_, err := r.complete(goja.Undefined(), r.vm.ToValue(requestKey), r.vm.ToValue(payload))
		return err
	})
}

// Interrupt aborts whatever script code is running. Safe from any goroutine.
func (r *Runtime) Interrupt(reason error) {
	r.vm.Interrupt(reason)
}

// Closed reports whether Close has been called
func (r *Runtime) Closed() bool {
	return r.closed.Load()
}

// Close interrupts running code and releases the VM. Idempotent.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.vm.Interrupt(ErrClosed)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch = nil
	r.complete = nil
	return nil
}

// run executes fn under the runtime lock with the configured time budget.
func (r *Runtime) run(ctx context.Context, action string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return ErrClosed
	}

	stop := r.watch(ctx)
	err := fn()
	stop()

	if err == nil {
		return nil
	}
	return r.convertError(action, err)
}

// watch interrupts the VM when the budget or ctx expires. The returned
// function stops the watchdog and clears a pending interrupt.
func (r *Runtime) watch(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		var timeout <-chan time.Time
		if r.config.Timeout > 0 {
			timer := time.NewTimer(r.config.Timeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-timeout:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		if !r.closed.Load() {
			r.vm.ClearInterrupt()
		}
	}
}

func (r *Runtime) convertError(action string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			if errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrClosed) ||
				errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
				return cause
			}
			return fmt.Errorf("%w: %v", ErrInterrupted, cause)
		}
		return ErrInterrupted
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &ScriptError{
			Action:  action,
			Message: exceptionMessage(exception),
			Stack:   exception.String(),
		}
	}

	return &ScriptError{Action: action, Message: err.Error()}
}

func exceptionMessage(ex *goja.Exception) string {
	val := ex.Value()
	if val == nil {
		return ex.Error()
	}
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return val.String()
}
