package sandbox

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrClosed      = errors.New("sandbox is closed")
	ErrTimeout     = errors.New("script execution timeout exceeded")
	ErrInterrupted = errors.New("script execution interrupted")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Budget for one evaluation or dispatch, zero disables
	MaxCallStack  int           // goja call stack limit
	EnableConsole bool          // Forward console.* to the native log action
	Version       string        // Exposed as lx.version
	Env           string        // Exposed as lx.env
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		Version:       "1.0.0",
		Env:           "mobile",
	}
}

// Native is the single host binding visible to script code. It receives an
// action name and a JSON payload (empty when absent) and returns a JSON reply
// envelope. The binding is the only path from script code to the host.
type Native func(action, payload string) string

// Bindings is the fixed set of values injected before evaluation.
type Bindings struct {
	Native Native
	Info   interface{} // JSON-encodable, exposed as lx.currentScriptInfo
}

// ScriptError is an uncaught exception raised by plugin code.
type ScriptError struct {
	Action  string // empty during evaluation
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("script error: %s", e.Message)
	}
	return fmt.Sprintf("script error in action %q: %s", e.Action, e.Message)
}
