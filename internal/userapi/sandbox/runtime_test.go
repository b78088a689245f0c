package sandbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nativeCall struct {
	Action  string
	Payload map[string]interface{}
}

// fakeHost records native calls and answers them like the bridge would.
type fakeHost struct {
	mu      sync.Mutex
	calls   []nativeCall
	results map[string]interface{}
	deny    map[string]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		results: map[string]interface{}{},
		deny:    map[string]bool{},
	}
}

func (h *fakeHost) native(action, payload string) string {
	var data map[string]interface{}
	if payload != "" {
		_ = sonic.Unmarshal([]byte(payload), &data)
	}

	h.mu.Lock()
	h.calls = append(h.calls, nativeCall{Action: action, Payload: data})
	result := h.results[action]
	denied := h.deny[action]
	h.mu.Unlock()

	if denied {
		return `{"ok":false,"error":"unauthorized"}`
	}
	out, _ := sonic.Marshal(map[string]interface{}{"ok": true, "result": result})
	return string(out)
}

func (h *fakeHost) byAction(action string) []nativeCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []nativeCall
	for _, c := range h.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func newTestRuntime(t *testing.T, host *fakeHost, config Config) *Runtime {
	t.Helper()
	r, err := New(config, Bindings{
		Native: host.native,
		Info:   map[string]interface{}{"id": "p1", "name": "Test Source"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNewRequiresNative(t *testing.T) {
	_, err := New(DefaultConfig(), Bindings{})
	assert.Error(t, err)
}

func TestRuntimeEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr bool
	}{
		{name: "empty script", script: ""},
		{name: "register handler", script: "register(function (action, data) {})"},
		{name: "math operations", script: "var x = Math.sqrt(16);"},
		{name: "syntax error", script: "function (", wantErr: true},
		{name: "top level throw", script: "throw new Error('bad plugin')", wantErr: true},
		{name: "register non function", script: "register(42)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(t, newFakeHost(), DefaultConfig())
			err := r.Evaluate(context.Background(), "plugin.js", tt.script)
			if tt.wantErr {
				var scriptErr *ScriptError
				require.ErrorAs(t, err, &scriptErr)
				assert.Empty(t, scriptErr.Action)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRuntimeEvaluateErrorMessage(t *testing.T) {
	r := newTestRuntime(t, newFakeHost(), DefaultConfig())

	err := r.Evaluate(context.Background(), "plugin.js", "throw new Error('bad plugin')")

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "bad plugin", scriptErr.Message)
	assert.Contains(t, scriptErr.Stack, "plugin.js")
}

func TestRuntimeSecurity(t *testing.T) {
	dangerous := []struct {
		name   string
		script string
	}{
		{name: "require blocked", script: "require('fs')"},
		{name: "process blocked", script: "process.exit(1)"},
		{name: "module blocked", script: "module.exports = {}"},
		{name: "timers blocked", script: "setTimeout(function () {}, 0)"},
	}

	for _, tt := range dangerous {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(t, newFakeHost(), DefaultConfig())
			err := r.Evaluate(context.Background(), "plugin.js", tt.script)
			assert.Error(t, err)
		})
	}
}

func TestRuntimeBindingsAreNotReplaceable(t *testing.T) {
	r := newTestRuntime(t, newFakeHost(), DefaultConfig())

	err := r.Evaluate(context.Background(), "plugin.js", `
		'use strict';
		lx = null;
	`)
	assert.Error(t, err)
}

func TestRuntimeDispatch(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function (action, data) {
			if (action === 'ping') {
				emit('pong', data);
			}
		});
	`))

	require.NoError(t, r.Dispatch(context.Background(), "ping", `{"n":1}`))
	require.NoError(t, r.Dispatch(context.Background(), "other", ""))

	emits := host.byAction("emit")
	require.Len(t, emits, 1)
	assert.Equal(t, "pong", emits[0].Payload["name"])
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, emits[0].Payload["data"])
}

func TestRuntimeDispatchPreservesOrder(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function () {
			for (var i = 0; i < 5; i++) emit('step', i);
		});
	`))
	require.NoError(t, r.Dispatch(context.Background(), "go", ""))

	emits := host.byAction("emit")
	require.Len(t, emits, 5)
	for i, c := range emits {
		assert.Equal(t, float64(i), c.Payload["data"])
	}
}

func TestRuntimeDispatchScriptError(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function (action) {
			if (action === 'boom') throw new Error('kaboom');
			emit('pong', null);
		});
	`))

	err := r.Dispatch(context.Background(), "boom", "")
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "boom", scriptErr.Action)
	assert.Equal(t, "kaboom", scriptErr.Message)

	// runtime survives a handler error
	require.NoError(t, r.Dispatch(context.Background(), "ping", ""))
	assert.Len(t, host.byAction("emit"), 1)
}

func TestRuntimeLxListener(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		lx.on(lx.EVENT_NAMES.request, function (data) {
			return Promise.resolve({ url: 'https://example.com/' + data.id });
		});
		lx.send(lx.EVENT_NAMES.inited, { sources: {} });
	`))
	require.Len(t, host.byAction("send"), 1)
	assert.Equal(t, "inited", host.byAction("send")[0].Payload["name"])

	require.NoError(t, r.Dispatch(context.Background(), "request", `{"id":"42"}`))

	responses := host.byAction("response")
	require.Len(t, responses, 1)
	assert.Equal(t, "request", responses[0].Payload["action"])
	assert.Equal(t, map[string]interface{}{"url": "https://example.com/42"}, responses[0].Payload["data"])
}

func TestRuntimeRejectedPromiseReported(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function () {
			return Promise.reject(new Error('nope'));
		});
	`))
	require.NoError(t, r.Dispatch(context.Background(), "musicUrl", ""))

	errs := host.byAction("scriptError")
	require.Len(t, errs, 1)
	assert.Equal(t, "musicUrl", errs[0].Payload["action"])
	assert.Equal(t, "nope", errs[0].Payload["message"])
}

func TestRuntimeRequestCompletion(t *testing.T) {
	host := newFakeHost()
	host.results["request"] = "req-1"
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function () {
			lx.request('https://example.com', { method: 'GET' }, function (err, resp, body) {
				if (err) { emit('failed', err.message); return; }
				emit('done', { status: resp.statusCode, body: body });
			});
		});
	`))
	require.NoError(t, r.Dispatch(context.Background(), "fetch", ""))

	requests := host.byAction("request")
	require.Len(t, requests, 1)
	assert.Equal(t, "https://example.com", requests[0].Payload["url"])

	require.NoError(t, r.Complete(context.Background(), "req-1",
		`{"response":{"statusCode":200,"body":"hello"}}`))
	// unknown and repeated keys are ignored
	require.NoError(t, r.Complete(context.Background(), "req-1", `{"error":"late"}`))

	emits := host.byAction("emit")
	require.Len(t, emits, 1)
	assert.Equal(t, "done", emits[0].Payload["name"])
	assert.Equal(t, map[string]interface{}{"status": float64(200), "body": "hello"}, emits[0].Payload["data"])
}

func TestRuntimeRequestCancel(t *testing.T) {
	host := newFakeHost()
	host.results["request"] = "req-2"
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		var cancel = lx.request('https://example.com', function () { emit('called', null); });
		cancel();
	`))

	cancels := host.byAction("cancelRequest")
	require.Len(t, cancels, 1)
	assert.Equal(t, "req-2", cancels[0].Payload["requestKey"])

	require.NoError(t, r.Complete(context.Background(), "req-2", `{"response":{}}`))
	assert.Empty(t, host.byAction("emit"))
}

func TestRuntimeNativeFailureThrows(t *testing.T) {
	host := newFakeHost()
	host.deny["emit"] = true
	r := newTestRuntime(t, host, DefaultConfig())

	err := r.Evaluate(context.Background(), "plugin.js", "emit('x', null)")

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "unauthorized", scriptErr.Message)
}

func TestRuntimeScriptInfo(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		emit('info', { id: lx.currentScriptInfo.id, name: lx.currentScriptInfo.name, env: lx.env });
	`))

	emits := host.byAction("emit")
	require.Len(t, emits, 1)
	assert.Equal(t, map[string]interface{}{"id": "p1", "name": "Test Source", "env": "mobile"}, emits[0].Payload["data"])
}

func TestRuntimeConsoleForwarding(t *testing.T) {
	host := newFakeHost()
	r := newTestRuntime(t, host, DefaultConfig())

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		console.log('info message', 1);
		console.warn('warning message');
		console.error({ a: 1 });
	`))

	logs := host.byAction("log")
	require.Len(t, logs, 3)
	levels := []string{"log", "warn", "error"}
	for i, entry := range logs {
		assert.Equal(t, levels[i], entry.Payload["level"])
	}
	assert.Equal(t, "info message 1", logs[0].Payload["message"])
	assert.Equal(t, `{"a":1}`, logs[2].Payload["message"])
}

func TestRuntimeConsoleDisabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableConsole = false
	r := newTestRuntime(t, newFakeHost(), config)

	err := r.Evaluate(context.Background(), "plugin.js", "console.log('x')")
	assert.Error(t, err)
}

func TestRuntimeTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	r := newTestRuntime(t, newFakeHost(), config)

	err := r.Evaluate(context.Background(), "plugin.js", `
		let i = 0;
		while (true) {
			i++;
		}
	`)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRuntimeDispatchTimeoutKeepsRuntime(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	host := newFakeHost()
	r := newTestRuntime(t, host, config)

	require.NoError(t, r.Evaluate(context.Background(), "plugin.js", `
		register(function (action) {
			if (action === 'spin') { while (true) {} }
			emit('pong', null);
		});
	`))

	assert.ErrorIs(t, r.Dispatch(context.Background(), "spin", ""), ErrTimeout)
	require.NoError(t, r.Dispatch(context.Background(), "ping", ""))
	assert.Len(t, host.byAction("emit"), 1)
}

func TestRuntimeContextCancel(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 0
	r := newTestRuntime(t, newFakeHost(), config)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Evaluate(ctx, "plugin.js", "while (true) {}")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRuntimeCloseInterrupts(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 0
	r := newTestRuntime(t, newFakeHost(), config)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Evaluate(context.Background(), "plugin.js", "while (true) {}")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt evaluation")
	}

	assert.True(t, r.Closed())
	assert.ErrorIs(t, r.Dispatch(context.Background(), "ping", ""), ErrClosed)
}
