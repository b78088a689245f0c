package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/scriptbridge/internal/providers"
	"github.com/GriffinCanCode/scriptbridge/internal/service"
	"github.com/GriffinCanCode/scriptbridge/internal/store"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Load(ctx context.Context, d userapi.Descriptor) (userapi.Info, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(userapi.Info), args.Error(1)
}

func (m *mockRuntime) DispatchAction(ctx context.Context, action, payload string) (bool, error) {
	args := m.Called(ctx, action, payload)
	return args.Bool(0), args.Error(1)
}

func (m *mockRuntime) Destroy(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRuntime) Status() userapi.Status {
	return m.Called().Get(0).(userapi.Status)
}

type harness struct {
	router  *gin.Engine
	runtime *mockRuntime
	store   *store.Store
	metrics *monitoring.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	services := service.NewRegistry()
	require.NoError(t, services.Register(providers.NewCodec()))

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	tracer := tracing.New("test", nil)
	t.Cleanup(tracer.Close)

	rt := &mockRuntime{}
	router := gin.New()
	NewHandlers(Deps{
		Runtime:  rt,
		Services: services,
		Store:    st,
		Tracer:   tracer,
		Gatherer: reg,
		Metrics:  metrics,
	}).Register(router)

	t.Cleanup(func() { rt.AssertExpectations(t) })
	return &harness{router: router, runtime: rt, store: st, metrics: metrics}
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestRootAndHealth(t *testing.T) {
	h := newHarness(t)
	h.runtime.On("Status").Return(userapi.Status{State: userapi.StateUnloaded})

	w, body := h.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, Version, body["version"])

	w, body = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "store")
	registry := body["service_registry"].(map[string]interface{})
	assert.Equal(t, float64(1), registry["total_services"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.runtime.On("Destroy", mock.Anything).Return(nil)

	h.do(t, http.MethodDelete, "/userapi", "")

	w, _ := h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "host_api")
}

func TestLoadPlugin(t *testing.T) {
	info := userapi.Info{ID: "kw", Name: "KW", Version: "1.0.0"}

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "loaded", body: `{"id":"kw","script":"1"}`, status: http.StatusOK},
		{name: "script failure", body: `{"id":"kw","script":"1"}`, err: &userapi.LoadError{PluginID: "kw", Err: errors.New("boom")}, status: http.StatusUnprocessableEntity},
		{name: "superseded", body: `{"id":"kw","script":"1"}`, err: userapi.ErrSuperseded, status: http.StatusConflict},
		{name: "closed", body: `{"id":"kw","script":"1"}`, err: userapi.ErrClosed, status: http.StatusServiceUnavailable},
		{name: "malformed", body: `{"id":`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.status != http.StatusBadRequest {
				h.runtime.On("Load", mock.Anything, mock.MatchedBy(func(d userapi.Descriptor) bool {
					return d.ID == "kw" && d.Script == "1"
				})).Return(info, tt.err).Once()
			}

			w, body := h.do(t, http.MethodPost, "/userapi/load", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userapi.StateReady.String(), body["state"])
				assert.Equal(t, "kw", body["plugin"].(map[string]interface{})["id"])
			} else {
				assert.Contains(t, body, "error")
			}
		})
	}
}

func TestDispatchAction(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		payload   string
		delivered bool
		err       error
		status    int
	}{
		{name: "delivered", body: `{"action":"ping","data":{"n":1}}`, payload: `{"n":1}`, delivered: true, status: http.StatusOK},
		{name: "no data", body: `{"action":"ping"}`, payload: "", delivered: true, status: http.StatusOK},
		{name: "script error", body: `{"action":"boom"}`, delivered: true, err: errors.New("kaboom"), status: http.StatusOK},
		{name: "not ready", body: `{"action":"ping"}`, err: userapi.ErrNotReady, status: http.StatusConflict},
		{name: "invalid payload", body: `{"action":"ping"}`, err: userapi.ErrInvalidPayload, status: http.StatusBadRequest},
		{name: "queue full", body: `{"action":"ping"}`, err: userapi.ErrQueueFull, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			var action struct {
				Action string `json:"action"`
			}
			require.NoError(t, sonic.UnmarshalString(tt.body, &action))
			h.runtime.On("DispatchAction", mock.Anything, action.Action, tt.payload).
				Return(tt.delivered, tt.err).Once()

			w, body := h.do(t, http.MethodPost, "/userapi/actions", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.delivered, body["delivered"])
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestDispatchRequiresAction(t *testing.T) {
	h := newHarness(t)
	w, _ := h.do(t, http.MethodPost, "/userapi/actions", `{"data":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDestroyAlwaysSucceeds(t *testing.T) {
	h := newHarness(t)
	h.runtime.On("Destroy", mock.Anything).Return(errors.New("already gone")).Once()

	w, _ := h.do(t, http.MethodDelete, "/userapi", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ServiceCalls.WithLabelValues("host_api", "destroy", "success")))
}

func TestState(t *testing.T) {
	h := newHarness(t)
	h.runtime.On("Status").Return(userapi.Status{
		State:     userapi.StateReady,
		Plugin:    &userapi.Info{ID: "kw"},
		SessionID: "sess",
	})

	w, body := h.do(t, http.MethodGet, "/userapi/state", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userapi.StateReady.String(), body["state"])
	assert.Equal(t, "sess", body["session_id"])
}

func TestServices(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(t, http.MethodGet, "/services?category=codec", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["services"], 1)

	_, body = h.do(t, http.MethodGet, "/services?category=lyric", "")
	assert.Empty(t, body["services"])

	w, body = h.do(t, http.MethodPost, "/services/execute",
		`{"tool_id":"codec.from","params":{"input":"hello"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "aGVsbG8=", body["data"].(map[string]interface{})["result"])

	w, _ = h.do(t, http.MethodPost, "/services/execute", `{"tool_id":"nope.nothing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.do(t, http.MethodPost, "/services/execute", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScripts(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(t, http.MethodGet, "/scripts", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["scripts"])

	w, body = h.do(t, http.MethodPost, "/scripts", `{"id":"kw","name":"KW","script":"lx.send('inited', {})"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "kw", body["id"])
	assert.NotEmpty(t, body["checksum"])

	w, _ = h.do(t, http.MethodPost, "/scripts", `{"id":"bad id!","script":"1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	_, body = h.do(t, http.MethodGet, "/scripts", "")
	assert.Len(t, body["scripts"], 1)

	_, body = h.do(t, http.MethodGet, "/scripts/kw", "")
	assert.NotContains(t, body, "script")
	_, body = h.do(t, http.MethodGet, "/scripts/kw?source=true", "")
	assert.Equal(t, "lx.send('inited', {})", body["script"])

	h.runtime.On("Load", mock.Anything, mock.MatchedBy(func(d userapi.Descriptor) bool {
		return d.ID == "kw" && d.Script == "lx.send('inited', {})"
	})).Return(userapi.Info{ID: "kw"}, nil).Once()
	w, _ = h.do(t, http.MethodPost, "/scripts/kw/load", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodDelete, "/scripts/kw", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = h.do(t, http.MethodGet, "/scripts/kw", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = h.do(t, http.MethodPost, "/scripts/kw/load", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreRoutesNeedStore(t *testing.T) {
	router := gin.New()
	NewHandlers(Deps{Runtime: &mockRuntime{}, Services: service.NewRegistry()}).Register(router)

	for _, path := range []string{"/scripts", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
