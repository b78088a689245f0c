package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Options{Timeout: 5 * time.Second, UserAgent: "scriptbridge-test"}, nil)
}

func TestDoDecodesBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"lyric":"[00:01.00]hello","count":2}`)
		case "/text":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = io.WriteString(w, "plain text")
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x00, 0x01, 0x02, 0xff})
		case "/missing":
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient()
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		resp, err := client.Do(ctx, Request{URL: server.URL + "/json"})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "OK", resp.StatusMessage)
		body, ok := resp.Body.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "[00:01.00]hello", body["lyric"])
		assert.Empty(t, resp.Encoding)
	})

	t.Run("text", func(t *testing.T) {
		resp, err := client.Do(ctx, Request{URL: server.URL + "/text"})
		require.NoError(t, err)
		assert.Equal(t, "plain text", resp.Body)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Headers["content-type"])
	})

	t.Run("binary", func(t *testing.T) {
		resp, err := client.Do(ctx, Request{URL: server.URL + "/binary"})
		require.NoError(t, err)
		assert.Equal(t, "AAEC/w==", resp.Body)
		assert.Equal(t, "base64", resp.Encoding)
	})

	t.Run("non-2xx is not an error", func(t *testing.T) {
		resp, err := client.Do(ctx, Request{URL: server.URL + "/missing"})
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})
}

func TestDoSendsRequest(t *testing.T) {
	type seen struct {
		method, contentType, body, agent, custom string
	}
	got := make(chan seen, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got <- seen{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			body:        string(raw),
			agent:       r.Header.Get("User-Agent"),
			custom:      r.Header.Get("X-Plugin"),
		}
	}))
	defer server.Close()

	client := newTestClient()

	tests := []struct {
		name        string
		req         Request
		wantMethod  string
		wantType    string
		wantBodyHas string
	}{
		{
			name:        "json body",
			req:         Request{Method: "post", Body: map[string]interface{}{"id": "123"}},
			wantMethod:  "POST",
			wantType:    "application/json",
			wantBodyHas: `"id":"123"`,
		},
		{
			name:        "raw string body",
			req:         Request{Method: "PUT", Body: "raw", Headers: map[string]string{"Content-Type": "text/plain"}},
			wantMethod:  "PUT",
			wantType:    "text/plain",
			wantBodyHas: "raw",
		},
		{
			name:        "form",
			req:         Request{Method: "POST", Form: map[string]string{"q": "song"}},
			wantMethod:  "POST",
			wantType:    "application/x-www-form-urlencoded",
			wantBodyHas: "q=song",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.URL = server.URL
			tt.req.Headers = mergeHeaders(tt.req.Headers, "X-Plugin", "p1")
			_, err := client.Do(context.Background(), tt.req)
			require.NoError(t, err)

			s := <-got
			assert.Equal(t, tt.wantMethod, s.method)
			assert.True(t, strings.HasPrefix(s.contentType, tt.wantType), s.contentType)
			assert.Contains(t, s.body, tt.wantBodyHas)
			assert.Equal(t, "scriptbridge-test", s.agent)
			assert.Equal(t, "p1", s.custom)
		})
	}
}

func mergeHeaders(h map[string]string, k, v string) map[string]string {
	out := map[string]string{k: v}
	for key, val := range h {
		out[key] = val
	}
	return out
}

func TestDoRejects(t *testing.T) {
	client := newTestClient()
	ctx := context.Background()

	_, err := client.Do(ctx, Request{URL: "file:///etc/passwd"})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = client.Do(ctx, Request{URL: "http://example.com", Body: "x"})
	assert.Error(t, err)
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient()
	_, err := client.Do(context.Background(), Request{URL: server.URL, Timeout: 50 * time.Millisecond})
	assert.Error(t, err)
}

func TestBreakerOpensPerHost(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		resp, err := client.Do(ctx, Request{URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, 502, resp.StatusCode)
	}

	_, err := client.Do(ctx, Request{URL: server.URL})
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, int32(10), calls.Load())

	host := strings.TrimPrefix(server.URL, "http://")
	assert.Equal(t, "open", client.Breakers()[host])
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("https://api.example.com/lyric", map[string]interface{}{
		"method":  "post",
		"headers": map[string]interface{}{"X-Count": float64(2)},
		"body":    map[string]interface{}{"id": "1"},
		"timeout": float64(1500),
	})
	require.NoError(t, err)
	assert.Equal(t, "POST", req.method())
	assert.Equal(t, "2", req.Headers["X-Count"])
	assert.Equal(t, 1500*time.Millisecond, req.Timeout)

	req, err = ParseRequest("https://api.example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.method())

	_, err = ParseRequest("", nil)
	assert.Error(t, err)

	_, err = ParseRequest("https://api.example.com", map[string]interface{}{"method": "TRACE"})
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	provider := NewProvider(newTestClient(), logging.NewNop())
	assert.Equal(t, "http", provider.Definition().ID)

	appCtx := &types.Context{PluginID: "p1", SessionID: "s1"}
	result, err := provider.Execute(context.Background(), "http.request", map[string]interface{}{"url": server.URL}, appCtx)
	require.NoError(t, err)
	require.True(t, result.Success, result.ErrorMessage())
	assert.Equal(t, 200, result.Data["statusCode"])

	result, err = provider.Execute(context.Background(), "http.request", map[string]interface{}{}, appCtx)
	require.NoError(t, err)
	assert.False(t, result.Success)

	result, err = provider.Execute(context.Background(), "http.breakers", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Data["breakers"], strings.TrimPrefix(server.URL, "http://"))

	result, err = provider.Execute(context.Background(), "http.nope", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}
