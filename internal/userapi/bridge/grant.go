package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/events"
)

// DeliverFunc hands an async completion back to the session's serial queue.
// It must not block.
type DeliverFunc func(requestKey, payload string)

// GrantConfig describes the session a grant authorizes
type GrantConfig struct {
	PluginID  string
	SessionID string
	Secret    Secret
	Events    *events.Emitter
	Deliver   DeliverFunc
}

// Grant is the bridge's view of one live session. It is created by the
// supervisor and becomes useless once revoked.
type Grant struct {
	pluginID  string
	sessionID string
	secret    Secret
	events    *events.Emitter
	deliver   DeliverFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	requests map[string]context.CancelFunc

	alerted atomic.Bool
	revoked atomic.Bool
}

// NewGrant creates a grant for one session
func NewGrant(cfg GrantConfig) *Grant {
	ctx, cancel := context.WithCancel(context.Background())
	deliver := cfg.Deliver
	if deliver == nil {
		deliver = func(string, string) {}
	}
	return &Grant{
		pluginID:  cfg.PluginID,
		sessionID: cfg.SessionID,
		secret:    cfg.Secret,
		events:    cfg.Events,
		deliver:   deliver,
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(map[string]context.CancelFunc),
	}
}

// SessionID returns the session the grant belongs to
func (g *Grant) SessionID() string {
	return g.sessionID
}

// Active reports whether the grant has not been revoked
func (g *Grant) Active() bool {
	return !g.revoked.Load()
}

func (g *Grant) matches(presented Secret) bool {
	return g.Active() && g.secret.Equal(presented)
}

func (g *Grant) appContext() *types.Context {
	return &types.Context{PluginID: g.pluginID, SessionID: g.sessionID}
}

// emit publishes through the session emitter, which stops accepting once
// the session is revoked
func (g *Grant) emit(name string, body interface{}) error {
	if !g.Active() {
		return events.ErrRevoked
	}
	return g.events.Emit(name, body)
}

// track registers an in-flight request. It returns nil once revoked.
func (g *Grant) track(key string) context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.Active() {
		return nil
	}
	ctx, cancel := context.WithCancel(g.ctx)
	g.requests[key] = cancel
	return ctx
}

// finish forgets key and reports whether it was still pending
func (g *Grant) finish(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	cancel, ok := g.requests[key]
	if ok {
		cancel()
		delete(g.requests, key)
	}
	return ok
}

// Pending returns the number of in-flight requests
func (g *Grant) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *Grant) revoke() bool {
	if !g.revoked.CompareAndSwap(false, true) {
		return false
	}
	g.mu.Lock()
	for key, cancel := range g.requests {
		cancel()
		delete(g.requests, key)
	}
	g.mu.Unlock()
	g.cancel()
	return true
}
