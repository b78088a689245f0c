package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/providers/fetch"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const maxPayloadSize = 8 << 20

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Services is the host service surface the bridge forwards to.
// *service.Registry satisfies it.
type Services interface {
	Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// Fetcher performs the async request capability. *fetch.Client satisfies it.
type Fetcher interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Reply is what the sandbox binding receives for every call
type Reply struct {
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Encode serializes the reply for the script side
func (r Reply) Encode() string {
	out, err := sonic.MarshalString(r)
	if err != nil {
		fallback, _ := sonic.MarshalString(Reply{Error: "encode reply: " + err.Error()})
		return fallback
	}
	return out
}

func fail(err error) Reply {
	return Reply{Error: err.Error()}
}

// Config wires the bridge to its collaborators
type Config struct {
	Services Services
	Fetcher  Fetcher
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// Bridge is the single authenticated ingress for sandbox to host calls.
// At most one grant is bound at a time.
type Bridge struct {
	services Services
	fetcher  Fetcher
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	policy   *bluemonday.Policy
	actions  map[string]capability

	mu    sync.RWMutex
	grant *Grant

	wg sync.WaitGroup
}

// New creates a bridge with no session bound
func New(cfg Config) *Bridge {
	b := &Bridge{
		services: cfg.Services,
		fetcher:  cfg.Fetcher,
		logger:   cfg.Logger.Named("bridge"),
		metrics:  cfg.Metrics,
		policy:   bluemonday.StrictPolicy(),
	}
	b.actions = b.capabilities()
	return b
}

// Bind makes g the live session, replacing any previous grant
func (b *Bridge) Bind(g *Grant) {
	b.mu.Lock()
	prev := b.grant
	b.grant = g
	b.mu.Unlock()

	if prev != nil && prev != g {
		prev.revoke()
	}
}

// Revoke invalidates g. Calls presenting its secret fail from now on and
// its pending requests are cancelled.
func (b *Bridge) Revoke(g *Grant) {
	if g == nil {
		return
	}
	b.mu.Lock()
	if b.grant == g {
		b.grant = nil
	}
	b.mu.Unlock()

	if g.revoke() {
		b.logger.Debug("Grant revoked", logging.Plugin(g.pluginID, g.sessionID)...)
	}
}

// Wait blocks until every async request goroutine has returned
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// Actions lists the capability names the bridge accepts
func (b *Bridge) Actions() []string {
	out := make([]string, 0, len(b.actions))
	for name := range b.actions {
		out = append(out, name)
	}
	return out
}

// Call authorizes and executes one sandbox call. It never panics and
// never returns the secret.
func (b *Bridge) Call(presented Secret, action, payload string) Reply {
	b.mu.RLock()
	grant := b.grant
	b.mu.RUnlock()

	if grant == nil || !grant.matches(presented) {
		b.reject("secret", action, nil)
		return fail(ErrUnauthorized)
	}

	handler, ok := b.actions[action]
	if !ok {
		b.reject("unknown_action", action, grant)
		return fail(fmt.Errorf("%w: %s", ErrUnknownAction, action))
	}

	params, err := decodePayload(payload)
	if err != nil {
		b.reject("payload", action, grant)
		return fail(err)
	}

	result, err := b.invoke(handler, grant, params)
	if err != nil {
		b.metrics.RecordBridgeCall(action, "error")
		return fail(err)
	}
	b.metrics.RecordBridgeCall(action, "ok")
	return Reply{OK: true, Result: result}
}

func (b *Bridge) invoke(handler capability, grant *Grant, params map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Bridge capability panicked",
				append(logging.Plugin(grant.pluginID, grant.sessionID), zap.Any("panic", r))...)
			result, err = nil, errors.New("internal error")
		}
	}()
	return handler(grant, params)
}

func (b *Bridge) reject(reason, action string, grant *Grant) {
	b.metrics.RecordBridgeRejection(reason)
	fields := []zap.Field{zap.String("action", action), zap.String("reason", reason)}
	if grant != nil {
		fields = append(fields, logging.Plugin(grant.pluginID, grant.sessionID)...)
	}
	b.logger.Debug("Bridge call rejected", fields...)
}

func decodePayload(payload string) (map[string]interface{}, error) {
	if payload == "" || payload == "null" {
		return map[string]interface{}{}, nil
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPayload, maxPayloadSize)
	}
	var params map[string]interface{}
	if err := sonic.UnmarshalString(payload, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params, nil
}
