package userapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/config"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/shared/id"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/events"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/sandbox"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Config wires a supervisor
type Config struct {
	Runtime config.RuntimeConfig
	Bridge  *bridge.Bridge
	Events  *events.Channel
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// session is everything that belongs to one load. It is discarded whole.
type session struct {
	id         string
	descriptor Descriptor
	secret     bridge.Secret
	grant      *bridge.Grant
	emitter    *events.Emitter
	runtime    *sandbox.Runtime
	logger     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Supervisor owns the single live sandbox and serializes every operation
// on it onto a private queue.
type Supervisor struct {
	cfg     config.RuntimeConfig
	bridge  *bridge.Bridge
	events  *events.Channel
	logger  *logging.Logger
	metrics *monitoring.Metrics
	queue   *queue

	mu      sync.Mutex
	current *session
	state   State
	closed  bool
}

// New creates a supervisor with nothing loaded
func New(cfg Config) (*Supervisor, error) {
	if cfg.Bridge == nil {
		return nil, errors.New("userapi: bridge is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("userapi: event channel is required")
	}
	logger := cfg.Logger.Named("supervisor")

	s := &Supervisor{
		cfg:     cfg.Runtime,
		bridge:  cfg.Bridge,
		events:  cfg.Events,
		logger:  logger,
		metrics: cfg.Metrics,
		queue:   newQueue(cfg.Runtime.QueueSize, logger),
	}
	s.metrics.SetSandboxState(StateUnloaded.String(), stateNames)
	return s, nil
}

// Status returns the current state and, when a plugin is loading or ready, its info
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{State: s.state}
	if s.current != nil {
		info := s.current.descriptor.Info()
		status.Plugin = &info
		status.SessionID = s.current.id
	}
	return status
}

// State returns the current state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load tears down whatever is loaded and evaluates d in a fresh sandbox
// with a fresh secret. It returns once d is Ready or has failed. Every
// failure is also reported to the host as an error event.
func (s *Supervisor) Load(ctx context.Context, d Descriptor) (Info, error) {
	info, err := s.startLoad(ctx, d)
	if err != nil {
		_ = s.events.Host().Emit(bridge.EventError, map[string]interface{}{
			"plugin_id": d.ID,
			"message":   loadMessage(err),
		})
	}
	return info, err
}

func (s *Supervisor) startLoad(ctx context.Context, d Descriptor) (Info, error) {
	if err := d.Validate(); err != nil {
		s.metrics.RecordLoad("invalid", 0)
		return Info{}, &LoadError{PluginID: d.ID, Err: err}
	}
	d = d.Normalize()

	if err := s.checkOpen(); err != nil {
		return Info{}, err
	}

	// stop a running evaluation now rather than waiting behind it
	s.preempt("reload")

	var info Info
	err := s.queue.call(ctx, func() error {
		var err error
		info, err = s.load(ctx, d)
		return err
	})
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			err = &LoadError{PluginID: d.ID, Err: err}
		}
		return Info{}, err
	}
	return info, nil
}

// load runs on the queue
func (s *Supervisor) load(ctx context.Context, d Descriptor) (Info, error) {
	s.preempt("reload")

	sess, err := s.newSession(d)
	if err != nil {
		s.metrics.RecordLoad("error", 0)
		return Info{}, &LoadError{PluginID: d.ID, Err: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.teardown(sess)
		return Info{}, ErrClosed
	}
	s.current = sess
	s.setState(StateLoading)
	s.mu.Unlock()

	s.bridge.Bind(sess.grant)

	evalCtx, cancel := mergeContext(ctx, sess.ctx)
	defer cancel()

	start := time.Now()
	err = sess.runtime.Evaluate(evalCtx, d.ID+".js", d.Script)
	elapsed := time.Since(start)

	s.mu.Lock()
	superseded := s.current != sess
	if err != nil && !superseded {
		s.current = nil
		s.setState(StateDestroyed)
	}
	if err == nil && !superseded {
		s.setState(StateReady)
	}
	s.mu.Unlock()

	switch {
	case superseded:
		s.teardown(sess)
		s.metrics.RecordLoad("superseded", elapsed)
		return Info{}, &LoadError{PluginID: d.ID, Err: ErrSuperseded}
	case err != nil:
		s.teardown(sess)
		s.metrics.RecordLoad("error", elapsed)
		sess.logger.Warn("Plugin failed to load", zap.Error(err))
		return Info{}, &LoadError{PluginID: d.ID, Err: err}
	}

	s.metrics.RecordLoad("ok", elapsed)
	sess.logger.Info("Plugin ready", zap.Duration("eval", elapsed))
	info := d.Info()
	_ = sess.emitter.Emit(bridge.EventInit, info)
	return info, nil
}

func (s *Supervisor) newSession(d Descriptor) (*session, error) {
	secret, err := bridge.NewSecret()
	if err != nil {
		return nil, err
	}

	sessionID := id.NewSessionID().String()
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:         sessionID,
		descriptor: d,
		secret:     secret,
		emitter:    s.events.Open(d.ID, sessionID),
		logger:     s.logger.With(logging.Plugin(d.ID, sessionID)...),
		ctx:        ctx,
		cancel:     cancel,
	}
	sess.grant = bridge.NewGrant(bridge.GrantConfig{
		PluginID:  d.ID,
		SessionID: sessionID,
		Secret:    secret,
		Events:    sess.emitter,
		Deliver:   s.deliverer(sess),
	})

	// the secret stays in this closure; script code only sees the function
	b := s.bridge
	native := func(action, payload string) string {
		return b.Call(secret, action, payload).Encode()
	}

	runtime, err := sandbox.New(sandbox.Config{
		Timeout:       s.cfg.EvalTimeout,
		MaxCallStack:  s.cfg.MaxCallStack,
		EnableConsole: s.cfg.Console,
		Version:       sandbox.DefaultConfig().Version,
		Env:           sandbox.DefaultConfig().Env,
	}, sandbox.Bindings{
		Native: native,
		Info:   d.Info(),
	})
	if err != nil {
		cancel()
		s.bridge.Revoke(sess.grant)
		s.events.Revoke(sess.emitter)
		return nil, err
	}
	sess.runtime = runtime
	return sess, nil
}

// DispatchAction delivers an action to the Ready sandbox and waits for the
// handler to return. It reports false with ErrNotReady when nothing is Ready.
// A handler error is reported as a script-error event; the action still
// counts as delivered.
func (s *Supervisor) DispatchAction(ctx context.Context, action, payload string) (bool, error) {
	if payload != "" {
		var decoded interface{}
		if err := sonic.UnmarshalString(payload, &decoded); err != nil {
			return false, ErrInvalidPayload
		}
	}

	sess := s.ready()
	if sess == nil {
		s.metrics.RecordAction("not_ready", 0)
		return false, ErrNotReady
	}

	var delivered atomic.Bool
	err := s.queue.call(ctx, func() error {
		// destroyed or replaced while waiting in the queue
		if s.ready() != sess {
			return ErrNotReady
		}
		delivered.Store(true)
		return s.dispatch(ctx, sess, action, payload)
	})

	switch {
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrClosed):
		s.metrics.RecordAction("not_ready", 0)
		return false, ErrNotReady
	case !delivered.Load():
		return false, err
	}
	return true, err
}

// dispatch runs on the queue
func (s *Supervisor) dispatch(ctx context.Context, sess *session, action, payload string) error {
	actionCtx, cancel := mergeContext(ctx, sess.ctx)
	defer cancel()
	if s.cfg.ActionTimeout > 0 {
		var timeoutCancel context.CancelFunc
		actionCtx, timeoutCancel = context.WithTimeout(actionCtx, s.cfg.ActionTimeout)
		defer timeoutCancel()
	}

	start := time.Now()
	err := sess.runtime.Dispatch(actionCtx, action, payload)
	elapsed := time.Since(start)

	if err == nil {
		s.metrics.RecordAction("ok", elapsed)
		return nil
	}
	if errors.Is(err, sandbox.ErrClosed) || sess.ctx.Err() != nil {
		s.metrics.RecordAction("not_ready", elapsed)
		return ErrNotReady
	}

	s.metrics.RecordAction("script_error", elapsed)
	s.reportScriptError(sess, action, err)

	var scriptErr *sandbox.ScriptError
	if errors.As(err, &scriptErr) {
		return nil
	}
	// timeouts and cancellation are surfaced to the caller as well
	return fmt.Errorf("action %s: %w", action, err)
}

// deliverer returns the bridge completion hook for sess. Completions for a
// session that is gone are dropped.
func (s *Supervisor) deliverer(sess *session) bridge.DeliverFunc {
	return func(requestKey, payload string) {
		err := s.queue.post(func() {
			if sess.ctx.Err() != nil {
				return
			}
			ctx, cancel := context.WithCancel(sess.ctx)
			defer cancel()
			if s.cfg.ActionTimeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, s.cfg.ActionTimeout)
				defer cancel()
			}
			if err := sess.runtime.Complete(ctx, requestKey, payload); err != nil && !errors.Is(err, sandbox.ErrClosed) {
				s.reportScriptError(sess, "request", err)
			}
		})
		if err != nil {
			sess.logger.Warn("Request completion dropped", zap.String("request_key", requestKey), zap.Error(err))
		}
	}
}

func (s *Supervisor) reportScriptError(sess *session, action string, err error) {
	body := map[string]interface{}{"action": action, "message": err.Error()}
	var scriptErr *sandbox.ScriptError
	if errors.As(err, &scriptErr) {
		body["message"] = scriptErr.Message
		body["stack"] = scriptErr.Stack
	}
	sess.logger.Debug("Script error", zap.String("action", action), zap.Error(err))
	_ = sess.emitter.Emit(bridge.EventScriptError, body)
}

// Destroy tears down the loaded sandbox. It is idempotent and safe with
// nothing loaded.
func (s *Supervisor) Destroy(_ context.Context) error {
	s.preempt("destroy")
	return nil
}

// Close destroys the sandbox, stops the queue and waits for in-flight
// bridge requests to finish.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.preempt("close")
	s.queue.close()
	s.bridge.Wait()
	return nil
}

// preempt detaches the current session and tears it down from the caller's
// goroutine, interrupting any script code running on the queue
func (s *Supervisor) preempt(reason string) {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	if sess != nil {
		s.setState(StateDestroyed)
	}
	s.mu.Unlock()

	if sess == nil {
		return
	}
	sess.logger.Info("Tearing down sandbox", zap.String("reason", reason))
	s.teardown(sess)
}

// teardown releases a detached session. Order matters: the secret dies
// first so concurrent bridge calls fail closed, then script code is
// interrupted, then undelivered events are dropped.
func (s *Supervisor) teardown(sess *session) {
	sess.once.Do(func() {
		s.bridge.Revoke(sess.grant)
		sess.cancel()
		if sess.runtime != nil {
			_ = sess.runtime.Close()
		}
		s.events.Revoke(sess.emitter)
		s.metrics.IncDestroys()
	})
}

func (s *Supervisor) ready() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil
	}
	return s.current
}

func (s *Supervisor) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// setState must be called with mu held
func (s *Supervisor) setState(state State) {
	s.state = state
	s.metrics.SetSandboxState(state.String(), stateNames)
}

// mergeContext is cancelled when either parent is
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func loadMessage(err error) string {
	var scriptErr *sandbox.ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr.Message
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Err.Error()
	}
	return err.Error()
}
