package events

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/shared/id"
	"go.uber.org/zap"
)

var (
	ErrChannelClosed = errors.New("event channel is closed")
	ErrQueueFull     = errors.New("event queue is full")
)

// DefaultQueueLimit caps undelivered events when no limit is configured
const DefaultQueueLimit = 1024

// Option configures a Channel
type Option func(*Channel)

// WithQueueLimit caps the number of undelivered events. Emits beyond the
// cap fail with ErrQueueFull. Non-positive values keep the default.
func WithQueueLimit(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.limit = n
		}
	}
}

// Event is one record delivered to the host observer.
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Body      interface{} `json:"body,omitempty"`
	PluginID  string      `json:"plugin_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Seq       uint64      `json:"seq"`
	Time      time.Time   `json:"time"`
}

// Observer receives events in emission order on a single goroutine.
//
// OnEvent must not block on Supervisor operations: revoking a session waits
// for any in-progress delivery to return.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// OnEvent calls f(e)
func (f ObserverFunc) OnEvent(e Event) { f(e) }

type pending struct {
	event   Event
	emitter *Emitter
}

// Channel fans events from every emitter into one ordered stream.
type Channel struct {
	observer Observer
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pending
	limit  int
	seq    uint64
	closed bool

	// held while the observer runs; Revoke acquires it as a barrier
	deliverMu sync.Mutex

	host *Emitter
	done chan struct{}
}

// NewChannel starts a channel delivering to observer.
func NewChannel(observer Observer, logger *logging.Logger, metrics *monitoring.Metrics, opts ...Option) *Channel {
	if observer == nil {
		observer = ObserverFunc(func(Event) {})
	}
	c := &Channel{
		observer: observer,
		logger:   logger.Named("events"),
		metrics:  metrics,
		limit:    DefaultQueueLimit,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cond = sync.NewCond(&c.mu)
	c.host = &Emitter{channel: c}
	go c.run()
	return c
}

// Host returns the emitter for runtime-level events that are not tied to a
// plugin session. It is never revoked.
func (c *Channel) Host() *Emitter {
	return c.host
}

// Open returns an emitter scoped to one plugin session.
func (c *Channel) Open(pluginID, sessionID string) *Emitter {
	return &Emitter{channel: c, pluginID: pluginID, sessionID: sessionID}
}

// Revoke stops all delivery for e. Undelivered events are dropped and, once
// Revoke returns, the observer will not see another event from e.
func (c *Channel) Revoke(e *Emitter) {
	if e == nil || e == c.host {
		return
	}
	if !e.revoked.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	kept := c.queue[:0]
	dropped := 0
	for _, p := range c.queue {
		if p.emitter == e {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = pending{}
	}
	c.queue = kept
	c.mu.Unlock()

	// Wait out a delivery that read e before it was revoked
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	c.metrics.RecordEventsDropped("revoked", dropped)
	if dropped > 0 {
		c.logger.Debug("Dropped undelivered events",
			zap.String("session_id", e.sessionID), zap.Int("count", dropped))
	}
}

// Close stops delivery. Queued events are discarded.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	dropped := len(c.queue)
	c.queue = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	<-c.done
	c.metrics.RecordEventsDropped("closed", dropped)
}

func (c *Channel) emit(e *Emitter, name string, body interface{}) error {
	if e.revoked.Load() {
		return ErrRevoked
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	// checked again under mu so an event cannot slip in behind Revoke's sweep
	if e.revoked.Load() {
		return ErrRevoked
	}
	if len(c.queue) >= c.limit {
		c.metrics.RecordEventsDropped("overflow", 1)
		c.logger.Debug("Event queue full, dropping event",
			zap.String("event", name), zap.String("session_id", e.sessionID))
		return ErrQueueFull
	}

	c.seq++
	c.queue = append(c.queue, pending{
		event: Event{
			ID:        id.NewEventID().String(),
			Name:      name,
			Body:      body,
			PluginID:  e.pluginID,
			SessionID: e.sessionID,
			Seq:       c.seq,
			Time:      time.Now(),
		},
		emitter: e,
	})
	c.cond.Signal()
	c.metrics.RecordEvent(name)
	return nil
}

func (c *Channel) run() {
	defer close(c.done)

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue[0] = pending{}
		c.queue = c.queue[1:]
		// deliverMu is taken before mu is released so Revoke cannot pass its
		// barrier between the dequeue and the revoked check below
		c.deliverMu.Lock()
		c.mu.Unlock()

		if !next.emitter.revoked.Load() {
			c.deliver(next.event)
		}
		c.deliverMu.Unlock()
	}
}

func (c *Channel) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Event observer panicked", zap.String("event", e.Name), zap.Any("panic", r))
		}
	}()
	c.observer.OnEvent(e)
}
