package events

import (
	"errors"
	"sync/atomic"
)

var ErrRevoked = errors.New("event emitter revoked")

// Emitter is a handle for publishing into a Channel. Emitters opened for a
// plugin session stop working once the session is revoked.
type Emitter struct {
	channel   *Channel
	pluginID  string
	sessionID string
	revoked   atomic.Bool
}

// Emit queues an event without blocking on delivery.
func (e *Emitter) Emit(name string, body interface{}) error {
	if e == nil || e.channel == nil {
		return ErrRevoked
	}
	return e.channel.emit(e, name, body)
}

// Revoked reports whether the emitter has been revoked
func (e *Emitter) Revoked() bool {
	return e == nil || e.revoked.Load()
}

// SessionID returns the session this emitter is scoped to, empty for the host emitter
func (e *Emitter) SessionID() string {
	if e == nil {
		return ""
	}
	return e.sessionID
}
