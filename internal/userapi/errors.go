package userapi

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady          = errors.New("no plugin is ready")
	ErrClosed            = errors.New("supervisor is closed")
	ErrSuperseded        = errors.New("load superseded by a newer request")
	ErrQueueFull         = errors.New("execution queue is full")
	ErrInvalidPayload    = errors.New("payload must be valid JSON")
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")
)

// LoadError reports why a plugin failed to reach Ready
type LoadError struct {
	PluginID string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %q: %v", e.PluginID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
