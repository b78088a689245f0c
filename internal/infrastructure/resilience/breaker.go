package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures breaker behavior
type Settings struct {
	// Trials is how many calls a half-open breaker lets through, and how many
	// must succeed before it closes again
	Trials uint32
	// Window is how often a closed breaker forgets its counts
	Window time.Duration
	// Cooldown is how long an open breaker rejects calls
	Cooldown time.Duration
	// Trip decides, after a failure, whether a closed breaker opens
	Trip func(counts Counts) bool
	// OnStateChange is called under the breaker lock; it must not call back in
	OnStateChange func(name string, from, to State)
}

// Counts holds breaker statistics for the current window
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker is a three-state circuit breaker
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	epoch  uint64
	expiry time.Time
}

// New creates a breaker with defaults filled in
func New(name string, settings Settings) *Breaker {
	if settings.Trials == 0 {
		settings.Trials = 1
	}
	if settings.Window == 0 {
		settings.Window = time.Minute
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = time.Minute
	}
	if settings.Trip == nil {
		settings.Trip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		expiry:   time.Now().Add(settings.Window),
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refresh(time.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn if the breaker admits it and records the outcome. A panic in fn
// counts as a failure and is re-raised.
func (b *Breaker) Do(fn func() error) (err error) {
	epoch, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(epoch, false)
			panic(r)
		}
	}()

	err = fn()
	b.record(epoch, err == nil)
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.refresh(time.Now())
	switch {
	case state == StateOpen:
		return b.epoch, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.Trials:
		return b.epoch, ErrTooManyRequests
	}

	b.counts.Requests++
	return b.epoch, nil
}

func (b *Breaker) record(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.refresh(now)
	// outcome of a call admitted in an earlier window or state
	if epoch != b.epoch {
		return
	}

	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Trials {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if b.settings.Trip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// refresh applies time-based transitions and returns the resulting state
func (b *Breaker) refresh(now time.Time) State {
	switch b.state {
	case StateClosed:
		if b.expiry.Before(now) {
			b.counts = Counts{}
			b.epoch++
			b.expiry = now.Add(b.settings.Window)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.epoch++

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Window)
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// Set holds one breaker per key, created on first use
type Set struct {
	settings Settings
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewSet creates an empty set whose breakers share settings
func NewSet(settings Settings) *Set {
	return &Set{settings: settings, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key
func (s *Set) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = New(key, s.settings)
		s.breakers[key] = b
	}
	return b
}

// States returns the current state of every breaker, keyed by name
func (s *Set) States() map[string]string {
	s.mu.Lock()
	breakers := make([]*Breaker, 0, len(s.breakers))
	for _, b := range s.breakers {
		breakers = append(breakers, b)
	}
	s.mu.Unlock()

	out := make(map[string]string, len(breakers))
	for _, b := range breakers {
		out[b.Name()] = b.State().String()
	}
	return out
}
