package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

func outcome(success bool) func() error {
	return func() error {
		if success {
			return nil
		}
		return errFailed
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []bool // true = success, false = failure
		want     State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{Window: time.Minute, Cooldown: time.Minute},
			calls:    []bool{true, true, true},
			want:     StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				Window:   time.Minute,
				Cooldown: time.Minute,
				Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
			},
			calls: []bool{false, false, false},
			want:  StateOpen,
		},
		{
			name: "success resets the failure streak",
			settings: Settings{
				Window:   time.Minute,
				Cooldown: time.Minute,
				Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
			},
			calls: []bool{false, true, false},
			want:  StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)
			for _, success := range tt.calls {
				_ = breaker.Do(outcome(success))
			}
			assert.Equal(t, tt.want, breaker.State())
		})
	}
}

func TestBreakerRejectsWhenOpen(t *testing.T) {
	breaker := New("test", Settings{
		Cooldown: time.Minute,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.ErrorIs(t, breaker.Do(outcome(false)), errFailed)

	called := false
	err := breaker.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	breaker := New("upstream", Settings{
		Trials:   2,
		Cooldown: 10 * time.Millisecond,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(outcome(false))
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(outcome(true)))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(outcome(true)))
	assert.Equal(t, StateClosed, breaker.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("test", Settings{
		Cooldown: 10 * time.Millisecond,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	_ = breaker.Do(outcome(false))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = breaker.Do(outcome(false))
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{Window: time.Minute})

	for i := 0; i < 3; i++ {
		_ = breaker.Do(outcome(true))
	}
	_ = breaker.Do(outcome(false))

	counts := breaker.Counts()
	assert.Equal(t, uint32(4), counts.Requests)
	assert.Equal(t, uint32(3), counts.Successes)
	assert.Equal(t, uint32(1), counts.Failures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{})

	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), breaker.Counts().Failures)
}

func TestSet(t *testing.T) {
	set := NewSet(Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }})

	a := set.Get("a.example.com")
	assert.Same(t, a, set.Get("a.example.com"))

	_ = a.Do(outcome(false))
	_ = set.Get("b.example.com").Do(outcome(true))

	assert.Equal(t, map[string]string{
		"a.example.com": "open",
		"b.example.com": "closed",
	}, set.States())
}
