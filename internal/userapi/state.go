package userapi

// State is the lifecycle state of the current sandbox
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateDestroyed
)

var stateNames = []string{"unloaded", "loading", "ready", "destroyed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the supervisor
type Status struct {
	State     State  `json:"state"`
	Plugin    *Info  `json:"plugin,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}
