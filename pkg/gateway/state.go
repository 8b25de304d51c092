package gateway

// State is the Admin lifecycle state.
type State int

const (
	StateIdle State = iota
	StateOk
	StateUnavailable
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOk:
		return "ok"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// SubState refines StateOk.
type SubState int

const (
	SubOk SubState = iota
	SubSynchronizing
)

// String returns the sub-state name.
func (s SubState) String() string {
	if s == SubSynchronizing {
		return "synchronizing"
	}
	return "ok"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MarshalText encodes the sub-state by name.
func (s SubState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
