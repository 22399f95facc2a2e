package session

import "fmt"

// State is the one operation a session may have in flight. Everything other
// than Idle rejects further commands with ErrBusy.
type State int

const (
	Idle State = iota
	CreatingChat
	Sending
	Streaming
	LoadingChat
	Deleting
)

var stateNames = map[State]string{
	Idle:         "idle",
	CreatingChat: "creating_chat",
	Sending:      "sending",
	Streaming:    "streaming",
	LoadingChat:  "loading_chat",
	Deleting:     "deleting",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// InputLocked reports whether the composer should be disabled.
func (s State) InputLocked() bool {
	return s == Sending || s == Streaming || s == LoadingChat || s == CreatingChat
}
