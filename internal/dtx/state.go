package dtx

import (
	"fmt"
	"strings"
)

// State is the convergence state of one participant of a transaction.
// States are ordered; a participant only ever moves forward.
type State uint8

// Participant states in their only legal order.
const (
	InProgress State = iota
	Executed
	Persistent
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s <= Persistent
}

// Advance returns the later of s and incoming.
func (s State) Advance(incoming State) State {
	if incoming > s {
		return incoming
	}
	return s
}

func (s State) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Executed:
		return "executed"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ParseState accepts the names produced by String, case-insensitively.
// Underscores and the short forms "progress" and "persist" are tolerated
// for command-line use.
func ParseState(s string) (State, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "in-progress", "inprogress", "progress":
		return InProgress, nil
	case "executed":
		return Executed, nil
	case "persistent", "persist":
		return Persistent, nil
	default:
		return 0, fmt.Errorf("dtx: unknown participant state %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("dtx: invalid participant state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
