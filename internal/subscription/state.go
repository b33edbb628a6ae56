package subscription

import (
	"errors"
	"fmt"
)

// State is the synchronization state of one channel.
type State int

const (
	StateSubscribing State = iota
	StateAwaitingSnapshot
	StateSyncing
	StateSynced
	StateFailed
)

// ErrInvalidTransition is returned for a state change not in the table.
var ErrInvalidTransition = errors.New("invalid subscription state transition")

var stateNames = map[State]string{
	StateSubscribing:      "subscribing",
	StateAwaitingSnapshot: "awaiting_snapshot",
	StateSyncing:          "syncing",
	StateSynced:           "synced",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed successor states.
var transitions = map[State][]State{
	StateSubscribing:      {StateAwaitingSnapshot, StateFailed},
	StateAwaitingSnapshot: {StateSyncing, StateFailed},
	StateSyncing:          {StateSynced, StateAwaitingSnapshot, StateFailed},
	StateSynced:           {StateAwaitingSnapshot},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Buffering reports whether deltas arriving in this state must be cached
// rather than applied.
func (s State) Buffering() bool {
	return s == StateSubscribing || s == StateAwaitingSnapshot || s == StateSyncing
}
