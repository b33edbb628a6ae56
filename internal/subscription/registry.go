package subscription

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrExists         = errors.New("channel already subscribed")
	ErrUnknownChannel = errors.New("channel not subscribed")
)

// Entry is the registry record of one channel.
type Entry struct {
	Channel    string
	Symbol     string
	Limit      int
	State      State
	Attempts   int
	Generation uint64

	CreatedAt time.Time
	ChangedAt time.Time
}

// transition moves the entry to the given state.
func (e *Entry) transition(to State) error {
	if !CanTransition(e.State, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, e.Channel, e.State, to)
	}
	e.State = to
	e.ChangedAt = time.Now()
	return nil
}

// Registry holds one Entry per channel.
// Not safe for concurrent use; the owner serializes access.
type Registry struct {
	entries map[string]*Entry
	lastGen uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Add registers channel in StateSubscribing with a fresh generation.
func (r *Registry) Add(channel, symbol string, limit int) (*Entry, error) {
	if _, ok := r.entries[channel]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, channel)
	}

	r.lastGen++
	now := time.Now()
	e := &Entry{
		Channel:    channel,
		Symbol:     symbol,
		Limit:      limit,
		State:      StateSubscribing,
		Generation: r.lastGen,
		CreatedAt:  now,
		ChangedAt:  now,
	}
	r.entries[channel] = e
	return e, nil
}

// Get returns the entry for channel.
func (r *Registry) Get(channel string) (*Entry, bool) {
	e, ok := r.entries[channel]
	return e, ok
}

// Lookup returns the entry for channel only if it still has generation gen.
func (r *Registry) Lookup(channel string, gen uint64) (*Entry, bool) {
	e, ok := r.entries[channel]
	if !ok || e.Generation != gen {
		return nil, false
	}
	return e, true
}

// Remove deletes the entry for channel and returns it.
func (r *Registry) Remove(channel string) (*Entry, bool) {
	e, ok := r.entries[channel]
	if ok {
		delete(r.entries, channel)
	}
	return e, ok
}

// Transition moves channel to state to.
func (r *Registry) Transition(channel string, to State) error {
	e, ok := r.entries[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return e.transition(to)
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Channels returns the registered channels in sorted order.
func (r *Registry) Channels() []string {
	out := make([]string, 0, len(r.entries))
	for ch := range r.entries {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Count returns how many channels are in state s.
func (r *Registry) Count(s State) int {
	n := 0
	for _, e := range r.entries {
		if e.State == s {
			n++
		}
	}
	return n
}

// Reset removes every entry. Generations keep increasing across resets.
func (r *Registry) Reset() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.entries = make(map[string]*Entry)
	return out
}
