package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateSubscribing, "subscribing"},
		{StateAwaitingSnapshot, "awaiting_snapshot"},
		{StateSyncing, "syncing"},
		{StateSynced, "synced"},
		{StateFailed, "failed"},
		{State(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateSubscribing, StateAwaitingSnapshot, true},
		{StateAwaitingSnapshot, StateSyncing, true},
		{StateSyncing, StateSynced, true},
		{StateSyncing, StateAwaitingSnapshot, true},
		{StateSyncing, StateFailed, true},
		{StateSynced, StateAwaitingSnapshot, true},
		{StateSubscribing, StateSynced, false},
		{StateAwaitingSnapshot, StateSynced, false},
		{StateSynced, StateFailed, false},
		{StateFailed, StateAwaitingSnapshot, false},
		{StateFailed, StateSubscribing, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestState_Buffering(t *testing.T) {
	assert.True(t, StateSubscribing.Buffering())
	assert.True(t, StateAwaitingSnapshot.Buffering())
	assert.True(t, StateSyncing.Buffering())
	assert.False(t, StateSynced.Buffering())
	assert.False(t, StateFailed.Buffering())
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()

	e, err := r.Add("market.btcusdt.depth", "btcusdt", 20)
	require.NoError(t, err)
	assert.Equal(t, StateSubscribing, e.State)
	assert.Equal(t, 0, e.Attempts)
	assert.Equal(t, 20, e.Limit)

	got, ok := r.Get("market.btcusdt.depth")
	require.True(t, ok)
	assert.Same(t, e, got)

	_, err = r.Add("market.btcusdt.depth", "btcusdt", 20)
	assert.ErrorIs(t, err, ErrExists)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_GenerationGuardsLookup(t *testing.T) {
	r := NewRegistry()

	first, err := r.Add("market.ethusdt.depth", "ethusdt", 0)
	require.NoError(t, err)
	gen := first.Generation

	_, ok := r.Lookup("market.ethusdt.depth", gen)
	assert.True(t, ok)

	r.Remove("market.ethusdt.depth")
	_, ok = r.Lookup("market.ethusdt.depth", gen)
	assert.False(t, ok, "lookup after remove")

	second, err := r.Add("market.ethusdt.depth", "ethusdt", 0)
	require.NoError(t, err)
	assert.Greater(t, second.Generation, gen)

	_, ok = r.Lookup("market.ethusdt.depth", gen)
	assert.False(t, ok, "stale generation must not match a resubscribed channel")
	_, ok = r.Lookup("market.ethusdt.depth", second.Generation)
	assert.True(t, ok)
}

func TestRegistry_Transition(t *testing.T) {
	r := NewRegistry()
	ch := "market.btcusdt.depth"
	_, err := r.Add(ch, "btcusdt", 0)
	require.NoError(t, err)

	require.NoError(t, r.Transition(ch, StateAwaitingSnapshot))
	require.NoError(t, r.Transition(ch, StateSyncing))
	require.NoError(t, r.Transition(ch, StateAwaitingSnapshot))
	require.NoError(t, r.Transition(ch, StateSyncing))
	require.NoError(t, r.Transition(ch, StateSynced))

	err = r.Transition(ch, StateSyncing)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	e, _ := r.Get(ch)
	assert.Equal(t, StateSynced, e.State, "rejected transition must not change state")

	err = r.Transition("market.nope.depth", StateSynced)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestRegistry_CountAndChannels(t *testing.T) {
	r := NewRegistry()
	for _, sym := range []string{"ethusdt", "btcusdt", "solusdt"} {
		_, err := r.Add("market."+sym+".depth", sym, 0)
		require.NoError(t, err)
	}
	require.NoError(t, r.Transition("market.btcusdt.depth", StateAwaitingSnapshot))

	assert.Equal(t, []string{"market.btcusdt.depth", "market.ethusdt.depth", "market.solusdt.depth"}, r.Channels())
	assert.Equal(t, 2, r.Count(StateSubscribing))
	assert.Equal(t, 1, r.Count(StateAwaitingSnapshot))
	assert.Equal(t, 0, r.Count(StateSynced))
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Add("market.a.depth", "a", 0)
	_, _ = r.Add("market.b.depth", "b", 0)

	removed := r.Reset()
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, r.Len())

	c, err := r.Add("market.a.depth", "a", 0)
	require.NoError(t, err)
	assert.Greater(t, c.Generation, a.Generation)
}

func TestState_MarshalText(t *testing.T) {
	b, err := StateAwaitingSnapshot.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "awaiting_snapshot", string(b))
}
