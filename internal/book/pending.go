package book

import (
	"github.com/gammazero/deque"

	"github.com/rickgao/booksync/internal/model"
)

// PendingCache buffers deltas received before the store is seeded.
// The zero value is an empty cache.
type PendingCache struct {
	q deque.Deque[model.Delta]
}

// Append adds d at the back of the cache.
func (c *PendingCache) Append(d model.Delta) {
	c.q.PushBack(d)
}

// First returns the oldest buffered delta.
func (c *PendingCache) First() (model.Delta, bool) {
	if c.q.Len() == 0 {
		return model.Delta{}, false
	}
	return c.q.Front(), true
}

// Len returns the number of buffered deltas.
func (c *PendingCache) Len() int {
	return c.q.Len()
}

// Drain returns every buffered delta in arrival order and empties the cache.
func (c *PendingCache) Drain() []model.Delta {
	out := make([]model.Delta, 0, c.q.Len())
	for c.q.Len() > 0 {
		out = append(out, c.q.PopFront())
	}
	return out
}

// Clear drops every buffered delta.
func (c *PendingCache) Clear() {
	c.q.Clear()
}
