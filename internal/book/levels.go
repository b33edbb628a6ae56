package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/model"
)

// LevelSet maps price to size for one side of a book.
// Keys are canonical decimal strings so "10.30" and "10.3" are one level.
type LevelSet struct {
	levels map[string]model.Level
}

// NewLevelSet creates an empty LevelSet.
func NewLevelSet() *LevelSet {
	return &LevelSet{levels: make(map[string]model.Level)}
}

// Upsert sets size at price, replacing any previous size.
// A size of zero (or below) removes the price; removing an absent price is a no-op.
func (s *LevelSet) Upsert(price, size decimal.Decimal) {
	key := price.String()
	if size.Sign() <= 0 {
		delete(s.levels, key)
		return
	}
	s.levels[key] = model.Level{Price: price, Size: size}
}

// Get returns the size stored at price.
func (s *LevelSet) Get(price decimal.Decimal) (decimal.Decimal, bool) {
	l, ok := s.levels[price.String()]
	return l.Size, ok
}

// Len returns the number of stored levels.
func (s *LevelSet) Len() int {
	return len(s.levels)
}

// replace clears the set and upserts every level.
func (s *LevelSet) replace(levels []model.Level) {
	s.levels = make(map[string]model.Level, len(levels))
	for _, l := range levels {
		s.Upsert(l.Price, l.Size)
	}
}

// Sorted returns the levels ordered by price, descending when desc is set,
// truncated to limit entries. A limit <= 0 returns every level.
func (s *LevelSet) Sorted(desc bool, limit int) []model.Level {
	result := make([]model.Level, 0, len(s.levels))
	for _, l := range s.levels {
		result = append(result, l)
	}

	sort.Slice(result, func(i, j int) bool {
		if desc {
			return result[i].Price.GreaterThan(result[j].Price)
		}
		return result[i].Price.LessThan(result[j].Price)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
