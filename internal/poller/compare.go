package poller

import (
	"errors"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/model"
)

var errNotSynced = errors.New("book no longer synced")

// Result is the outcome of comparing a local book with a snapshot.
type Result struct {
	Outcome     string // One of the metrics.Audit* labels
	LocalNonce  int64
	RemoteNonce int64
	Side        string // "bid" or "ask" for a mismatch
	Index       int    // First differing level for a mismatch
	Err         error
}

// Compare checks the top depth levels of local against remote.
// Snapshots taken at a different nonce are reported as skewed without
// comparing levels, since the books legitimately differ.
func Compare(local book.View, remote model.Snapshot, depth int) Result {
	res := Result{LocalNonce: local.Nonce, RemoteNonce: remote.Nonce}
	if local.Nonce != remote.Nonce {
		res.Outcome = metrics.AuditSkewed
		return res
	}

	bids := normalize(remote.Bids, true, depth)
	asks := normalize(remote.Asks, false, depth)

	if i, ok := diff(trim(local.Bids, depth), bids); !ok {
		res.Outcome, res.Side, res.Index = metrics.AuditMismatch, "bid", i
		return res
	}
	if i, ok := diff(trim(local.Asks, depth), asks); !ok {
		res.Outcome, res.Side, res.Index = metrics.AuditMismatch, "ask", i
		return res
	}
	res.Outcome = metrics.AuditMatch
	return res
}

// normalize runs snapshot levels through a LevelSet so duplicates collapse,
// zero sizes drop out and ordering matches a local view.
func normalize(levels []model.Level, desc bool, depth int) []model.Level {
	set := book.NewLevelSet()
	for _, l := range levels {
		set.Upsert(l.Price, l.Size)
	}
	return set.Sorted(desc, depth)
}

func trim(levels []model.Level, depth int) []model.Level {
	if depth > 0 && len(levels) > depth {
		return levels[:depth]
	}
	return levels
}

// diff returns the index of the first differing level.
func diff(a, b []model.Level) (int, bool) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if !a[i].Price.Equal(b[i].Price) || !a[i].Size.Equal(b[i].Size) {
			return i, false
		}
	}
	if len(a) != len(b) {
		return n, false
	}
	return 0, true
}
