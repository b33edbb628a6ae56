package writer

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/model"
)

var errNoDB = errors.New("writer has no database")

// sendBatch executes a queued batch and counts rows skipped by ON CONFLICT.
func sendBatch(ctx context.Context, db DB, batch *pgx.Batch) (conflicts int, err error) {
	if db == nil {
		return 0, errNoDB
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

// levelsJSON encodes levels as [["price","size"], ...]. Nil encodes as [].
func levelsJSON(levels []model.Level) ([]byte, error) {
	return json.Marshal(model.PairsFromLevels(levels))
}

// optionalDecimal maps a zero value to NULL. Feeds send zero for fields they
// do not populate.
func optionalDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: !d.IsZero()}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
