package router

import (
	"strings"

	"github.com/rickgao/booksync/internal/model"
)

// Family is the closed set of message families the router dispatches on.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyBook
	FamilyTicker
	FamilyTrade
	FamilyCandle
)

func (f Family) String() string {
	switch f {
	case FamilyBook:
		return "book"
	case FamilyTicker:
		return "ticker"
	case FamilyTrade:
		return "trade"
	case FamilyCandle:
		return "candle"
	default:
		return "unrouted"
	}
}

// kindFamily maps the topic kind segment to its family.
var kindFamily = map[string]Family{
	model.KindDepth: FamilyBook,
	"mbp":           FamilyBook,
	"ticker":        FamilyTicker,
	"detail":        FamilyTicker,
	"bbo":           FamilyTicker,
	"trade":         FamilyTrade,
	"kline":         FamilyCandle,
}

// Route is a classified topic.
type Route struct {
	Family Family
	Symbol string
	Kind   string
	Detail string // remaining segments joined by ".", may be empty
}

// Classify parses a topic of the form market.<symbol>.<kind>[.<detail>...].
// ok is false for anything else, including unknown kinds.
func Classify(channel string) (Route, bool) {
	parts := strings.SplitN(channel, ".", 4)
	if len(parts) < 3 || parts[0] != model.TopicPrefix || parts[1] == "" {
		return Route{}, false
	}

	family, ok := kindFamily[parts[2]]
	if !ok {
		return Route{}, false
	}

	r := Route{
		Family: family,
		Symbol: strings.ToLower(parts[1]),
		Kind:   parts[2],
	}
	if len(parts) == 4 {
		r.Detail = parts[3]
	}
	return r, true
}
