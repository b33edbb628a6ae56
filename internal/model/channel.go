package model

import "strings"

// Topic layout: market.<symbol>.<kind>[.<detail>...]
const (
	TopicPrefix = "market"
	KindDepth   = "depth"
)

// BookChannel returns the depth topic for symbol.
func BookChannel(symbol string) string {
	return TopicPrefix + "." + strings.ToLower(symbol) + "." + KindDepth
}
