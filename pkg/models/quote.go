// Package models defines the value types produced by an aggregation pass.
package models

import (
	"sort"
	"time"
)

// SymbolQuote is the per-symbol outcome of one pass.
// A nil field means the value could not be determined; it is never zero-filled.
type SymbolQuote struct {
	Symbol     string   `json:"symbol"`
	Price      *float64 `json:"price"`       // primary-market spot, quote currency
	ChangePct  *float64 `json:"change_pct"`  // vs. reference (09:00) open
	PremiumPct *float64 `json:"premium_pct"` // secondary vs. primary converted to local currency
}

// HasPrice reports whether the primary price was fetched.
func (q SymbolQuote) HasPrice() bool { return q.Price != nil }

// AggregationResult maps each requested symbol to its quote.
type AggregationResult map[string]SymbolQuote

// Symbols returns the result keys in lexical order.
func (r AggregationResult) Symbols() []string {
	out := make([]string, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ReferencePrice is the open of the reference candle for a symbol.
// Date is the reference window start and is set even when the fetch fails.
type ReferencePrice struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Date   time.Time `json:"date"`
}

// Update is what the refresher delivers after a successful pass.
type Update struct {
	PassID      string            `json:"pass_id"`
	Symbols     []string          `json:"symbols"`
	Result      AggregationResult `json:"result"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Ordered returns the quotes in the order the symbols were requested.
// Symbols missing from the result are skipped.
func (u Update) Ordered() []SymbolQuote {
	out := make([]SymbolQuote, 0, len(u.Symbols))
	for _, s := range u.Symbols {
		if q, ok := u.Result[s]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
