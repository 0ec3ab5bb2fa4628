package utils

import (
	"strings"
)

// Default secondary-market mapping: Binance USDT pairs to Upbit KRW markets.
const (
	DefaultPrimarySuffix  = "USDT"
	DefaultSecondaryQuote = "KRW"
)

// NormalizeSymbol converts user input into a canonical primary-market symbol.
// e.g., " btcusdt " → "BTCUSDT", "$ethusdt" → "ETHUSDT"
func NormalizeSymbol(input string) string {
	s := strings.TrimSpace(strings.ToUpper(input))
	s = strings.TrimPrefix(s, "$")
	return s
}

// NormalizeSymbols normalizes a list and drops empty and duplicate entries,
// keeping the first occurrence order.
func NormalizeSymbols(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		s := NormalizeSymbol(in)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SymbolMapper maps primary-market symbols to secondary-market markets.
type SymbolMapper struct {
	Suffix string // quote suffix on the primary market, e.g. "USDT"
	Quote  string // quote currency code on the secondary market, e.g. "KRW"
}

// DefaultSymbolMapper returns the USDT → KRW mapper.
func DefaultSymbolMapper() SymbolMapper {
	return SymbolMapper{Suffix: DefaultPrimarySuffix, Quote: DefaultSecondaryQuote}
}

// ToSecondary returns the secondary-market symbol for a primary symbol.
// e.g., "BTCUSDT" → "KRW-BTC", true; "BTCUSD" → "", false
func (m SymbolMapper) ToSecondary(symbol string) (string, bool) {
	if m.Suffix == "" || m.Quote == "" {
		return "", false
	}
	base, ok := strings.CutSuffix(symbol, m.Suffix)
	if !ok || base == "" {
		return "", false
	}
	return m.Quote + "-" + base, true
}
