// Package display formats aggregation results as text for terminals and
// overlay front-ends.
package display

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Mode selects how much detail each symbol line carries.
type Mode string

const (
	ModeCompact  Mode = "compact"
	ModeStandard Mode = "standard"
	ModeDetailed Mode = "detailed"
	ModeCards    Mode = "cards"
)

// Modes lists the modes in toggle order.
var Modes = []Mode{ModeCompact, ModeStandard, ModeDetailed, ModeCards}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown display mode %q (want compact, standard, detailed or cards)", s)
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	for i, known := range Modes {
		if m == known {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeStandard
}

// NotAvailable is shown for absent values.
const NotAvailable = "N/A"

// TrendIcon returns an icon for a change percentage.
func TrendIcon(changePct *float64) string {
	if changePct == nil {
		return "⚪"
	}
	switch v := *changePct; {
	case v > 5:
		return "🚀"
	case v > 1:
		return "📈"
	case v < -5:
		return "💥"
	case v < -1:
		return "📉"
	default:
		return "⚖️"
	}
}

// FormatChange formats a change percentage with a direction arrow.
// e.g., 2.451 → "▲ 2.45%", -1.2 → "▼ 1.20%", 0 → "0.00%"
func FormatChange(changePct *float64) string {
	if changePct == nil {
		return NotAvailable
	}
	v := *changePct
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return NotAvailable
	case v > 0:
		return fmt.Sprintf("▲ %.2f%%", v)
	case v < 0:
		return fmt.Sprintf("▼ %.2f%%", -v)
	default:
		return "0.00%"
	}
}

// FormatPremium formats a cross-market premium.
func FormatPremium(premiumPct *float64) string {
	if premiumPct == nil || math.IsNaN(*premiumPct) || math.IsInf(*premiumPct, 0) {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f%%", *premiumPct)
}

// FormatPrice formats a primary price with thousands separators.
func FormatPrice(price *float64) string {
	if price == nil {
		return NotAvailable
	}
	return utils.FormatPrice(*price)
}

// Line renders one symbol. Outside cards mode a symbol without a price
// renders as "SYMBOL: N/A". Detailed lines span two rows; cards span four.
func Line(q models.SymbolQuote, mode Mode) string {
	if mode == ModeCards {
		return Card(q)
	}
	if !q.HasPrice() {
		return q.Symbol + ": " + NotAvailable
	}
	price := FormatPrice(q.Price)
	icon := TrendIcon(q.ChangePct)

	switch mode {
	case ModeCompact:
		return fmt.Sprintf("%s %s %s", q.Symbol, price, icon)
	case ModeDetailed:
		return fmt.Sprintf("%s     %s %s\n  change: %s | premium: %s",
			q.Symbol, price, icon, FormatChange(q.ChangePct), FormatPremium(q.PremiumPct))
	default:
		return fmt.Sprintf("%s     %s    %s     %s",
			q.Symbol, price, FormatChange(q.ChangePct), FormatPremium(q.PremiumPct))
	}
}

// Card renders q as a box: symbol, price and trend icon on top, then the
// change and premium row. Absent values show as N/A.
func Card(q models.SymbolQuote) string {
	top := fmt.Sprintf("%s  %s %s", q.Symbol, FormatPrice(q.Price), TrendIcon(q.ChangePct))
	bottom := fmt.Sprintf("change %s | premium %s", FormatChange(q.ChangePct), FormatPremium(q.PremiumPct))

	width := utf8.RuneCountInString(top)
	if n := utf8.RuneCountInString(bottom); n > width {
		width = n
	}
	row := func(s string) string {
		return "│ " + s + strings.Repeat(" ", width-utf8.RuneCountInString(s)) + " │"
	}
	edge := strings.Repeat("─", width+2)
	return strings.Join([]string{
		"┌" + edge + "┐",
		row(top),
		row(bottom),
		"└" + edge + "┘",
	}, "\n")
}

// Lines renders every quote of u in request order.
func Lines(u models.Update, mode Mode) []string {
	quotes := u.Ordered()
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, Line(q, mode))
	}
	return out
}

// Changed returns the symbols whose price differs between prev and cur,
// sorted. Symbols absent from either side, or without a price on either
// side, are not reported.
func Changed(prev, cur models.AggregationResult) []string {
	var out []string
	for _, sym := range cur.Symbols() {
		old, ok := prev[sym]
		if !ok || !old.HasPrice() || !cur[sym].HasPrice() {
			continue
		}
		if *old.Price != *cur[sym].Price {
			out = append(out, sym)
		}
	}
	return out
}
