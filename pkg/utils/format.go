// Package utils provides symbol, time and number helpers shared by the
// engine, the renderers and the API.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatPrice formats a price with thousands separators and two decimals.
// e.g., 65000000 → "65,000,000.00", 0.5123 → "0.51"
func FormatPrice(v float64) string {
	return FormatNumber(v, 2)
}

// FormatNumber formats v with thousands separators and the given decimals.
func FormatNumber(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	if decimals < 0 {
		decimals = 0
	}
	s := fmt.Sprintf("%.*f", decimals, math.Abs(v))
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart))
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatCompact formats large amounts with K/M/B suffixes.
// e.g., 1500 → "1.5K", 65000000 → "65M"
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e9:
		return sign + trimDecimals(abs/1e9) + "B"
	case abs >= 1e6:
		return sign + trimDecimals(abs/1e6) + "M"
	case abs >= 1e3:
		return sign + trimDecimals(abs/1e3) + "K"
	default:
		return sign + trimDecimals(abs)
	}
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// trimDecimals formats with up to 2 decimal places, removing trailing zeros.
func trimDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
