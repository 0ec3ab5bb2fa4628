package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

var f = models.Float

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"compact", ModeCompact, false},
		{" Standard ", ModeStandard, false},
		{"DETAILED", ModeDetailed, false},
		{"cards", ModeCards, false},
		{"tiles", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestModeNext(t *testing.T) {
	if ModeCompact.Next() != ModeStandard || ModeStandard.Next() != ModeDetailed ||
		ModeDetailed.Next() != ModeCards || ModeCards.Next() != ModeCompact {
		t.Error("Next() should cycle compact → standard → detailed → cards → compact")
	}
	if Mode("bogus").Next() != ModeStandard {
		t.Error("unknown mode should fall back to standard")
	}
}

func TestTrendIcon(t *testing.T) {
	tests := []struct {
		input *float64
		want  string
	}{
		{nil, "⚪"},
		{f(5.01), "🚀"},
		{f(5), "📈"},
		{f(1.5), "📈"},
		{f(1), "⚖️"},
		{f(0), "⚖️"},
		{f(-1), "⚖️"},
		{f(-1.5), "📉"},
		{f(-5), "📉"},
		{f(-5.01), "💥"},
	}
	for _, tt := range tests {
		if got := TrendIcon(tt.input); got != tt.want {
			t.Errorf("TrendIcon(%v) = %q, want %q", deref(tt.input), got, tt.want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		input *float64
		want  string
	}{
		{nil, "N/A"},
		{f(2.451), "▲ 2.45%"},
		{f(-1.2), "▼ 1.20%"},
		{f(0), "0.00%"},
	}
	for _, tt := range tests {
		if got := FormatChange(tt.input); got != tt.want {
			t.Errorf("FormatChange(%v) = %q, want %q", deref(tt.input), got, tt.want)
		}
	}
}

func TestFormatPremium(t *testing.T) {
	if got := FormatPremium(f(1.5384)); got != "1.54%" {
		t.Errorf("FormatPremium(1.5384) = %q", got)
	}
	if got := FormatPremium(f(-0.5)); got != "-0.50%" {
		t.Errorf("FormatPremium(-0.5) = %q", got)
	}
	if got := FormatPremium(nil); got != "N/A" {
		t.Errorf("FormatPremium(nil) = %q", got)
	}
}

func TestLine(t *testing.T) {
	q := models.SymbolQuote{Symbol: "BTCUSDT", Price: f(65000.5), ChangePct: f(2.5), PremiumPct: f(1.54)}

	tests := []struct {
		mode Mode
		want string
	}{
		{ModeCompact, "BTCUSDT 65,000.50 📈"},
		{ModeStandard, "BTCUSDT     65,000.50    ▲ 2.50%     1.54%"},
		{ModeDetailed, "BTCUSDT     65,000.50 📈\n  change: ▲ 2.50% | premium: 1.54%"},
	}
	for _, tt := range tests {
		if got := Line(q, tt.mode); got != tt.want {
			t.Errorf("Line(%s) = %q, want %q", tt.mode, got, tt.want)
		}
	}

	absent := models.SymbolQuote{Symbol: "XYZUSDT"}
	for _, m := range Modes {
		if got := Line(absent, m); got != "XYZUSDT: N/A" {
			t.Errorf("Line(absent, %s) = %q", m, got)
		}
	}

	partial := models.SymbolQuote{Symbol: "ETHUSDT", Price: f(3000)}
	if got := Line(partial, ModeStandard); got != "ETHUSDT     3,000.00    N/A     N/A" {
		t.Errorf("Line(partial) = %q", got)
	}
}

func TestLinesKeepRequestOrder(t *testing.T) {
	u := models.Update{
		Symbols: []string{"ETHUSDT", "BTCUSDT"},
		Result: models.AggregationResult{
			"BTCUSDT": {Symbol: "BTCUSDT", Price: f(1)},
			"ETHUSDT": {Symbol: "ETHUSDT", Price: f(2)},
		},
	}
	lines := Lines(u, ModeCompact)
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ETHUSDT") {
		t.Errorf("Lines() = %v, want ETHUSDT first", lines)
	}
}

func TestChanged(t *testing.T) {
	prev := models.AggregationResult{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: f(100)},
		"ETHUSDT": {Symbol: "ETHUSDT", Price: f(50)},
		"SOLUSDT": {Symbol: "SOLUSDT"},
	}
	cur := models.AggregationResult{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: f(101)},
		"ETHUSDT": {Symbol: "ETHUSDT", Price: f(50)},
		"SOLUSDT": {Symbol: "SOLUSDT", Price: f(20)},
		"XRPUSDT": {Symbol: "XRPUSDT", Price: f(1)},
	}
	got := Changed(prev, cur)
	if len(got) != 1 || got[0] != "BTCUSDT" {
		t.Errorf("Changed() = %v, want [BTCUSDT]", got)
	}
	if got := Changed(nil, cur); len(got) != 0 {
		t.Errorf("Changed(nil, cur) = %v, want none", got)
	}
}

func TestRendererPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, ModeCompact, false)

	u := models.Update{
		Symbols:     []string{"BTCUSDT"},
		Result:      models.AggregationResult{"BTCUSDT": {Symbol: "BTCUSDT", Price: f(100), ChangePct: f(0)}},
		CompletedAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
	r.OnUpdate(u)
	r.OnError("price update failed: boom")

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Errorf("plain renderer emitted ANSI codes: %q", out)
	}
	if !strings.Contains(out, "2024-03-15 09:30:00 UTC") {
		t.Errorf("missing timestamp header: %q", out)
	}
	if !strings.Contains(out, "BTCUSDT 100.00 ⚖️\n") {
		t.Errorf("missing symbol line: %q", out)
	}
	if !strings.Contains(out, "error: price update failed: boom\n") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestRendererHighlightsChanges(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, ModeCompact, true)

	u := models.Update{
		Symbols: []string{"BTCUSDT"},
		Result:  models.AggregationResult{"BTCUSDT": {Symbol: "BTCUSDT", Price: f(100)}},
	}
	r.OnUpdate(u)
	buf.Reset()

	u.Result = models.AggregationResult{"BTCUSDT": {Symbol: "BTCUSDT", Price: f(105)}}
	r.OnUpdate(u)
	if !strings.Contains(buf.String(), ansiBold+"BTCUSDT 105.00") {
		t.Errorf("changed symbol not highlighted: %q", buf.String())
	}

	r.SetMode(ModeStandard)
	if r.Mode() != ModeStandard {
		t.Errorf("Mode() = %s, want standard", r.Mode())
	}
}

func TestCard(t *testing.T) {
	card := Line(models.SymbolQuote{Symbol: "BTCUSDT", Price: f(65000), ChangePct: f(6), PremiumPct: f(1.5)}, ModeCards)
	rows := strings.Split(card, "\n")
	if len(rows) != 4 {
		t.Fatalf("card has %d rows, want 4:\n%s", len(rows), card)
	}
	if !strings.HasPrefix(rows[0], "┌") || !strings.HasPrefix(rows[3], "└") {
		t.Errorf("card is not boxed:\n%s", card)
	}
	for _, want := range []string{"BTCUSDT", "65,000.00", "🚀"} {
		if !strings.Contains(rows[1], want) {
			t.Errorf("top row %q missing %q", rows[1], want)
		}
	}
	if !strings.Contains(rows[2], "change ▲ 6.00% | premium 1.50%") {
		t.Errorf("bottom row = %q", rows[2])
	}
	width := utf8.RuneCountInString(rows[0])
	for i, row := range rows {
		if n := utf8.RuneCountInString(row); n != width {
			t.Errorf("row %d width %d, want %d", i, n, width)
		}
	}

	// Absent values still get a card.
	empty := Card(models.SymbolQuote{Symbol: "ETHUSDT"})
	if !strings.Contains(empty, "ETHUSDT  N/A ⚪") || !strings.Contains(empty, "change N/A | premium N/A") {
		t.Errorf("absent card:\n%s", empty)
	}
}

func TestRendererCards(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, ModeCards, true)

	r.OnUpdate(models.Update{
		Symbols: []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"},
		Result: models.AggregationResult{
			"BTCUSDT": {Symbol: "BTCUSDT", Price: f(100), ChangePct: f(2)},
			"ETHUSDT": {Symbol: "ETHUSDT", Price: f(50), ChangePct: f(-2)},
			"XRPUSDT": {Symbol: "XRPUSDT"},
		},
	})
	out := buf.String()
	for _, want := range []string{ansiBgUp + "│ BTCUSDT", ansiBgDown + "│ ETHUSDT", ansiBgNeutral + "│ XRPUSDT"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%q", want, out)
		}
	}
}

func TestRendererToggle(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, ModeDetailed, false)
	if got := r.Toggle(); got != ModeCards {
		t.Errorf("Toggle() = %s, want cards", got)
	}
	if got := r.Toggle(); got != ModeCompact || r.Mode() != ModeCompact {
		t.Errorf("Toggle() = %s, Mode() = %s, want compact", got, r.Mode())
	}
}

func deref(p *float64) any {
	if p == nil {
		return "<nil>"
	}
	return *p
}
