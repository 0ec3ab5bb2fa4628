package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"

	// Card backgrounds by trend.
	ansiBgUp      = "\033[48;5;22m"
	ansiBgDown    = "\033[48;5;52m"
	ansiBgNeutral = "\033[48;5;236m"
)

// Renderer writes each update as a block of lines. Symbols whose price moved
// since the previous update are highlighted.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	mode   Mode
	colors bool
	prev   models.AggregationResult
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, mode Mode, colors bool) *Renderer {
	if mode == "" {
		mode = ModeStandard
	}
	return &Renderer{w: w, mode: mode, colors: colors}
}

// Mode returns the current display mode.
func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode switches the display mode for subsequent updates.
func (r *Renderer) SetMode(m Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

// Toggle advances to the next mode and returns it.
func (r *Renderer) Toggle() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = r.mode.Next()
	return r.mode
}

// OnUpdate renders u.
func (r *Renderer) OnUpdate(u models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := make(map[string]bool)
	for _, sym := range Changed(r.prev, u.Result) {
		changed[sym] = true
	}
	r.prev = u.Result

	var b strings.Builder
	b.WriteString(r.paint(ansiCyan, "── "+utils.FormatDateTime(u.CompletedAt)+" ──"))
	b.WriteByte('\n')
	for _, q := range u.Ordered() {
		line := Line(q, r.mode)
		switch {
		case !r.colors:
		case r.mode == ModeCards:
			line = r.tintCard(line, q, changed[q.Symbol])
		case changed[q.Symbol]:
			line = ansiBold + line + ansiReset
		case q.ChangePct != nil && *q.ChangePct > 0:
			line = ansiGreen + line + ansiReset
		case q.ChangePct != nil && *q.ChangePct < 0:
			line = ansiRed + line + ansiReset
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprint(r.w, b.String())
}

// OnError renders a failed pass.
func (r *Renderer) OnError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.paint(ansiRed, "error: "+msg))
}

// tintCard colours every row of a card with its trend background.
func (r *Renderer) tintCard(card string, q models.SymbolQuote, changed bool) string {
	bg := ansiBgNeutral
	switch {
	case q.ChangePct != nil && *q.ChangePct > 0:
		bg = ansiBgUp
	case q.ChangePct != nil && *q.ChangePct < 0:
		bg = ansiBgDown
	}
	if changed {
		bg += ansiBold
	}
	rows := strings.Split(card, "\n")
	for i, row := range rows {
		rows[i] = bg + row + ansiReset
	}
	return strings.Join(rows, "\n")
}

func (r *Renderer) paint(code, s string) string {
	if !r.colors {
		return s
	}
	return code + s + ansiReset
}
