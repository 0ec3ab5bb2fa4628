package utils

import (
	"testing"
	"time"
)

var seoul = time.FixedZone("KST", 9*60*60)

func TestReferenceWindowAt(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantDay string
	}{
		{"before nine uses yesterday", time.Date(2026, 3, 10, 8, 59, 0, 0, seoul), "2026-03-09"},
		{"exactly nine uses today", time.Date(2026, 3, 10, 9, 0, 0, 0, seoul), "2026-03-10"},
		{"after nine uses today", time.Date(2026, 3, 10, 9, 1, 0, 0, seoul), "2026-03-10"},
		{"just after midnight", time.Date(2026, 3, 10, 0, 0, 1, 0, seoul), "2026-03-09"},
		{"late evening", time.Date(2026, 3, 10, 23, 59, 59, 0, seoul), "2026-03-10"},
		{"month boundary", time.Date(2026, 3, 1, 3, 0, 0, 0, seoul), "2026-02-28"},
		{"year boundary", time.Date(2026, 1, 1, 8, 0, 0, 0, seoul), "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ReferenceWindowAt(tt.now, DefaultReferenceHour, seoul)
			if got := FormatDate(w.Day); got != tt.wantDay {
				t.Errorf("Day = %s, want %s", got, tt.wantDay)
			}
			if w.Start.Hour() != 9 || w.Start.Minute() != 0 {
				t.Errorf("Start = %v, want 09:00", w.Start)
			}
			if got := w.End.Sub(w.Start); got != time.Hour {
				t.Errorf("window length = %v, want 1h", got)
			}
			if FormatDate(w.Start) != tt.wantDay {
				t.Errorf("Start date = %s, want %s", FormatDate(w.Start), tt.wantDay)
			}
		})
	}
}

func TestReferenceWindowConvertsToLocation(t *testing.T) {
	// 23:30 UTC on the 9th is 08:30 KST on the 10th, still before nine in Seoul.
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	w := ReferenceWindowAt(now, 9, seoul)
	if FormatDate(w.Day) != "2026-03-09" {
		t.Errorf("Day = %s, want 2026-03-09", FormatDate(w.Day))
	}
	// 09:00 KST is 00:00 UTC.
	if got := w.Start.UTC(); got.Hour() != 0 || got.Day() != 9 {
		t.Errorf("Start UTC = %v, want 2026-03-09 00:00", got)
	}
}

func TestReferenceWindowCustomHour(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	w := ReferenceWindowAt(now, 12, time.UTC)
	if FormatDate(w.Day) != "2026-03-09" {
		t.Errorf("Day = %s, want 2026-03-09", FormatDate(w.Day))
	}
	if w.Start.Hour() != 12 {
		t.Errorf("Start hour = %d, want 12", w.Start.Hour())
	}
}

func TestReferenceWindowNilLocation(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	w := ReferenceWindowAt(now, 9, nil)
	if w.Start.Location() != time.Local {
		t.Errorf("location = %v, want Local", w.Start.Location())
	}
}

func TestLoadLocation(t *testing.T) {
	for _, name := range []string{"", "Local", "local"} {
		loc, err := LoadLocation(name)
		if err != nil {
			t.Fatalf("LoadLocation(%q): %v", name, err)
		}
		if loc != time.Local {
			t.Errorf("LoadLocation(%q) = %v, want Local", name, loc)
		}
	}

	loc, err := LoadLocation("UTC")
	if err != nil || loc != time.UTC {
		t.Errorf("LoadLocation(UTC) = %v, %v", loc, err)
	}

	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 5, 7, 0, time.UTC)
	if got := FormatDateTime(ts); got != "2026-03-10 09:05:07 UTC" {
		t.Errorf("FormatDateTime = %q", got)
	}
}
