package utils

import (
	"fmt"
	"strings"
	"time"
)

// DefaultReferenceHour is the local hour whose opening price is the daily baseline.
const DefaultReferenceHour = 9

// ReferenceWindow is the one-hour candle window used as the daily baseline.
type ReferenceWindow struct {
	Day   time.Time // midnight of the reference day
	Start time.Time // Day at the reference hour (inclusive)
	End   time.Time // Start + 1h (exclusive)
}

// ReferenceWindowAt returns the reference window for the wall-clock time now.
// Before the reference hour the window belongs to the previous calendar day;
// at or after it, to the current day.
func ReferenceWindowAt(now time.Time, hour int, loc *time.Location) ReferenceWindow {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	day := t.Day()
	if t.Hour() < hour {
		day--
	}
	start := time.Date(t.Year(), t.Month(), day, hour, 0, 0, 0, loc)
	return ReferenceWindow{
		Day:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc),
		Start: start,
		End:   start.Add(time.Hour),
	}
}

// LoadLocation resolves a timezone name. "" and "Local" mean the system zone.
func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// FormatDate formats a time as "2006-01-02" in its own location.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDateTime formats a time as "2006-01-02 15:04:05 MST".
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}
