package models

import "time"

// Candle is one OHLCV bar from the primary market.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Interval is a candle interval as understood by the primary market.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval1Hour Interval = "1h"
	Interval1Day  Interval = "1d"
)

// Duration returns the length of one bar, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval15Min:
		return 15 * time.Minute
	case Interval1Hour:
		return time.Hour
	case Interval1Day:
		return 24 * time.Hour
	default:
		return 0
	}
}
