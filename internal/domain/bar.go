package domain

import (
	"fmt"
	"math"
)

// Direction of a trade or an ignition candidate.
type Direction int8

const (
	Long Direction = iota + 1
	Short
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Bar is a single price bar from the external feed.
// Bars are immutable once produced by the feed; the core never mutates them.
type Bar struct {
	Ts     int64   `json:"ts"` // epoch millis
	Index  int64   `json:"idx"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"` // volume-or-delta from the feed
}

// Range returns the bar's high-low span.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open-close distance.
func (b Bar) Body() float64 {
	return math.Abs(b.Close - b.Open)
}

// Validate checks the bar for feed corruption. prevTs is the timestamp of the
// previously admitted bar (0 if none). A failed check is fatal for the
// instrument's pipeline: the engine halts and waits for operator ack rather
// than guessing a repaired value.
func (b Bar) Validate(prevTs int64) error {
	for name, v := range map[string]float64{
		"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &CorruptBarError{Index: b.Index, Field: name, Reason: "non-finite price"}
		}
	}
	if b.High < b.Low {
		return &CorruptBarError{Index: b.Index, Field: "high", Reason: "high below low"}
	}
	if b.Close > b.High || b.Close < b.Low || b.Open > b.High || b.Open < b.Low {
		return &CorruptBarError{Index: b.Index, Field: "close", Reason: "price outside bar range"}
	}
	if prevTs != 0 && b.Ts <= prevTs {
		return &CorruptBarError{
			Index:  b.Index,
			Field:  "ts",
			Reason: fmt.Sprintf("non-monotonic timestamp %d <= %d", b.Ts, prevTs),
		}
	}
	return nil
}
