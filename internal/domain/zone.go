package domain

import (
	"fmt"
	"math"
)

// Outcome of a closed trade, as recorded against a zone.
type Outcome int8

const (
	OutcomeWin Outcome = iota + 1
	OutcomeLoss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeLoss:
		return "LOSS"
	default:
		return "UNKNOWN"
	}
}

// ZoneID quantizes a price into a fixed-width band identifier, e.g.
// "21500-21600". The band width is a locked doctrine constant and is never
// recomputed at runtime.
func ZoneID(price, band float64) string {
	start := math.Floor(price/band) * band
	return fmt.Sprintf("%.0f-%.0f", start, start+band)
}

// PersistenceRecord tracks trade outcomes near one price zone. It is owned
// exclusively by the zone ledger and mutated only on trade close.
type PersistenceRecord struct {
	ZoneID        string
	CreationIndex int64

	LastDirection Direction
	LastOutcome   Outcome

	// ConsecutiveCount counts same-direction outcomes in a row; it resets
	// to 1 when the direction flips.
	ConsecutiveCount int

	// SuccessStreak counts consecutive wins in the current direction and
	// feeds the certifier. Any loss zeroes it.
	SuccessStreak int

	// LossStreak counts consecutive losses in this zone. Reaching the
	// collapse bound marks the zone collapsed for the rest of the session.
	LossStreak int

	Collapsed bool
}
