package domain

// PositionState is the risk controller's lifecycle for one open position.
type PositionState int8

const (
	PositionOpen PositionState = iota + 1
	PositionTrailing
	PositionClosed
)

func (s PositionState) String() string {
	switch s {
	case PositionOpen:
		return "OPEN"
	case PositionTrailing:
		return "TRAILING"
	case PositionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Position is one open trade. Created on gate approval plus certifier
// sign-off, owned by the risk controller, destroyed on exit.
type Position struct {
	ID         string
	Instrument string
	Direction  Direction
	EntryPrice float64
	EntryIndex int64
	EntryTs    int64

	ThetaAtEntry int
	SizeMult     float64
	ZoneID       string

	// Risk controller state
	State     PositionState
	Bars      int     // bars elapsed since entry
	MFE       float64 // maximum favorable excursion, points
	TrailStop float64 // active trailing stop price (valid once TRAILING)
	StopLoss  float64 // active stop distance in points (30 default, 12 defense)
	Defense   bool    // one-way loss-warning escalation fired

	// TrailExtension permits trailing past the fixed take-profit.
	// Granted only at theta >= 3 by the execution policy.
	TrailExtension bool
}

// FavorableExcursion returns how far the given price has moved in the
// position's favor, in points (negative when under water).
func (p *Position) FavorableExcursion(price float64) float64 {
	if p.Direction == Long {
		return price - p.EntryPrice
	}
	return p.EntryPrice - price
}
