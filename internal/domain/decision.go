package domain

// ReasonCode explains every denial. A suppressed signal is never silent:
// the code travels with the decision into the journal.
type ReasonCode string

const (
	ReasonOK            ReasonCode = "OK"
	ReasonBlacklisted   ReasonCode = "BLACKLISTED_SIGNAL"
	ReasonNoState       ReasonCode = "STATE_NOT_CERTIFIED"
	ReasonZoneCollapsed ReasonCode = "ZONE_COLLAPSED"
	ReasonRetryDenied   ReasonCode = "RETRY_DENIED"
	ReasonFriction      ReasonCode = "EXECUTION_FRICTION"
	ReasonStaleFeed     ReasonCode = "STALE_FEED"
)

// Authority layers, in evaluation order. A denial records the layer that
// failed so suppressed signals can be audited per layer.
const (
	LayerIdentity  = 0 // signal identity (blacklist/tier)
	LayerState     = 1 // theta certification
	LayerZone      = 2 // zone collapse
	LayerExecution = 3 // retry budget, friction
	LayerNone      = -1
)

// PolicyDecision is produced fresh for every candidate and never cached
// across bars.
type PolicyDecision struct {
	Allowed         bool
	SizeMultiplier  float64
	RetryAllowed    bool
	TrailingAllowed bool
	Theta           int
	Reason          ReasonCode
	LayerFailed     int
}

// Deny builds a denial for the given layer and reason.
func Deny(layer int, reason ReasonCode, theta int) PolicyDecision {
	return PolicyDecision{
		Allowed:     false,
		Theta:       theta,
		Reason:      reason,
		LayerFailed: layer,
	}
}

// TerminalClass labels how fast a bar's local structure resolves.
type TerminalClass string

const (
	TerminalFast TerminalClass = "FAST"
	TerminalSlow TerminalClass = "SLOW"
)

// DecisionRecord is the per-bar observation row written to the journal.
// The schema is fixed by the project's declared output contract.
type DecisionRecord struct {
	ID         uint          `gorm:"primaryKey" json:"-"`
	Instrument string        `gorm:"index" json:"instrument"`
	Ts         int64         `gorm:"index" json:"ts"`
	Idx        int64         `json:"idx"`
	Depth      float64       `json:"depth"`
	DepthSlope float64       `json:"depth_slope"`
	Terminal   TerminalClass `json:"terminal"`
	IslandID   string        `json:"island_id,omitempty"` // present only when terminal=FAST
	BurstEvent int           `json:"burst_event"`         // 0 or 1
	DCPre      float64       `json:"dc_pre"`
	ER         float64       `json:"er"`
	Delta      float64       `json:"delta"`
	Channel    float64       `json:"channel"`

	// Decision annotation (appended, not part of the declared columns)
	Theta   int        `json:"theta"`
	Allowed bool       `json:"allowed"`
	Reason  ReasonCode `json:"reason"`
}

// TradeRecord is the append-only journal row for a closed trade.
type TradeRecord struct {
	ID         uint    `gorm:"primaryKey" json:"-"`
	TradeID    string  `gorm:"index" json:"trade_id"`
	Instrument string  `gorm:"index" json:"instrument"`
	Direction  string  `json:"direction"`
	ZoneID     string  `gorm:"index" json:"zone_id"`
	Theta      int     `json:"theta"`
	EntryIdx   int64   `json:"entry_idx"`
	ExitIdx    int64   `json:"exit_idx"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	ExitType   string  `json:"exit_type"`
	PnL        float64 `json:"pnl"`
	MFE        float64 `json:"mfe"`
	Result     string  `json:"result"` // WIN or LOSS
}
