package gate

import (
	"tradecore/internal/domain"
)

// Signal source names attached to ignition events.
const (
	SourceSTBShort = "STB_SHORT"
	SourceSTBLong  = "STB_LONG"
)

// Gate is the stateless ignition classifier (STB). It applies a fixed
// conjunction of threshold predicates per direction and proposes a
// candidate; it never executes. All further judgment belongs to the
// certifier — no filter beyond these predicates is applied here.
type Gate struct {
	doctrine domain.Doctrine
}

// NewGate creates a gate bound to the locked doctrine.
func NewGate(d domain.Doctrine) *Gate {
	return &Gate{doctrine: d}
}

// Evaluate returns an ignition candidate for the bar, or nil when the
// predicates do not line up.
//
// Preconditions (both directions): the 20-bar range must be wide enough to
// mean anything, and the bar body must be a volatility outlier.
// Direction: stretched ratio at the top of the channel ignites SHORT,
// the mirror condition at the bottom ignites LONG.
func (g *Gate) Evaluate(ind domain.IndicatorSet) *domain.IgnitionEvent {
	d := g.doctrine

	if ind.Range20 < d.IgnitionRange {
		return nil
	}
	if ind.BodyZ < d.BodyZFloor && ind.BodyZ > -d.BodyZFloor {
		return nil
	}

	switch {
	case ind.Ratio > d.RatioUpper && ind.Channel > d.ChannelUpper:
		return &domain.IgnitionEvent{
			BarIndex:   ind.Index,
			Direction:  domain.Short,
			Source:     SourceSTBShort,
			Indicators: ind,
		}
	case ind.Ratio < d.RatioLower && ind.Channel < d.ChannelLower:
		return &domain.IgnitionEvent{
			BarIndex:   ind.Index,
			Direction:  domain.Long,
			Source:     SourceSTBLong,
			Indicators: ind,
		}
	default:
		return nil
	}
}
