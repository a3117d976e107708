package features

import (
	"strings"

	"tradecore/internal/domain"
)

// Terminal classification thresholds, fixed by the out-of-sample
// validation runs that produced the fast-island set.
const (
	depthHighBound   = 0.5
	dcCompBound      = 0.8
	deltaLargeBound  = 0.5
	forceStrongUpper = 1.3
	forceStrongLower = 0.7
	erHighBound      = 0.6
	fastSlopeBound   = 0.02
)

// Classify bins the bar's structure and labels how fast it is expected to
// resolve. FAST bars additionally carry their composite island key; SLOW
// bars do not (the island inventory only exists for the fast set).
func Classify(ind domain.IndicatorSet, theta int) (domain.TerminalClass, string) {
	islandID := stateKey(ind, theta)

	// A bar resolves fast when movement is inefficient but violent:
	// low ER with either a volatility burst or a steep depth slope.
	fast := ind.ER < erHighBound && (ind.Burst || abs(ind.DepthSlope) >= fastSlopeBound)
	if fast {
		return domain.TerminalFast, islandID
	}
	return domain.TerminalSlow, ""
}

// stateKey builds the composite bin key
// "Depth_DC_Delta_Force_ER_Theta_Channel" used to identify islands.
func stateKey(ind domain.IndicatorSet, theta int) string {
	bins := []string{
		bin(ind.Depth > depthHighBound, "High", "Low"),
		bin(ind.DCPre < dcCompBound, "Comp", "Loose"),
		bin(abs(ind.Delta) > deltaLargeBound, "Large", "Small"),
		bin(ind.ForceRatio > forceStrongUpper || ind.ForceRatio < forceStrongLower, "Strong", "Weak"),
		bin(ind.ER > erHighBound, "High", "Low"),
		bin(theta >= 3, "High", "Low"),
		channelBin(ind.Channel),
	}
	return strings.Join(bins, "_")
}

func bin(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func channelBin(channel float64) string {
	switch {
	case channel > 80:
		return "Top"
	case channel < 20:
		return "Bot"
	default:
		return "Mid"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
