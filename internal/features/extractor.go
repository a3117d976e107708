package features

import (
	"math"

	"tradecore/internal/domain"
)

const (
	erLookback    = 10
	dcLookback    = 10
	slopeLookback = 5
	forceLookback = 30
	bodyLookback  = 50
	burstFactor   = 1.8
	epsilon       = 0.01
)

// Extractor computes per-bar indicators from a trailing window of bars.
// It is a pure function of its input: no side effects, no history kept
// beyond what the caller passes in.
type Extractor struct {
	doctrine domain.Doctrine
}

// NewExtractor creates an extractor bound to the locked doctrine.
func NewExtractor(d domain.Doctrine) *Extractor {
	return &Extractor{doctrine: d}
}

// Compute derives the indicator set for the last bar in history.
// history must be ordered oldest-first and end with the current bar.
// Returns ErrInsufficientWindow when fewer than MinHistory bars are
// available; the caller must skip certification, not substitute defaults.
func (e *Extractor) Compute(history []domain.Bar) (domain.IndicatorSet, error) {
	if len(history) < e.doctrine.MinHistory {
		return domain.IndicatorSet{}, domain.ErrInsufficientWindow
	}

	cur := history[len(history)-1]
	window := history[len(history)-e.doctrine.WindowBars:]

	high20, low20 := windowExtremes(window)
	range20 := high20 - low20
	atr20 := meanRange(window)

	set := domain.IndicatorSet{
		Index:   cur.Index,
		Ts:      cur.Ts,
		Ratio:   directionalRatio(cur),
		Range20: range20,
		ATR20:   atr20,
		BodyZ:   bodyZScore(history, bodyLookback),
		ER:      efficiencyRatio(history, erLookback),
		DCPre:   dcPre(history, dcLookback),
		Delta:   volumeDelta(cur),
		Depth:   depthAt(history, len(history)-1, e.doctrine.WindowBars),
		Burst:   atr20 > 0 && cur.Range() > burstFactor*atr20,
	}

	if range20 > epsilon {
		set.Channel = 100 * (cur.Close - low20) / range20
	} else {
		set.Channel = 50
	}

	prevDepth := depthAt(history, len(history)-1-slopeLookback, e.doctrine.WindowBars)
	set.DepthSlope = (set.Depth - prevDepth) / slopeLookback

	set.ForceRatio = forceRatio(history, forceLookback)

	return set, nil
}

// directionalRatio measures buy pressure against sell pressure inside the
// bar: (close-low) / (high-close), floored to avoid division blowups.
func directionalRatio(b domain.Bar) float64 {
	return math.Max(b.Close-b.Low, epsilon) / math.Max(b.High-b.Close, epsilon)
}

func windowExtremes(bars []domain.Bar) (high, low float64) {
	high = bars[0].High
	low = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

func meanRange(bars []domain.Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += b.Range()
	}
	return sum / float64(len(bars))
}

// bodyZScore normalizes the current bar's body against the last n bodies.
// Returns 0 when the window has no variance.
func bodyZScore(history []domain.Bar, n int) float64 {
	if len(history) < n {
		n = len(history)
	}
	window := history[len(history)-n:]

	mean := 0.0
	for _, b := range window {
		mean += b.Body()
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, b := range window {
		d := b.Body() - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(window)))
	if std == 0 {
		return 0
	}

	cur := window[len(window)-1]
	return (cur.Body() - mean) / std
}

// efficiencyRatio is net close movement over total close movement, capped
// at 1. A flat path returns 1 (no wasted motion to measure).
func efficiencyRatio(history []domain.Bar, lookback int) float64 {
	if len(history) < lookback+1 {
		return 0.5
	}
	window := history[len(history)-lookback-1:]

	net := math.Abs(window[len(window)-1].Close - window[0].Close)
	total := 0.0
	for i := 1; i < len(window); i++ {
		total += math.Abs(window[i].Close - window[i-1].Close)
	}
	if total < epsilon {
		return 1
	}
	return math.Min(1, net/total)
}

// dcPre measures pre-entry compression: close stddev over mean bar range.
func dcPre(history []domain.Bar, lookback int) float64 {
	if len(history) < lookback+1 {
		return 1
	}
	window := history[len(history)-lookback-1:]

	mean := 0.0
	for _, b := range window {
		mean += b.Close
	}
	mean /= float64(len(window))

	variance := 0.0
	atr := 0.0
	for _, b := range window {
		d := b.Close - mean
		variance += d * d
		atr += b.Range()
	}
	std := math.Sqrt(variance / float64(len(window)))
	atr /= float64(len(window))
	if atr < epsilon {
		return 1
	}
	return std / atr
}

// volumeDelta is the volume-weighted signed body over the bar range.
func volumeDelta(b domain.Bar) float64 {
	r := b.Range()
	if r < epsilon {
		return 0
	}
	return b.Volume * (b.Close - b.Open) / r
}

// depthAt computes how far below the rolling high the close sits, as a
// fraction of the rolling range, for the bar at idx.
func depthAt(history []domain.Bar, idx, window int) float64 {
	if idx < 0 || idx >= len(history) {
		return 0.5
	}
	start := idx - window + 1
	if start < 0 {
		start = 0
	}
	bars := history[start : idx+1]
	if len(bars) < 2 {
		return 0.5
	}
	high, low := windowExtremes(bars)
	r := high - low
	if r < epsilon {
		return 0.5
	}
	return (high - bars[len(bars)-1].Close) / r
}

// forceRatio compares cumulative bear bodies to bull bodies over the
// lookback. Above 1 means sellers have been doing more work.
func forceRatio(history []domain.Bar, lookback int) float64 {
	if len(history) < lookback+1 {
		return 1
	}
	window := history[len(history)-lookback-1 : len(history)-1]

	bull, bear := 0.0, 0.0
	for _, b := range window {
		body := b.Close - b.Open
		if body > 0 {
			bull += body
		} else {
			bear += -body
		}
	}
	return bear / (bull + epsilon)
}
