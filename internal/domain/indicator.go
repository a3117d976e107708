package domain

// IndicatorSet is the read-only per-bar snapshot computed by the feature
// extractor from a bar plus its trailing window. Never mutated after creation.
type IndicatorSet struct {
	Index int64
	Ts    int64

	Ratio      float64 // directional ratio: (close-low) / (high-close)
	Channel    float64 // position inside the 20-bar range, percent
	BodyZ      float64 // body size z-score over the body window
	ER         float64 // efficiency ratio, 0..1
	DCPre      float64 // close stddev / mean range over the pre window
	Delta      float64 // volume-signed body over range
	Depth      float64 // (high20 - close) / range20
	DepthSlope float64 // depth change rate over the slope window
	ForceRatio float64 // bear body sum / bull body sum over the force window
	Range20    float64 // high20 - low20
	ATR20      float64 // mean bar range over the window
	Burst      bool    // bar range exceeded 1.8x ATR20
}

// IgnitionEvent is a directional ignition candidate proposed by the entry
// gate. It is a sensor reading, never a guaranteed entry: the certifier
// consumes it at most once and decides whether any state is provable.
type IgnitionEvent struct {
	BarIndex   int64
	Direction  Direction
	Source     string // signal source name, e.g. "STB_SHORT"
	Indicators IndicatorSet
}
