package risk

import (
	"log/slog"

	"github.com/google/uuid"

	"tradecore/internal/domain"
)

// ExitType classifies how a position left the book.
type ExitType string

const (
	ExitStopLoss ExitType = "STOP_LOSS"
	ExitTrail    ExitType = "TRAIL"
	ExitTP       ExitType = "TAKE_PROFIT"
	ExitTimeout  ExitType = "TIMEOUT"
	ExitFlatten  ExitType = "FLATTEN"
)

// ExitResult describes a closed position. GapFill marks the worst-reasonable
// open fill used when the bar gapped over the level instead of trading
// through it.
type ExitResult struct {
	Type     ExitType
	Price    float64
	PnL      float64 // points, signed in the position's favor
	BarIndex int64
	GapFill  bool
}

// Controller runs the per-position state machine OPEN -> TRAILING -> CLOSED
// with the parallel DEFENSE escalation. One controller serves one
// instrument's pipeline; it holds no cross-position state.
//
// Exit evaluation order inside a bar: an active trailing stop first (it is
// strictly tighter than the loss stop), then the stop-loss, then the fixed
// take-profit, then the bar-count timeout. A stop/target tie on a
// non-trailing position resolves stop-loss-first (conservative). When the
// bar's open already sits beyond a level, the fill is the open, not the
// theoretical level.
type Controller struct {
	doctrine domain.Doctrine
}

// NewController creates a controller bound to the locked doctrine.
func NewController(d domain.Doctrine) *Controller {
	return &Controller{doctrine: d}
}

// Open creates a position under the default stop.
func (c *Controller) Open(instrument string, dir domain.Direction, bar domain.Bar, theta int, sizeMult float64, zoneID string, trailExtension bool) *domain.Position {
	pos := &domain.Position{
		ID:             uuid.NewString(),
		Instrument:     instrument,
		Direction:      dir,
		EntryPrice:     bar.Close,
		EntryIndex:     bar.Index,
		EntryTs:        bar.Ts,
		ThetaAtEntry:   theta,
		SizeMult:       sizeMult,
		ZoneID:         zoneID,
		State:          domain.PositionOpen,
		StopLoss:       c.doctrine.DefaultSL,
		TrailExtension: trailExtension,
	}
	slog.Info("position opened",
		slog.String("id", pos.ID),
		slog.String("instrument", instrument),
		slog.String("direction", dir.String()),
		slog.Float64("entry", pos.EntryPrice),
		slog.Int("theta", theta))
	return pos
}

// Update admits one bar for an open position. Returns the exit when a level
// was hit, nil while the position stays open.
func (c *Controller) Update(pos *domain.Position, bar domain.Bar) *ExitResult {
	if pos == nil || pos.State == domain.PositionClosed {
		return nil
	}

	d := c.doctrine
	pos.Bars++

	// DEFENSE (G3): survived too long with too little favorable movement.
	// One-way escalation; checked against the MFE carried into this bar.
	if !pos.Defense && pos.Bars >= d.LWSBars && pos.MFE < d.LWSMFEThreshold {
		pos.StopLoss = d.DefenseSL
		pos.Defense = true
		slog.Info("defense escalation",
			slog.String("id", pos.ID),
			slog.Float64("sl", pos.StopLoss))
	}

	favorableHigh := bar.High
	if pos.Direction == domain.Short {
		favorableHigh = bar.Low
	}

	if fe := pos.FavorableExcursion(favorableHigh); fe > pos.MFE {
		pos.MFE = fe
	}

	// Trailing activation and monotone tightening.
	trailMoved := false
	if pos.MFE >= d.MFEThreshold {
		candidate := c.favorablePrice(pos, pos.MFE-d.TrailOffset)
		if pos.State == domain.PositionOpen {
			pos.State = domain.PositionTrailing
			pos.TrailStop = candidate
			trailMoved = true
		} else if c.tighter(pos, candidate) {
			pos.TrailStop = candidate
			trailMoved = true
		}
	}

	if pos.State == domain.PositionTrailing {
		if trailMoved {
			// The stop derives from this bar's own extreme; only the close
			// can prove price came back through it afterwards.
			if c.favorableSideOf(pos, bar.Close) <= c.favorableSideOf(pos, pos.TrailStop) {
				return c.close(pos, &ExitResult{
					Type:     ExitTrail,
					Price:    pos.TrailStop,
					PnL:      pos.FavorableExcursion(pos.TrailStop),
					BarIndex: bar.Index,
				})
			}
		} else if exit := c.checkLevel(pos, bar, pos.TrailStop, ExitTrail, false); exit != nil {
			return c.close(pos, exit)
		}
	}

	// The trail supersedes the loss stop: once trailing, the stop level is
	// strictly looser and never consulted again.
	if pos.State != domain.PositionTrailing {
		stopPrice := c.favorablePrice(pos, -pos.StopLoss)
		if exit := c.checkLevel(pos, bar, stopPrice, ExitStopLoss, false); exit != nil {
			return c.close(pos, exit)
		}
	}

	if !pos.TrailExtension {
		tpPrice := c.favorablePrice(pos, d.TP)
		if exit := c.checkLevel(pos, bar, tpPrice, ExitTP, true); exit != nil {
			return c.close(pos, exit)
		}
	}

	if pos.Bars >= d.TimeoutBars {
		return c.close(pos, &ExitResult{
			Type:     ExitTimeout,
			Price:    bar.Close,
			PnL:      pos.FavorableExcursion(bar.Close),
			BarIndex: bar.Index,
		})
	}

	return nil
}

// Flatten cancels the position at the bar close and discards its risk state.
func (c *Controller) Flatten(pos *domain.Position, bar domain.Bar) *ExitResult {
	if pos == nil || pos.State == domain.PositionClosed {
		return nil
	}
	return c.close(pos, &ExitResult{
		Type:     ExitFlatten,
		Price:    bar.Close,
		PnL:      pos.FavorableExcursion(bar.Close),
		BarIndex: bar.Index,
	})
}

// favorablePrice converts an offset in favorable points to an absolute price.
func (c *Controller) favorablePrice(pos *domain.Position, points float64) float64 {
	if pos.Direction == domain.Long {
		return pos.EntryPrice + points
	}
	return pos.EntryPrice - points
}

// favorableSideOf projects a price onto the favorable axis so that "<="
// reads "at or beyond the stop" for both directions.
func (c *Controller) favorableSideOf(pos *domain.Position, price float64) float64 {
	if pos.Direction == domain.Long {
		return price
	}
	return -price
}

// tighter reports whether candidate improves the trail stop (moves it in
// the favorable direction only — the monotonicity invariant).
func (c *Controller) tighter(pos *domain.Position, candidate float64) bool {
	if pos.Direction == domain.Long {
		return candidate > pos.TrailStop
	}
	return candidate < pos.TrailStop
}

// checkLevel tests whether the bar reached the level. favorableSide selects
// which side of the bar must touch it (take-profit vs stop/trail). A gap
// over the level fills at the bar open.
func (c *Controller) checkLevel(pos *domain.Position, bar domain.Bar, level float64, typ ExitType, favorableSide bool) *ExitResult {
	crossed, gapped := c.levelHit(pos, bar, level, favorableSide)
	if !crossed {
		return nil
	}
	price := level
	if gapped {
		price = bar.Open
	}
	return &ExitResult{
		Type:     typ,
		Price:    price,
		PnL:      pos.FavorableExcursion(price),
		BarIndex: bar.Index,
		GapFill:  gapped,
	}
}

func (c *Controller) levelHit(pos *domain.Position, bar domain.Bar, level float64, favorableSide bool) (crossed, gapped bool) {
	long := pos.Direction == domain.Long
	if favorableSide == long {
		// Level sits above: touched by the high, gapped when the open
		// already cleared it.
		return bar.High >= level, bar.Open >= level
	}
	return bar.Low <= level, bar.Open <= level
}

func (c *Controller) close(pos *domain.Position, exit *ExitResult) *ExitResult {
	pos.State = domain.PositionClosed
	slog.Info("position closed",
		slog.String("id", pos.ID),
		slog.String("type", string(exit.Type)),
		slog.Float64("pnl", exit.PnL),
		slog.Bool("gap_fill", exit.GapFill))
	return exit
}
