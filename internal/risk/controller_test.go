package risk_test

import (
	"math/rand"
	"testing"

	"tradecore/internal/domain"
	"tradecore/internal/risk"
)

func open(t *testing.T, dir domain.Direction, entry float64) (*risk.Controller, *domain.Position) {
	t.Helper()
	c := risk.NewController(domain.LockedDoctrine())
	bar := domain.Bar{Ts: 1000, Index: 1, Open: entry, High: entry, Low: entry, Close: entry}
	pos := c.Open("NQ", dir, bar, 1, 1, "100-200", false)
	return c, pos
}

func bar(idx int64, o, h, l, cl float64) domain.Bar {
	return domain.Bar{Ts: 1000 + idx*1000, Index: 1 + idx, Open: o, High: h, Low: l, Close: cl}
}

func TestTrailingActivationAndTightening(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	// MFE 6: below the activation threshold, no trail yet.
	if exit := c.Update(pos, bar(1, 100, 106, 99, 105)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if pos.State != domain.PositionOpen {
		t.Fatal("trail must not activate below MFE 7")
	}

	// MFE 9: trail activates at entry + (9 - 1.5) = 107.5.
	if exit := c.Update(pos, bar(2, 105, 109, 104, 108)); exit != nil {
		t.Fatalf("unexpected exit on activation bar: %+v", exit)
	}
	if pos.State != domain.PositionTrailing {
		t.Fatal("expected TRAILING state")
	}
	if pos.TrailStop != 107.5 {
		t.Fatalf("expected trail 107.5, got %v", pos.TrailStop)
	}

	// MFE 12: trail tightens to 110.5.
	if exit := c.Update(pos, bar(3, 108, 112, 107, 111)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if pos.TrailStop != 110.5 {
		t.Fatalf("expected trail 110.5, got %v", pos.TrailStop)
	}

	// Pullback through the trail exits at the stop, not the low.
	exit := c.Update(pos, bar(4, 111, 111.5, 109, 110))
	if exit == nil || exit.Type != risk.ExitTrail {
		t.Fatalf("expected TRAIL exit, got %+v", exit)
	}
	if exit.Price != 110.5 {
		t.Errorf("expected fill at 110.5, got %v", exit.Price)
	}
	if exit.PnL != 10.5 {
		t.Errorf("expected PnL 10.5, got %v", exit.PnL)
	}
}

func TestTrailNeverLoosens(t *testing.T) {
	c, pos := open(t, domain.Long, 100)
	c.Update(pos, bar(1, 100, 112, 99, 111)) // MFE 12, trail 110.5

	// A quieter bar must not move the stop backwards.
	if exit := c.Update(pos, bar(2, 111, 111.4, 110.6, 110.8)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if pos.TrailStop != 110.5 {
		t.Errorf("trail loosened: %v", pos.TrailStop)
	}
}

func TestTrailingShort(t *testing.T) {
	c, pos := open(t, domain.Short, 100)

	// Favorable move down 9 points: trail at 100 - 7.5 = 92.5.
	if exit := c.Update(pos, bar(1, 99, 99.5, 91, 92)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if pos.TrailStop != 92.5 {
		t.Fatalf("expected trail 92.5, got %v", pos.TrailStop)
	}

	exit := c.Update(pos, bar(2, 92, 94, 91.5, 93.5))
	if exit == nil || exit.Type != risk.ExitTrail {
		t.Fatalf("expected TRAIL exit, got %+v", exit)
	}
	if exit.PnL != 7.5 {
		t.Errorf("expected PnL 7.5, got %v", exit.PnL)
	}
}

func TestDefenseEscalation(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	// Three stagnant bars: no escalation yet.
	for i := int64(1); i <= 3; i++ {
		c.Update(pos, bar(i, 100, 100.5, 99.5, 100))
	}
	if pos.Defense {
		t.Fatal("defense fired before the bar bound")
	}

	// Bar 4, MFE carried in is 0.5 < 1.5: stop tightens 30 -> 12. The check
	// runs against the MFE brought into the bar, so even a recovery inside
	// this bar does not cancel it.
	c.Update(pos, bar(4, 100, 105, 99.5, 104))
	if !pos.Defense {
		t.Fatal("expected defense escalation at bar 4")
	}
	if pos.StopLoss != 12 {
		t.Fatalf("expected stop 12, got %v", pos.StopLoss)
	}

	// One-way: later favorable movement never restores the wide stop.
	c.Update(pos, bar(5, 104, 106, 103, 105))
	if pos.StopLoss != 12 {
		t.Errorf("defense must not relax, stop %v", pos.StopLoss)
	}
}

func TestDefenseSkippedWhenMFEHealthy(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	// Early favorable movement above the floor keeps the wide stop.
	c.Update(pos, bar(1, 100, 102, 99.5, 101))
	for i := int64(2); i <= 6; i++ {
		c.Update(pos, bar(i, 101, 101.5, 100.5, 101))
	}
	if pos.Defense {
		t.Error("defense fired despite MFE above the floor")
	}
	if pos.StopLoss != 30 {
		t.Errorf("expected default stop 30, got %v", pos.StopLoss)
	}
}

func TestDefenseStopExit(t *testing.T) {
	c, pos := open(t, domain.Long, 100)
	for i := int64(1); i <= 4; i++ {
		c.Update(pos, bar(i, 100, 100.5, 99.5, 100))
	}
	if !pos.Defense {
		t.Fatal("expected defense active")
	}

	// The tightened stop at 88 exits well before -30.
	exit := c.Update(pos, bar(5, 99, 99.5, 86, 87))
	if exit == nil || exit.Type != risk.ExitStopLoss {
		t.Fatalf("expected STOP_LOSS exit, got %+v", exit)
	}
	if exit.Price != 88 || exit.PnL != -12 {
		t.Errorf("expected fill 88 / PnL -12, got %v / %v", exit.Price, exit.PnL)
	}
}

func TestStopLossAndGapFill(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	// Traded through the level: fill at the level.
	exit := c.Update(pos, bar(1, 99, 100, 69, 75))
	if exit == nil || exit.Type != risk.ExitStopLoss {
		t.Fatalf("expected STOP_LOSS exit, got %+v", exit)
	}
	if exit.Price != 70 || exit.GapFill {
		t.Errorf("expected clean fill at 70, got %v (gap=%v)", exit.Price, exit.GapFill)
	}

	// Gapped over the level: fill at the open, flagged.
	c2, pos2 := open(t, domain.Long, 100)
	exit = c2.Update(pos2, bar(1, 65, 66, 60, 62))
	if exit == nil || exit.Type != risk.ExitStopLoss {
		t.Fatalf("expected STOP_LOSS exit, got %+v", exit)
	}
	if exit.Price != 65 || !exit.GapFill {
		t.Errorf("expected gap fill at open 65, got %v (gap=%v)", exit.Price, exit.GapFill)
	}
	if exit.PnL != -35 {
		t.Errorf("expected PnL -35, got %v", exit.PnL)
	}
}

func TestTakeProfit(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	// Close holds above the trail; the fixed target at +20 fills.
	exit := c.Update(pos, bar(1, 105, 121, 104, 120.5))
	if exit == nil || exit.Type != risk.ExitTP {
		t.Fatalf("expected TAKE_PROFIT exit, got %+v", exit)
	}
	if exit.Price != 120 || exit.PnL != 20 {
		t.Errorf("expected fill 120 / PnL 20, got %v / %v", exit.Price, exit.PnL)
	}
}

func TestTrailExtensionRunsPastTP(t *testing.T) {
	c := risk.NewController(domain.LockedDoctrine())
	entry := domain.Bar{Ts: 1000, Index: 1, Open: 100, High: 100, Low: 100, Close: 100}
	pos := c.Open("NQ", domain.Long, entry, 3, 4, "100-200", true)

	// Same bar that fills the TP above does not close an extension position.
	if exit := c.Update(pos, bar(1, 105, 121, 104, 120.5)); exit != nil {
		t.Fatalf("extension position closed at TP: %+v", exit)
	}

	// Trail keeps riding: MFE 30 moves the stop to 128.5.
	if exit := c.Update(pos, bar(2, 121, 130, 120.9, 129)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	exit := c.Update(pos, bar(3, 129, 129, 127, 127.5))
	if exit == nil || exit.Type != risk.ExitTrail {
		t.Fatalf("expected TRAIL exit, got %+v", exit)
	}
	if exit.PnL != 28.5 {
		t.Errorf("expected PnL 28.5 (past the fixed +20), got %v", exit.PnL)
	}
}

func TestTimeout(t *testing.T) {
	c, pos := open(t, domain.Long, 100)

	var exit *risk.ExitResult
	for i := int64(1); i <= 180; i++ {
		exit = c.Update(pos, bar(i, 100, 100.5, 99.5, 100.2))
		if exit != nil {
			break
		}
	}
	if exit == nil || exit.Type != risk.ExitTimeout {
		t.Fatalf("expected TIMEOUT exit, got %+v", exit)
	}
	if pos.Bars != 180 {
		t.Errorf("expected timeout at bar 180, got %d", pos.Bars)
	}
	if exit.Price != 100.2 {
		t.Errorf("timeout must settle at the close, got %v", exit.Price)
	}
}

func TestFlatten(t *testing.T) {
	c, pos := open(t, domain.Long, 100)
	c.Update(pos, bar(1, 100, 103, 99, 102))

	exit := c.Flatten(pos, bar(2, 102, 102.5, 101, 101.5))
	if exit == nil || exit.Type != risk.ExitFlatten {
		t.Fatalf("expected FLATTEN exit, got %+v", exit)
	}
	if exit.Price != 101.5 {
		t.Errorf("flatten must settle at the close, got %v", exit.Price)
	}
	if pos.State != domain.PositionClosed {
		t.Error("flattened position must be closed")
	}

	// Idempotent: a closed position cannot exit again.
	if again := c.Flatten(pos, bar(3, 101, 102, 100, 101)); again != nil {
		t.Error("second flatten produced an exit")
	}
}

// Once MFE has reached the activation threshold, a gap-free path can no
// longer settle at a net loss: the trail locks in at least MFE - 1.5.
func TestTrailingLocksInProfit(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		c, pos := open(t, domain.Long, 100)

		price := 100.0
		var exit *risk.ExitResult
		for i := int64(1); i <= 300 && exit == nil; i++ {
			o := price
			cl := o + (rng.Float64()-0.48)*4 // slight upward drift
			h := o
			if cl > h {
				h = cl
			}
			h += rng.Float64() * 2
			l := o
			if cl < l {
				l = cl
			}
			l -= rng.Float64() * 2
			exit = c.Update(pos, bar(i, o, h, l, cl))
			price = cl
		}

		if exit == nil {
			continue
		}
		if pos.MFE >= 7 && exit.PnL <= 0 {
			t.Fatalf("trial %d: MFE %.2f reached threshold but settled at %.2f (%s)",
				trial, pos.MFE, exit.PnL, exit.Type)
		}
	}
}
