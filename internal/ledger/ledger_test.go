package ledger_test

import (
	"errors"
	"testing"

	"tradecore/internal/domain"
	"tradecore/internal/ledger"
)

func TestZoneQuantization(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())

	// Every price in [21500, 21600) maps to the same zone.
	if a, b := l.ZoneID(21500), l.ZoneID(21599.75); a != b {
		t.Errorf("prices in one band got different zones: %s vs %s", a, b)
	}
	if l.ZoneID(21500) != "21500-21600" {
		t.Errorf("unexpected zone format: %s", l.ZoneID(21500))
	}
	if l.ZoneID(21499) == l.ZoneID(21500) {
		t.Error("band boundary should separate zones")
	}
}

func TestQueryUnknownZone(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())

	_, err := l.Query("0-100")
	if !errors.Is(err, domain.ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestStreakAccounting(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())
	zone := l.ZoneID(21550)

	// Two same-direction wins build the streak.
	l.RecordOutcome(zone, domain.Short, domain.OutcomeWin, 10)
	rec := l.RecordOutcome(zone, domain.Short, domain.OutcomeWin, 20)
	if rec.SuccessStreak != 2 {
		t.Errorf("expected streak 2, got %d", rec.SuccessStreak)
	}
	if rec.ConsecutiveCount != 2 {
		t.Errorf("expected consecutive 2, got %d", rec.ConsecutiveCount)
	}

	// A direction flip resets both counters.
	rec = l.RecordOutcome(zone, domain.Long, domain.OutcomeWin, 30)
	if rec.ConsecutiveCount != 1 {
		t.Errorf("direction flip: expected consecutive 1, got %d", rec.ConsecutiveCount)
	}
	if rec.SuccessStreak != 1 {
		t.Errorf("direction flip: expected streak 1 (this win only), got %d", rec.SuccessStreak)
	}

	// A loss zeroes the success streak, regardless of its length.
	rec = l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 40)
	if rec.SuccessStreak != 0 {
		t.Errorf("loss: expected streak 0, got %d", rec.SuccessStreak)
	}
}

func TestZoneCollapse(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())
	zone := l.ZoneID(18050)

	// One loss: warned but alive.
	l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 10)
	if l.Collapsed(zone) {
		t.Fatal("zone collapsed after a single loss")
	}

	// A win in between resets the loss streak.
	l.RecordOutcome(zone, domain.Long, domain.OutcomeWin, 20)
	l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 30)
	if l.Collapsed(zone) {
		t.Fatal("win should have reset the loss streak")
	}

	// Second consecutive loss: collapse, and it sticks.
	l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 40)
	if !l.Collapsed(zone) {
		t.Fatal("expected collapse after two consecutive losses")
	}
	l.RecordOutcome(zone, domain.Long, domain.OutcomeWin, 50)
	if !l.Collapsed(zone) {
		t.Error("collapse must persist through later wins until reset")
	}
}

func TestQueryReturnsCopy(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())
	zone := l.ZoneID(100)
	l.RecordOutcome(zone, domain.Long, domain.OutcomeWin, 1)

	rec, err := l.Query(zone)
	if err != nil {
		t.Fatal(err)
	}
	rec.SuccessStreak = 99 // mutate the copy

	fresh, _ := l.Query(zone)
	if fresh.SuccessStreak != 1 {
		t.Error("Query must return a copy, not the live record")
	}
}

func TestReset(t *testing.T) {
	l := ledger.NewLedger(domain.LockedDoctrine())
	zone := l.ZoneID(100)
	l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 1)
	l.RecordOutcome(zone, domain.Long, domain.OutcomeLoss, 2)

	l.Reset()
	if l.Size() != 0 {
		t.Errorf("expected empty ledger after reset, got %d zones", l.Size())
	}
	if l.Collapsed(zone) {
		t.Error("collapse must clear on session reset")
	}
}
