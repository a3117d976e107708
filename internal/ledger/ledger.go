package ledger

import (
	"log/slog"

	"tradecore/internal/domain"
)

// Ledger records discrete price zones and the outcomes of trades that
// closed near each zone. It is the single source of truth for persistence
// lookups and collapse detection.
//
// Concurrency: single-writer. Only the per-bar pipeline mutates the ledger,
// so no locking is used; instances must not be shared across instruments.
type Ledger struct {
	doctrine domain.Doctrine
	zones    map[string]*domain.PersistenceRecord
}

// NewLedger creates an empty ledger bound to the locked doctrine.
func NewLedger(d domain.Doctrine) *Ledger {
	return &Ledger{
		doctrine: d,
		zones:    make(map[string]*domain.PersistenceRecord),
	}
}

// ZoneID quantizes price into the ledger's locked band width.
func (l *Ledger) ZoneID(price float64) string {
	return domain.ZoneID(price, l.doctrine.ZoneBand)
}

// RecordOutcome appends a trade outcome to the zone's persistence record.
// The consecutive counter resets to 1 on a direction change and increments
// on a same-direction repeat. A win clears the zone's loss streak; once the
// loss streak reaches the collapse bound, the zone is marked collapsed and
// stays collapsed until Reset.
func (l *Ledger) RecordOutcome(zoneID string, dir domain.Direction, outcome domain.Outcome, barIndex int64) *domain.PersistenceRecord {
	rec, ok := l.zones[zoneID]
	if !ok {
		rec = &domain.PersistenceRecord{
			ZoneID:        zoneID,
			CreationIndex: barIndex,
		}
		l.zones[zoneID] = rec
	}

	if rec.LastDirection == dir {
		rec.ConsecutiveCount++
	} else {
		rec.ConsecutiveCount = 1
		rec.SuccessStreak = 0
	}
	rec.LastDirection = dir
	rec.LastOutcome = outcome

	switch outcome {
	case domain.OutcomeWin:
		rec.SuccessStreak++
		rec.LossStreak = 0
	case domain.OutcomeLoss:
		rec.SuccessStreak = 0
		rec.LossStreak++
		if rec.LossStreak >= l.doctrine.CollapseAfter && !rec.Collapsed {
			rec.Collapsed = true
			slog.Warn("zone collapsed",
				slog.String("zone", zoneID),
				slog.Int("loss_streak", rec.LossStreak))
		}
	}

	return rec
}

// Query returns a copy of the zone's persistence record, or ErrZoneNotFound
// when no trade has ever closed in the zone.
func (l *Ledger) Query(zoneID string) (domain.PersistenceRecord, error) {
	rec, ok := l.zones[zoneID]
	if !ok {
		return domain.PersistenceRecord{}, domain.ErrZoneNotFound
	}
	return *rec, nil
}

// Collapsed reports whether the zone permanently denies entries.
func (l *Ledger) Collapsed(zoneID string) bool {
	rec, ok := l.zones[zoneID]
	return ok && rec.Collapsed
}

// Size returns the number of tracked zones.
func (l *Ledger) Size() int {
	return len(l.zones)
}

// Reset clears all records. Session/day boundary only — never mid-session.
func (l *Ledger) Reset() {
	l.zones = make(map[string]*domain.PersistenceRecord)
}
