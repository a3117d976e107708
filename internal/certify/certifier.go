package certify

import (
	"errors"

	"tradecore/internal/domain"
	"tradecore/internal/ledger"
)

// Theta names, for logs and journal rows.
var thetaNames = map[int]string{
	0: "NO_STATE",
	1: "BIRTH",
	2: "TRANSITION",
	3: "LOCK_IN",
}

// ThetaName returns the label for a certification level.
func ThetaName(theta int) string {
	if theta >= 3 {
		return thetaNames[3]
	}
	return thetaNames[theta]
}

// Corroboration is the secondary evidence consulted for the theta=2
// elevation: how many times the zone was rapidly re-tested and how fast the
// latest re-test recovered.
type Corroboration struct {
	ImpulseCount int
	RecoveryBars float64
}

// Certifier assigns the discrete certification level theta to an ignition
// candidate. Theta is derived purely from the zone's persistence record plus
// the retest corroboration — never from price prediction.
//
//	theta=0  no corroborating record, or the streak was broken by a loss
//	theta=1  one directional success recorded in the zone/direction pair
//	theta=2  two successes AND the fast-retest corroboration holds;
//	         repetition alone does not elevate
//	theta>=3 three or more consecutive same-direction successes (lock-in)
//
// Identical (zone history, corroboration) input always yields the same theta.
type Certifier struct {
	doctrine domain.Doctrine
	ledger   *ledger.Ledger
}

// NewCertifier creates a certifier reading from the given zone ledger.
func NewCertifier(d domain.Doctrine, l *ledger.Ledger) *Certifier {
	return &Certifier{doctrine: d, ledger: l}
}

// Certify computes theta for the candidate. An ignition event is consumed
// at most once; the caller must not re-submit the same event.
func (c *Certifier) Certify(ev *domain.IgnitionEvent, price float64, corro Corroboration) int {
	if ev == nil {
		return 0
	}

	zoneID := c.ledger.ZoneID(price)
	rec, err := c.ledger.Query(zoneID)
	if errors.Is(err, domain.ErrZoneNotFound) {
		return 0 // freshly created zone, nothing provable yet
	}

	// Only successes in the candidate's own direction certify it.
	if rec.LastDirection != ev.Direction {
		return 0
	}

	streak := rec.SuccessStreak
	switch {
	case streak <= 0:
		return 0
	case streak == 1:
		return 1
	case streak == 2:
		if c.elevationHolds(corro) {
			return 2
		}
		return 1
	default:
		return streak // >=3, lock-in
	}
}

// elevationHolds checks the conditional theta=2 corroboration: a bounded
// count of rapid re-tests with fast recovery inside the zone.
func (c *Certifier) elevationHolds(corro Corroboration) bool {
	return corro.ImpulseCount > c.doctrine.RetryImpulseMin &&
		corro.RecoveryBars < c.doctrine.RetryRecoveryMax
}
