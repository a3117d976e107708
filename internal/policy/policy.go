package policy

import (
	"tradecore/internal/domain"
)

// Size multipliers by certification level. Locked with the doctrine.
const (
	sizeSmall  = 1.0
	sizeMedium = 2.0
	sizeLarge  = 4.0
)

// tier1Signals are the only ignition sources with execution eligibility.
var tier1Signals = map[string]bool{
	"STB_SHORT": true,
	"STB_LONG":  true,
}

// blacklistSignals are denied at the identity layer no matter what theta
// says. Sources that failed validation stay here until re-promoted
// out-of-band.
var blacklistSignals = map[string]bool{
	"SPOT_BUY":       true,
	"SPOT_SELL":      true,
	"RANGE_GUESS_V1": true,
}

// Request carries everything the policy needs to rule on one candidate.
// It is assembled fresh per bar; nothing in it is cached.
type Request struct {
	Signal       string
	Theta        int
	ZoneID       string
	Collapsed    bool // zone ledger says the zone is dead
	IsRetry      bool
	ImpulseCount int
	RecoveryBars float64

	// Modeled execution friction for this candidate.
	SlippagePts float64
	LatencyMS   int64
}

// Friction bounds. These are deployment configuration, not doctrine: they
// describe the venue, not the strategy.
type FrictionBounds struct {
	MaxSlippagePts float64
	MaxLatencyMS   int64
}

// Policy maps (theta, eligibility tier, zone status) to a permission set.
// Pure: same request, same decision. Hard overrides (collapse, friction)
// are evaluated before the theta table and short-circuit it.
type Policy struct {
	doctrine domain.Doctrine
	bounds   FrictionBounds
	retries  *RetryBook

	allowed uint64
	denied  [4]uint64 // per failed layer
}

// NewPolicy creates the policy layer.
func NewPolicy(d domain.Doctrine, bounds FrictionBounds) *Policy {
	return &Policy{
		doctrine: d,
		bounds:   bounds,
		retries:  NewRetryBook(d.MaxRetries),
	}
}

// Retries exposes the retry book so the pipeline can record attempts.
func (p *Policy) Retries() *RetryBook { return p.retries }

// Evaluate rules on one candidate. Every denial carries a reason code and
// the layer that failed; a suppressed signal is never silent.
func (p *Policy) Evaluate(req Request) domain.PolicyDecision {
	// Layer 0: identity.
	if blacklistSignals[req.Signal] || !tier1Signals[req.Signal] {
		return p.deny(domain.LayerIdentity, domain.ReasonBlacklisted, req.Theta)
	}

	// Hard override: collapsed zone denies regardless of theta.
	if req.Collapsed {
		return p.deny(domain.LayerZone, domain.ReasonZoneCollapsed, req.Theta)
	}

	// Hard override: execution friction breach.
	if req.SlippagePts > p.bounds.MaxSlippagePts || req.LatencyMS > p.bounds.MaxLatencyMS {
		return p.deny(domain.LayerExecution, domain.ReasonFriction, req.Theta)
	}

	// Layer 1: state authority (the theta table).
	if req.Theta < 1 {
		return p.deny(domain.LayerState, domain.ReasonNoState, req.Theta)
	}

	retryCorroborated := req.ImpulseCount > p.doctrine.RetryImpulseMin &&
		req.RecoveryBars < p.doctrine.RetryRecoveryMax

	if req.IsRetry && !p.retryPermitted(req, retryCorroborated) {
		return p.deny(domain.LayerExecution, domain.ReasonRetryDenied, req.Theta)
	}

	dec := domain.PolicyDecision{
		Allowed:     true,
		Theta:       req.Theta,
		Reason:      domain.ReasonOK,
		LayerFailed: domain.LayerNone,
	}

	switch {
	case req.Theta >= 3:
		dec.SizeMultiplier = sizeLarge
		dec.RetryAllowed = true
		dec.TrailingAllowed = true // optional extension past the fixed TP
	case req.Theta == 2:
		dec.SizeMultiplier = sizeSmall
		if retryCorroborated {
			dec.SizeMultiplier = sizeMedium
		}
		dec.RetryAllowed = retryCorroborated
	default:
		dec.SizeMultiplier = sizeSmall
	}

	p.allowed++
	return dec
}

// retryPermitted layers the per-zone retry budget over the theta rules.
func (p *Policy) retryPermitted(req Request, corroborated bool) bool {
	switch {
	case req.Theta >= 3:
		// Lock-in retries freely, still within the zone budget.
	case req.Theta == 2:
		if !corroborated {
			return false
		}
	default:
		return false
	}
	return p.retries.CanRetry(req.ZoneID)
}

func (p *Policy) deny(layer int, reason domain.ReasonCode, theta int) domain.PolicyDecision {
	if layer >= 0 && layer < len(p.denied) {
		p.denied[layer]++
	}
	return domain.Deny(layer, reason, theta)
}

// Stats reports allow/deny counts, denials keyed by failed layer.
type Stats struct {
	Allowed       uint64
	DeniedByLayer [4]uint64
}

// Stats returns a snapshot of the policy's decision counters.
func (p *Policy) Stats() Stats {
	return Stats{Allowed: p.allowed, DeniedByLayer: p.denied}
}
