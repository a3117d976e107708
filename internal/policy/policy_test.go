package policy_test

import (
	"testing"

	"tradecore/internal/domain"
	"tradecore/internal/policy"
)

func newPolicy() *policy.Policy {
	return policy.NewPolicy(domain.LockedDoctrine(), policy.FrictionBounds{
		MaxSlippagePts: 2,
		MaxLatencyMS:   500,
	})
}

func request(theta int) policy.Request {
	return policy.Request{
		Signal: "STB_SHORT",
		Theta:  theta,
		ZoneID: "21500-21600",
	}
}

func TestBlacklistDeniesRegardlessOfTheta(t *testing.T) {
	p := newPolicy()

	// A blacklisted source with a perfect state score still dies at layer 0.
	req := request(5)
	req.Signal = "SPOT_BUY"
	dec := p.Evaluate(req)
	if dec.Allowed {
		t.Fatal("blacklisted signal allowed")
	}
	if dec.Reason != domain.ReasonBlacklisted || dec.LayerFailed != domain.LayerIdentity {
		t.Errorf("expected identity-layer denial, got %s at layer %d", dec.Reason, dec.LayerFailed)
	}

	// Unknown sources are treated the same: no tier, no execution.
	req.Signal = "SOME_NEW_SIGNAL"
	if dec := p.Evaluate(req); dec.Allowed {
		t.Error("untiered signal allowed")
	}
}

func TestCollapsedZoneOverridesTheta(t *testing.T) {
	p := newPolicy()

	req := request(3)
	req.Collapsed = true
	dec := p.Evaluate(req)
	if dec.Allowed {
		t.Fatal("entry allowed in a collapsed zone")
	}
	if dec.Reason != domain.ReasonZoneCollapsed || dec.LayerFailed != domain.LayerZone {
		t.Errorf("expected zone-layer denial, got %s at layer %d", dec.Reason, dec.LayerFailed)
	}
}

func TestFrictionBreach(t *testing.T) {
	p := newPolicy()

	req := request(3)
	req.SlippagePts = 2.5
	if dec := p.Evaluate(req); dec.Allowed || dec.Reason != domain.ReasonFriction {
		t.Errorf("slippage breach: expected friction denial, got %+v", dec)
	}

	req = request(3)
	req.LatencyMS = 900
	if dec := p.Evaluate(req); dec.Allowed || dec.Reason != domain.ReasonFriction {
		t.Errorf("latency breach: expected friction denial, got %+v", dec)
	}

	// At the bound is still acceptable.
	req = request(3)
	req.SlippagePts = 2
	req.LatencyMS = 500
	if dec := p.Evaluate(req); !dec.Allowed {
		t.Errorf("friction at the bound denied: %+v", dec)
	}
}

func TestThetaZeroNeverExecutes(t *testing.T) {
	p := newPolicy()

	dec := p.Evaluate(request(0))
	if dec.Allowed {
		t.Fatal("theta 0 allowed")
	}
	if dec.Reason != domain.ReasonNoState || dec.LayerFailed != domain.LayerState {
		t.Errorf("expected state-layer denial, got %s at layer %d", dec.Reason, dec.LayerFailed)
	}
}

func TestSizeTable(t *testing.T) {
	p := newPolicy()

	// theta 1: minimal size, no retry, no extension.
	dec := p.Evaluate(request(1))
	if !dec.Allowed || dec.SizeMultiplier != 1 || dec.RetryAllowed || dec.TrailingAllowed {
		t.Errorf("theta 1: expected 1x/no-retry/no-extension, got %+v", dec)
	}

	// theta 2 without corroboration: still minimal.
	dec = p.Evaluate(request(2))
	if !dec.Allowed || dec.SizeMultiplier != 1 || dec.RetryAllowed {
		t.Errorf("theta 2 uncorroborated: expected 1x/no-retry, got %+v", dec)
	}

	// theta 2 corroborated: medium size, retry unlocked.
	req := request(2)
	req.ImpulseCount = 3
	req.RecoveryBars = 2
	dec = p.Evaluate(req)
	if !dec.Allowed || dec.SizeMultiplier != 2 || !dec.RetryAllowed {
		t.Errorf("theta 2 corroborated: expected 2x/retry, got %+v", dec)
	}

	// theta >= 3: full size, retry, optional trail extension past the TP.
	dec = p.Evaluate(request(3))
	if !dec.Allowed || dec.SizeMultiplier != 4 || !dec.RetryAllowed || !dec.TrailingAllowed {
		t.Errorf("theta 3: expected 4x/retry/extension, got %+v", dec)
	}
}

func TestRetryBudget(t *testing.T) {
	p := newPolicy()
	zone := "21500-21600"

	// First retry at theta 3 passes the budget.
	req := request(3)
	req.IsRetry = true
	dec := p.Evaluate(req)
	if !dec.Allowed {
		t.Fatalf("first retry denied: %+v", dec)
	}
	p.Retries().RecordAttempt(zone)

	// Budget of one: the second retry in the zone is refused.
	dec = p.Evaluate(req)
	if dec.Allowed {
		t.Fatal("second retry allowed past the budget")
	}
	if dec.Reason != domain.ReasonRetryDenied || dec.LayerFailed != domain.LayerExecution {
		t.Errorf("expected execution-layer retry denial, got %s at layer %d", dec.Reason, dec.LayerFailed)
	}

	// A win releases the zone and restores the budget.
	p.Retries().ReleaseZone(zone)
	if dec := p.Evaluate(req); !dec.Allowed {
		t.Errorf("retry denied after release: %+v", dec)
	}
}

func TestRetryRequiresAuthority(t *testing.T) {
	p := newPolicy()

	// theta 1 never retries.
	req := request(1)
	req.IsRetry = true
	if dec := p.Evaluate(req); dec.Allowed {
		t.Error("theta 1 retry allowed")
	}

	// theta 2 retries only with corroboration.
	req = request(2)
	req.IsRetry = true
	if dec := p.Evaluate(req); dec.Allowed {
		t.Error("uncorroborated theta 2 retry allowed")
	}
	req.ImpulseCount = 3
	req.RecoveryBars = 2
	if dec := p.Evaluate(req); !dec.Allowed {
		t.Errorf("corroborated theta 2 retry denied: %+v", dec)
	}
}

func TestStatsCounters(t *testing.T) {
	p := newPolicy()

	p.Evaluate(request(3)) // allowed
	p.Evaluate(request(0)) // state layer
	req := request(3)
	req.Collapsed = true
	p.Evaluate(req) // zone layer

	s := p.Stats()
	if s.Allowed != 1 {
		t.Errorf("expected 1 allowed, got %d", s.Allowed)
	}
	if s.DeniedByLayer[domain.LayerState] != 1 || s.DeniedByLayer[domain.LayerZone] != 1 {
		t.Errorf("unexpected per-layer counts: %+v", s.DeniedByLayer)
	}
}
