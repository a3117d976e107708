package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"tradecore/internal/certify"
	"tradecore/internal/domain"
	"tradecore/internal/event"
	"tradecore/internal/features"
	"tradecore/internal/gate"
	"tradecore/internal/infra"
	"tradecore/internal/ledger"
	"tradecore/internal/policy"
	"tradecore/internal/risk"
)

// maxHistory bounds the trailing bar window kept per instrument.
const maxHistory = 256

// DecisionJournal is the append-only sink for decision and trade rows.
// Nil disables journaling (tests, dry runs).
type DecisionJournal interface {
	AppendDecision(rec *domain.DecisionRecord) error
	AppendTrade(rec *domain.TradeRecord) error
}

// Summary is the immutable post-bar snapshot handed to external readers.
// Cross-instrument aggregation must happen only on these, never on live
// pipeline state.
type Summary struct {
	Instrument   string
	BarIndex     int64
	Ts           int64
	Theta        int
	PositionOpen bool
	LastReason   domain.ReasonCode
	SessionPnL   float64
	ClosedTrades int
}

// Pipeline is the single-threaded per-instrument decision core. One bar is
// fully processed — features, gate, certify, policy, risk update, ledger
// write — before the next is admitted. Run MUST be driven by exactly one
// goroutine; all mutable state is confined to it.
type Pipeline struct {
	instrument string
	doctrine   domain.Doctrine
	inbox      chan event.Event
	nextSeq    uint64

	extractor *features.Extractor
	gate      *gate.Gate
	ledger    *ledger.Ledger
	tracker   *certify.RetestTracker
	certifier *certify.Certifier
	riskCtl   *risk.Controller
	policy    *policy.Policy

	journal   DecisionJournal
	onSummary func(Summary)

	// Hotpath state. No mutex: single writer.
	history      []domain.Bar
	position     *domain.Position
	lastTs       int64
	lastIndex    int64
	frozen       bool
	halted       bool
	resync       bool
	haltReason   error
	attempted    map[string]bool // zones already tried this session
	lastTheta    int
	sessionPnL   float64
	closedTrades int
	staleAfterMS int64

	mu       sync.RWMutex // guards the snapshot for external reads only
	snapshot Summary
}

// NewPipeline wires a decision core for one instrument.
func NewPipeline(instrument string, d domain.Doctrine, bounds policy.FrictionBounds, staleAfterMS int64, inboxSize int, journal DecisionJournal, onSummary func(Summary)) *Pipeline {
	led := ledger.NewLedger(d)
	return &Pipeline{
		instrument:   instrument,
		doctrine:     d,
		inbox:        make(chan event.Event, inboxSize),
		nextSeq:      1,
		extractor:    features.NewExtractor(d),
		gate:         gate.NewGate(d),
		ledger:       led,
		tracker:      certify.NewRetestTracker(d),
		certifier:    certify.NewCertifier(d, led),
		riskCtl:      risk.NewController(d),
		policy:       policy.NewPolicy(d, bounds),
		journal:      journal,
		onSummary:    onSummary,
		attempted:    make(map[string]bool),
		staleAfterMS: staleAfterMS,
	}
}

// Inbox returns the event channel. The feed worker sends events here.
func (p *Pipeline) Inbox() chan<- event.Event {
	return p.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (p *Pipeline) Run(ctx context.Context) {
	slog.Info("pipeline started", slog.String("instrument", p.instrument))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.String("instrument", p.instrument))
			p.DumpState(fmt.Sprintf("panic_dump_%s.json", p.instrument))
			p.halt(fmt.Errorf("panic: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline stopping", slog.String("instrument", p.instrument))
			return
		case ev := <-p.inbox:
			p.processEvent(ev)
		}
	}
}

func (p *Pipeline) processEvent(ev event.Event) {
	switch e := ev.(type) {
	case *event.BarEvent:
		// After an operator ack the stream re-seeds from the next bar.
		if p.resync {
			p.nextSeq = e.Seq
			p.resync = false
		}
		// Sequence gap from the feed side is a transport fault, fatal.
		// Control events arrive out-of-band and carry no feed sequence.
		if e.Seq != p.nextSeq {
			p.halt(fmt.Errorf("sequence gap: expected %d, got %d", p.nextSeq, e.Seq))
			return
		}
		p.nextSeq++
		p.processBar(e.Bar, e.Ts)
		event.ReleaseBarEvent(e)
	case *event.ControlEvent:
		p.processControl(e)
	default:
		slog.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

// ProcessReplay admits one bar synchronously, bypassing the inbox and
// sequencing. Used by backtests and tests that drive the pipeline directly.
func (p *Pipeline) ProcessReplay(bar domain.Bar) {
	p.processBar(bar, 0)
}

// processBar is the hotpath: one bar in, at most one decision out.
// admittedTs is the wall-clock receive time (0 for replay) and feeds the
// modeled latency check.
func (p *Pipeline) processBar(bar domain.Bar, admittedTs int64) {
	if p.halted {
		slog.Warn("bar dropped: pipeline halted", slog.String("instrument", p.instrument), slog.Int64("idx", bar.Index))
		return
	}

	if err := bar.Validate(p.lastTs); err != nil {
		p.halt(err)
		return
	}
	if p.lastIndex != 0 && bar.Index <= p.lastIndex {
		p.halt(&domain.CorruptBarError{Index: bar.Index, Field: "idx", Reason: fmt.Sprintf("non-monotonic index %d <= %d", bar.Index, p.lastIndex)})
		return
	}

	// Watchdog: a feed pause beyond the bound freezes new entries (implicit
	// theta=0) until cadence resumes. Never fabricate synthetic bars.
	if p.staleAfterMS > 0 && p.lastTs != 0 {
		gap := bar.Ts - p.lastTs
		if gap > p.staleAfterMS {
			if !p.frozen {
				slog.Warn("feed stale, freezing entries", slog.String("instrument", p.instrument), slog.Int64("gap_ms", gap))
			}
			p.frozen = true
		} else if p.frozen {
			slog.Info("feed resumed", slog.String("instrument", p.instrument))
			p.frozen = false
		}
	}

	p.lastTs = bar.Ts
	p.lastIndex = bar.Index
	p.history = append(p.history, bar)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
	infra.ObserveBar(p.instrument)
	p.tracker.Observe(bar)

	// Post-entry risk update runs before any new candidate is considered.
	if p.position != nil {
		if exit := p.riskCtl.Update(p.position, bar); exit != nil {
			p.settle(exit)
		}
	}

	ind, err := p.extractor.Compute(p.history)
	if err != nil {
		// InsufficientWindow: skip certification, emit no decision.
		p.publishSummary(bar)
		return
	}

	theta := 0
	reason := domain.ReasonOK
	entered := false
	if ign := p.gate.Evaluate(ind); ign != nil && p.position == nil {
		theta, reason, entered = p.evaluateCandidate(ign, bar, ind, admittedTs)
	}
	p.lastTheta = theta
	infra.SetTheta(p.instrument, theta)

	p.journalDecision(bar, ind, theta, reason, entered)
	p.publishSummary(bar)
}

// evaluateCandidate runs certify -> policy -> entry for one ignition. The
// third result reports whether a position actually opened on this bar.
func (p *Pipeline) evaluateCandidate(ign *domain.IgnitionEvent, bar domain.Bar, ind domain.IndicatorSet, admittedTs int64) (int, domain.ReasonCode, bool) {
	zoneID := p.ledger.ZoneID(bar.Close)

	// Frozen feed: treat as theta=0, deny without consulting the ledger.
	if p.frozen {
		infra.ObserveDecision(string(domain.ReasonStaleFeed))
		return 0, domain.ReasonStaleFeed, false
	}

	corro := p.tracker.Corroboration(zoneID)
	theta := p.certifier.Certify(ign, bar.Close, corro)

	req := policy.Request{
		Signal:       ign.Source,
		Theta:        theta,
		ZoneID:       zoneID,
		Collapsed:    p.ledger.Collapsed(zoneID),
		IsRetry:      p.attempted[zoneID],
		ImpulseCount: corro.ImpulseCount,
		RecoveryBars: corro.RecoveryBars,
		SlippagePts:  modeledSlippage(bar, ind),
		LatencyMS:    modeledLatency(bar, admittedTs),
	}

	dec := p.policy.Evaluate(req)
	infra.ObserveDecision(string(dec.Reason))

	if !dec.Allowed {
		slog.Debug("candidate denied",
			slog.String("instrument", p.instrument),
			slog.String("signal", ign.Source),
			slog.Int("theta", theta),
			slog.String("reason", string(dec.Reason)),
			slog.Int("layer", dec.LayerFailed))
		return theta, dec.Reason, false
	}

	if req.IsRetry {
		p.policy.Retries().RecordAttempt(zoneID)
	}
	p.attempted[zoneID] = true

	p.position = p.riskCtl.Open(p.instrument, ign.Direction, bar, theta, dec.SizeMultiplier, zoneID, dec.TrailingAllowed)
	infra.SetOpenPositions(p.instrument, 1)
	return theta, dec.Reason, true
}

// settle closes the books on an exited position: ledger write-back,
// journal row, metrics.
func (p *Pipeline) settle(exit *risk.ExitResult) {
	pos := p.position
	p.position = nil
	infra.SetOpenPositions(p.instrument, 0)

	outcome := domain.OutcomeLoss
	result := "LOSS"
	if exit.PnL > 0 {
		outcome = domain.OutcomeWin
		result = "WIN"
	}

	// A deliberate flatten is a cancellation, not market proof: it is
	// journaled but never written back to the zone ledger.
	if exit.Type != risk.ExitFlatten {
		p.ledger.RecordOutcome(pos.ZoneID, pos.Direction, outcome, exit.BarIndex)
		if outcome == domain.OutcomeWin {
			p.policy.Retries().ReleaseZone(pos.ZoneID)
		}
	}

	p.sessionPnL += exit.PnL * pos.SizeMult
	p.closedTrades++
	infra.ObserveTrade(result)
	infra.ObserveExit(string(exit.Type), pos.Direction.String())

	if p.journal != nil {
		rec := &domain.TradeRecord{
			TradeID:    pos.ID,
			Instrument: pos.Instrument,
			Direction:  pos.Direction.String(),
			ZoneID:     pos.ZoneID,
			Theta:      pos.ThetaAtEntry,
			EntryIdx:   pos.EntryIndex,
			ExitIdx:    exit.BarIndex,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  exit.Price,
			ExitType:   string(exit.Type),
			PnL:        exit.PnL,
			MFE:        pos.MFE,
			Result:     result,
		}
		if err := p.journal.AppendTrade(rec); err != nil {
			slog.Error("trade journal write failed", slog.Any("error", err))
		}
	}
}

func (p *Pipeline) journalDecision(bar domain.Bar, ind domain.IndicatorSet, theta int, reason domain.ReasonCode, entered bool) {
	if p.journal == nil {
		return
	}

	terminal, islandID := features.Classify(ind, theta)
	burst := 0
	if ind.Burst {
		burst = 1
	}

	rec := &domain.DecisionRecord{
		Instrument: p.instrument,
		Ts:         bar.Ts,
		Idx:        bar.Index,
		Depth:      ind.Depth,
		DepthSlope: ind.DepthSlope,
		Terminal:   terminal,
		IslandID:   islandID,
		BurstEvent: burst,
		DCPre:      ind.DCPre,
		ER:         ind.ER,
		Delta:      ind.Delta,
		Channel:    ind.Channel,
		Theta:      theta,
		Allowed:    entered,
		Reason:     reason,
	}
	if err := p.journal.AppendDecision(rec); err != nil {
		slog.Error("decision journal write failed", slog.Any("error", err))
	}
}

func (p *Pipeline) processControl(e *event.ControlEvent) {
	switch e.Kind {
	case event.ControlAck:
		if p.halted {
			slog.Info("operator ack, pipeline resuming", slog.String("instrument", p.instrument))
			p.halted = false
			p.haltReason = nil
			p.resync = true // next bar re-seeds the feed sequence
			p.lastTs = 0    // and the monotonic checks
			p.lastIndex = 0
		}
	case event.ControlFlatten:
		if p.position != nil && len(p.history) > 0 {
			last := p.history[len(p.history)-1]
			if exit := p.riskCtl.Flatten(p.position, last); exit != nil {
				p.settle(exit)
			}
		}
	case event.ControlSessionReset:
		slog.Info("session reset", slog.String("instrument", p.instrument))
		p.ledger.Reset()
		p.tracker.Reset()
		p.policy.Retries().Reset()
		p.attempted = make(map[string]bool)
		p.sessionPnL = 0
		p.closedTrades = 0
	}
}

func (p *Pipeline) halt(err error) {
	if !p.halted {
		slog.Error("pipeline halted, operator ack required",
			slog.String("instrument", p.instrument),
			slog.Any("error", err))
		infra.ObserveHalt(p.instrument)
	}
	p.halted = true
	p.haltReason = err
}

// Halted reports whether the pipeline is stopped on a fatal condition,
// and why.
func (p *Pipeline) Halted() (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.halted, p.haltReason
}

func (p *Pipeline) publishSummary(bar domain.Bar) {
	s := Summary{
		Instrument:   p.instrument,
		BarIndex:     bar.Index,
		Ts:           bar.Ts,
		Theta:        p.lastTheta,
		PositionOpen: p.position != nil,
		SessionPnL:   p.sessionPnL,
		ClosedTrades: p.closedTrades,
	}

	p.mu.Lock()
	p.snapshot = s
	p.mu.Unlock()

	if p.onSummary != nil {
		p.onSummary(s)
	}
}

// Snapshot returns the latest immutable post-bar summary (external read).
func (p *Pipeline) Snapshot() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Position returns a copy of the open position, if any. Safe only from the
// pipeline goroutine or in replay; live external readers use Snapshot.
func (p *Pipeline) Position() (domain.Position, bool) {
	if p.position == nil {
		return domain.Position{}, false
	}
	return *p.position, true
}

// modeledSlippage estimates fill slippage from how far the bar's range
// stretches past the rolling ATR. Calm bars model zero slippage.
func modeledSlippage(bar domain.Bar, ind domain.IndicatorSet) float64 {
	excess := bar.Range() - ind.ATR20
	if excess < 0 {
		return 0
	}
	return excess
}

// modeledLatency is the wall-clock delay between the bar's timestamp and
// its admission. Replay admits with zero latency.
func modeledLatency(bar domain.Bar, admittedTs int64) int64 {
	if admittedTs == 0 {
		return 0
	}
	d := admittedTs - bar.Ts
	if d < 0 {
		return 0
	}
	return d
}

// DumpState writes the pipeline's internal state to a file (post-mortem).
func (p *Pipeline) DumpState(filename string) {
	slog.Info("dumping pipeline state", slog.String("file", filename))

	data := struct {
		Instrument string           `json:"instrument"`
		NextSeq    uint64           `json:"next_seq"`
		LastIndex  int64            `json:"last_index"`
		Frozen     bool             `json:"frozen"`
		Halted     bool             `json:"halted"`
		Position   *domain.Position `json:"position,omitempty"`
		SessionPnL float64          `json:"session_pnl"`
	}{
		Instrument: p.instrument,
		NextSeq:    p.nextSeq,
		LastIndex:  p.lastIndex,
		Frozen:     p.frozen,
		Halted:     p.halted,
		Position:   p.position,
		SessionPnL: p.sessionPnL,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("failed to write state dump", slog.Any("error", err))
	}
}
