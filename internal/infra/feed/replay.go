package feed

import (
	"context"
	"log/slog"

	"tradecore/internal/domain"
	"tradecore/internal/event"
)

// Replayer drives a pipeline inbox from an in-memory bar series, in order,
// with the same sequencing as the live worker. Used by backtests; the
// pipeline cannot tell the difference.
type Replayer struct {
	inbox chan<- event.Event
	seq   *uint64
}

// NewReplayer creates a replay source feeding one pipeline.
func NewReplayer(inbox chan<- event.Event, seq *uint64) *Replayer {
	return &Replayer{inbox: inbox, seq: seq}
}

// Replay sends every bar, blocking on the inbox so the single-writer
// ordering holds. Returns the number of bars delivered.
func (r *Replayer) Replay(ctx context.Context, instrument string, bars []domain.Bar) int {
	sent := 0
	for _, bar := range bars {
		ev := event.AcquireBarEvent()
		ev.Seq = event.NextSeq(r.seq)
		ev.Ts = 0 // replay admits with zero modeled latency
		ev.Instrument = instrument
		ev.Bar = bar

		select {
		case r.inbox <- ev:
			sent++
		case <-ctx.Done():
			event.ReleaseBarEvent(ev)
			slog.Warn("replay interrupted", slog.String("instrument", instrument), slog.Int("sent", sent))
			return sent
		}
	}
	return sent
}
