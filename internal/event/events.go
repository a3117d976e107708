package event

import (
	"sync/atomic"

	"tradecore/internal/domain"
)

// EventType identifies the concrete event kind in the pipeline inbox.
type EventType int8

const (
	TypeBar EventType = iota + 1
	TypeControl
)

// Event is anything the pipeline sequencer will admit.
type Event interface {
	GetSeq() uint64
	GetType() EventType
}

// BaseEvent carries sequencing metadata shared by all events.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

func (b BaseEvent) GetSeq() uint64 { return b.Seq }

// BarEvent delivers one feed bar for one instrument.
type BarEvent struct {
	BaseEvent
	Instrument string     `json:"instrument"`
	Bar        domain.Bar `json:"bar"`
}

func (e *BarEvent) GetType() EventType { return TypeBar }

// ControlKind distinguishes operator control events.
type ControlKind int8

const (
	// ControlAck acknowledges a halted pipeline so processing may resume.
	ControlAck ControlKind = iota + 1
	// ControlFlatten cancels the open position at the last close and
	// discards its risk state.
	ControlFlatten
	// ControlSessionReset clears the zone ledger at a session boundary.
	ControlSessionReset
)

// ControlEvent is an operator command admitted through the same inbox as
// bars, so it is sequenced against them.
type ControlEvent struct {
	BaseEvent
	Instrument string      `json:"instrument"`
	Kind       ControlKind `json:"kind"`
}

func (e *ControlEvent) GetType() EventType { return TypeControl }

// NextSeq atomically hands out the next sequence number for a feed source.
func NextSeq(counter *uint64) uint64 {
	return atomic.AddUint64(counter, 1)
}
