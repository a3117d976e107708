package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// CorruptBarError represents malformed feed input (NaN price, non-monotonic
// timestamp). It is fatal for the instrument's pipeline: processing halts
// until an operator acknowledges it. Never retriable.
type CorruptBarError struct {
	Index  int64
	Field  string
	Reason string
}

func (e *CorruptBarError) Error() string {
	return fmt.Sprintf("corrupt bar %d [%s]: %s", e.Index, e.Field, e.Reason)
}

func (e *CorruptBarError) IsRetriable() bool {
	return false
}

// FeedError represents a feed transport failure that may be retriable
type FeedError struct {
	Op        string // Operation that failed (e.g., "connect", "read")
	Err       error  // Underlying error
	Retriable bool
}

func (e *FeedError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FeedError) IsRetriable() bool {
	return e.Retriable
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new retriable feed error
func NewFeedError(op string, err error) *FeedError {
	return &FeedError{Op: op, Err: err, Retriable: true}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrInsufficientWindow is returned by the feature extractor when fewer
	// bars than the minimum history are available. Recoverable: the caller
	// skips certification for that bar and emits no decision.
	ErrInsufficientWindow = errors.New("insufficient window")

	// ErrStaleFeed is returned when the bar stream has paused beyond the
	// watchdog bound. Recoverable: new entries are frozen until resumed.
	ErrStaleFeed = errors.New("stale feed")

	// ErrZoneNotFound is returned when the zone ledger has no record
	// for a zone. Not an error condition for the certifier (means theta=0).
	ErrZoneNotFound = errors.New("zone not found")

	// ErrPipelineHalted is returned when a bar is offered to a halted
	// pipeline. The pipeline stays halted until operator acknowledgment.
	ErrPipelineHalted = errors.New("pipeline halted")
)
