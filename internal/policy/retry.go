package policy

// RetryBook tracks re-entry attempts per zone against a fixed budget.
// A zone win releases the budget; a session reset clears the book.
type RetryBook struct {
	maxAttempts int
	attempts    map[string]int
}

// NewRetryBook creates a book with the given per-zone budget.
func NewRetryBook(maxAttempts int) *RetryBook {
	return &RetryBook{
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
	}
}

// CanRetry reports whether the zone still has retry budget.
func (r *RetryBook) CanRetry(zoneID string) bool {
	return r.attempts[zoneID] < r.maxAttempts
}

// RecordAttempt burns one unit of the zone's budget.
func (r *RetryBook) RecordAttempt(zoneID string) {
	r.attempts[zoneID]++
}

// ReleaseZone clears the zone's spent budget (after a win).
func (r *RetryBook) ReleaseZone(zoneID string) {
	delete(r.attempts, zoneID)
}

// Reset clears the whole book (session boundary).
func (r *RetryBook) Reset() {
	r.attempts = make(map[string]int)
}
