package infra

import "time"

const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 60 * time.Second
)

// CalculateBackoff returns the exponential reconnect delay for the given
// retry count, capped at maxBackoff.
func CalculateBackoff(retryCount int) time.Duration {
	delay := baseBackoff
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
