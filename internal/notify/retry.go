package notify

import (
	"math/rand/v2"
	"time"
)

// Delays between delivery attempts. Deliveries run inline with the stream
// consumer, so they stay short.
var retryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
}

const (
	// DefaultMaxAttempts is how often a query is offered to the webhook.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±fraction of jitter applied to delays.
	JitterFactor = 0.2
)

// RetryDelay returns the wait after the given failed attempt (1-based).
// Attempts past the table reuse the last delay.
func RetryDelay(attempt int) time.Duration {
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(retryDelays) {
		i = len(retryDelays) - 1
	}

	base := float64(retryDelays[i])
	jitter := (rand.Float64()*2 - 1) * base * JitterFactor
	return time.Duration(base + jitter)
}

// IsExhausted reports whether no attempts remain.
func IsExhausted(attempt, maxAttempts int) bool {
	return attempt >= maxAttempts
}
