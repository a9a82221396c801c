package notify

import (
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 800 * time.Millisecond, 1200 * time.Millisecond},
		{1, 800 * time.Millisecond, 1200 * time.Millisecond},
		{2, 4 * time.Second, 6 * time.Second},
		{3, 24 * time.Second, 36 * time.Second},
		{10, 24 * time.Second, 36 * time.Second},
	}

	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			d := RetryDelay(tt.attempt)
			if d < tt.minDelay || d > tt.maxDelay {
				t.Errorf("RetryDelay(%d) = %v, want between %v and %v", tt.attempt, d, tt.minDelay, tt.maxDelay)
			}
		}
	}
}

func TestIsExhausted(t *testing.T) {
	tests := []struct {
		attempt     int
		maxAttempts int
		want        bool
	}{
		{1, 3, false},
		{2, 3, false},
		{3, 3, true},
		{4, 3, true},
	}

	for _, tt := range tests {
		if got := IsExhausted(tt.attempt, tt.maxAttempts); got != tt.want {
			t.Errorf("IsExhausted(%d, %d) = %v, want %v", tt.attempt, tt.maxAttempts, got, tt.want)
		}
	}
}
