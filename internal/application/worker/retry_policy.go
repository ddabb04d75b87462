package worker

import "time"

// RetryPolicy doubles the delay for every consecutive failure, starting
// at BaseDelay and capped at MaxDelay.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Delay returns the wait before retry number attempt (1-based). A zero
// policy returns zero.
func (r RetryPolicy) Delay(attempt int) time.Duration {
	if r.BaseDelay <= 0 || attempt < 1 {
		return 0
	}

	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}
