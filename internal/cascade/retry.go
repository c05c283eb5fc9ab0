package cascade

import (
	"context"
	"time"
)

// Schedule is the fixed backoff ladder applied between retries of a single
// backend. A backend is attempted at most 1+len(schedule) times per cascade.
type Schedule []time.Duration

// DefaultSchedule mirrors the classic 1s/2s/4s ladder.
func DefaultSchedule() Schedule {
	return Schedule{time.Second, 2 * time.Second, 4 * time.Second}
}

// Wait sleeps for the delay preceding the given retry (attempt is 1-based:
// attempt 1 sleeps schedule[0]). It returns early with the context's error if
// the context is canceled first.
func (s Schedule) Wait(ctx context.Context, attempt int) error {
	if attempt < 1 || attempt > len(s) {
		return nil
	}

	delay := s[attempt-1]
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
