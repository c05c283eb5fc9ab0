package circuitbreaker

import (
	"sync"
	"time"
)

// record tracks one backend's consecutive failures and, once the threshold is
// reached, the time the breaker opened.
type record struct {
	consecutiveFailures int
	openedAt            time.Time
	open                bool
}

// Tracker keeps failure records for every backend behind a single lock. It is
// shared by all concurrent cascade executions regardless of session key.
type Tracker struct {
	mutex     sync.Mutex
	records   map[string]*record
	threshold int
	timeout   time.Duration
}

// Status is a read-only view of one backend's breaker, for status reporting.
type Status struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Open                bool      `json:"open"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
}

func NewTracker(threshold int, timeout time.Duration) *Tracker {
	return &Tracker{
		records:   make(map[string]*record),
		threshold: threshold,
		timeout:   timeout,
	}
}

// IsOpen reports whether the named backend should be skipped. When the open
// timeout has elapsed, the check itself clears both the timestamp and the
// failure counter and returns false (lazy reset): the backend gets a fresh
// attempt and needs a full run of consecutive failures to reopen.
func (t *Tracker) IsOpen(name string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec, exists := t.records[name]
	if !exists || !rec.open {
		return false
	}

	if time.Since(rec.openedAt) < t.timeout {
		return true
	}

	rec.open = false
	rec.openedAt = time.Time{}
	rec.consecutiveFailures = 0
	return false
}

// RecordFailure increments the consecutive failure counter and opens the
// breaker once the threshold is reached. Opening is idempotent: the original
// open timestamp is preserved.
func (t *Tracker) RecordFailure(name string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := t.getOrCreate(name)
	rec.consecutiveFailures++

	if rec.consecutiveFailures >= t.threshold && !rec.open {
		rec.open = true
		rec.openedAt = time.Now()
	}
}

// RecordSuccess resets the failure counter. It never touches an open
// timestamp: a success can only be recorded for a backend whose breaker was
// closed when the attempt started.
func (t *Tracker) RecordSuccess(name string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := t.getOrCreate(name)
	rec.consecutiveFailures = 0
}

// Stats returns the current breaker state of every tracked backend.
func (t *Tracker) Stats() map[string]Status {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stats := make(map[string]Status, len(t.records))
	for name, rec := range t.records {
		stats[name] = Status{
			ConsecutiveFailures: rec.consecutiveFailures,
			Open:                rec.open,
			OpenedAt:            rec.openedAt,
		}
	}
	return stats
}

// Reset discards all failure records.
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.records = make(map[string]*record)
}

func (t *Tracker) getOrCreate(name string) *record {
	rec, exists := t.records[name]
	if !exists {
		rec = &record{}
		t.records[name] = rec
	}
	return rec
}
