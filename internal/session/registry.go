package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry tracks one session key's lifetime and traffic.
type Entry struct {
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	RequestCount   int64     `json:"request_count"`
}

// KeyLocker is the slice of the concurrency governor the sweeper needs: it
// must take the same per-key mutex the engine serializes cascades with, so an
// in-flight session can never be evicted out from under its cascade.
type KeyLocker interface {
	TryAcquireKey(key string) bool
	ReleaseKey(key string)
}

// Registry maps session keys to activity records and evicts idle entries.
type Registry struct {
	mutex   sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	logger  *slog.Logger

	onEvict func(key string) // optional, for metrics
}

func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		logger:  logger,
	}
}

// OnEvict registers a callback invoked once per evicted session. Must be set
// before Run starts.
func (r *Registry) OnEvict(fn func(key string)) {
	r.onEvict = fn
}

// Touch creates the entry on a key's first request and bumps activity on
// every later one. Callers must hold the key's mutex so Touch and the sweep
// never race destructively.
func (r *Registry) Touch(key string) Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	entry, exists := r.entries[key]
	if !exists {
		entry = &Entry{Key: key, CreatedAt: now}
		r.entries[key] = entry
	}

	entry.LastActivityAt = now
	entry.RequestCount++
	return *entry
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

// Snapshot returns a copy of every entry, for status reporting.
func (r *Registry) Snapshot() map[string]Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snap := make(map[string]Entry, len(r.entries))
	for key, entry := range r.entries {
		snap[key] = *entry
	}
	return snap
}

// Sweep removes every entry idle longer than the TTL. For each candidate it
// try-acquires the key's mutex: keys with a cascade in flight are skipped and
// picked up by a later sweep. Returns the number of evicted sessions.
func (r *Registry) Sweep(locks KeyLocker) int {
	r.mutex.RLock()
	candidates := make([]string, 0)
	for key, entry := range r.entries {
		if time.Since(entry.LastActivityAt) > r.ttl {
			candidates = append(candidates, key)
		}
	}
	r.mutex.RUnlock()

	evicted := 0
	for _, key := range candidates {
		if !locks.TryAcquireKey(key) {
			continue
		}

		r.mutex.Lock()
		entry, exists := r.entries[key]
		// Re-check under the key lock: the session may have been touched
		// between collecting candidates and acquiring the lock.
		if exists && time.Since(entry.LastActivityAt) > r.ttl {
			delete(r.entries, key)
			evicted++
			if r.onEvict != nil {
				r.onEvict(key)
			}
		}
		r.mutex.Unlock()

		locks.ReleaseKey(key)
	}

	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", slog.Int("count", evicted))
	}
	return evicted
}

// Run sweeps on a fixed interval until the context is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration, locks KeyLocker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Session sweeper started",
		slog.Duration("interval", interval),
		slog.Duration("ttl", r.ttl))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			r.Sweep(locks)
		}
	}
}
