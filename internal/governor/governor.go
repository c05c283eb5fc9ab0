package governor

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// keyLock is a token-channel mutex. The token sits in the buffered channel
// while the lock is free; waiters block on receive and the runtime hands the
// token to them in FIFO order. refs counts holders plus waiters so idle keys
// can be dropped from the map.
type keyLock struct {
	refs int
	ch   chan struct{}
}

// Governor bounds total in-flight cascades with a weighted semaphore and
// serializes cascades that share a session key with per-key mutexes.
type Governor struct {
	sem      *semaphore.Weighted
	max      int64
	inFlight atomic.Int64

	mutex sync.Mutex
	keys  map[string]*keyLock
}

func New(maxConcurrent int) *Governor {
	return &Governor{
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
		max:  int64(maxConcurrent),
		keys: make(map[string]*keyLock),
	}
}

// AcquireGlobal takes one slot of the global concurrency budget, suspending
// the caller until a slot frees up or the context is done.
func (g *Governor) AcquireGlobal(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// ReleaseGlobal returns one slot.
func (g *Governor) ReleaseGlobal() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// InFlight returns the number of currently held global slots.
func (g *Governor) InFlight() int64 {
	return g.inFlight.Load()
}

// Utilization returns the held fraction of the global budget, for the
// backpressure check.
func (g *Governor) Utilization() float64 {
	return float64(g.inFlight.Load()) / float64(g.max)
}

// AcquireKey takes the mutex for key, suspending until the previous holder
// releases. Waiters are served in the order they arrive.
func (g *Governor) AcquireKey(ctx context.Context, key string) error {
	kl := g.enter(key)

	select {
	case <-kl.ch:
		return nil
	case <-ctx.Done():
		g.leave(key, kl)
		return ctx.Err()
	}
}

// TryAcquireKey takes the key mutex only if it is immediately free. The
// session sweeper uses this so it can never block behind (or race with) an
// in-flight cascade.
func (g *Governor) TryAcquireKey(key string) bool {
	kl := g.enter(key)

	select {
	case <-kl.ch:
		return true
	default:
		g.leave(key, kl)
		return false
	}
}

// ReleaseKey hands the key mutex to the next waiter, if any, and drops the
// lock from the map once nobody holds or wants it.
func (g *Governor) ReleaseKey(key string) {
	g.mutex.Lock()
	kl, exists := g.keys[key]
	if !exists {
		g.mutex.Unlock()
		return
	}
	kl.refs--
	if kl.refs == 0 {
		delete(g.keys, key)
	}
	g.mutex.Unlock()

	kl.ch <- struct{}{}
}

// ActiveKeys returns the number of keys with a live holder or waiter.
func (g *Governor) ActiveKeys() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.keys)
}

func (g *Governor) enter(key string) *keyLock {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	kl, exists := g.keys[key]
	if !exists {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		kl.ch <- struct{}{} // lock starts free
		g.keys[key] = kl
	}
	kl.refs++
	return kl
}

func (g *Governor) leave(key string, kl *keyLock) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(g.keys, key)
	}
}
