// Package governor coordinates cascade concurrency: a global weighted
// semaphore bounds total in-flight cascades, and lazily-created per-key
// mutexes guarantee that two requests sharing a session key never run their
// cascades at the same time. Idle key locks are reference-counted and removed
// from the map so long-running processes don't leak one lock per conversation
// ever seen.
package governor
