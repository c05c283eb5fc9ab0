// Package cascade implements the resilient multi-backend response cascade.
//
// For each backend, in the caller-supplied order, the executor consults the
// circuit breaker, probes availability, then runs a bounded retry loop with a
// fixed backoff schedule. Transient failures retry in place; permanent
// failures move to the next backend immediately; the first success ends the
// cascade. Exhausting every backend returns a structured unsuccessful Result,
// never an error.
package cascade
