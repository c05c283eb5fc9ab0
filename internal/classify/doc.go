// Package classify maps backend failures to error kinds that drive the
// cascade's retry and circuit breaker decisions. Classification is a pure
// function over the error text; it has no state and no side effects.
package classify
