// Package engine is the facade in front of the response cascade. It
// validates chat requests, applies backpressure from the concurrency
// governor, serializes turns that share a session key, routes messages to a
// persona, and caps how long a caller waits on a cascade.
package engine
