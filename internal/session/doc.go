// Package session tracks per-key activity (creation time, last activity,
// request count) and evicts entries idle past a TTL on a periodic sweep. The
// sweep coordinates with the concurrency governor's per-key mutexes so it can
// never remove a session whose cascade is in flight.
package session
