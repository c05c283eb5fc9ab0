// Package metrics collects cascade outcome and latency metrics through a
// buffered event channel, keeping bookkeeping off the request path. Snapshots
// aggregate per-backend attempt counts, wins, failure kinds, and response
// time percentiles.
package metrics
