// Package circuitbreaker tracks consecutive response failures per backend and
// decides when a backend is currently skippable.
//
// A breaker is open iff the backend has accumulated threshold consecutive
// failures and the open timeout has not yet elapsed. Checking an expired
// breaker resets it as a side effect (lazy reset on check):
//
//	tracker := circuitbreaker.NewTracker(3, 60*time.Second)
//	if tracker.IsOpen("openai") {
//	    // skip without probing
//	}
//	// ... attempt the backend ...
//	if err != nil {
//	    tracker.RecordFailure("openai")
//	} else {
//	    tracker.RecordSuccess("openai")
//	}
//
// Only exhausted or permanent cascade attempts feed RecordFailure; individual
// retries and availability-probe failures do not.
package circuitbreaker
