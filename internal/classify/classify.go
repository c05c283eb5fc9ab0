package classify

import "strings"

// Kind categorizes a failed cascade attempt. It is a plain value, never an
// error type: the executor records kinds on attempts instead of propagating
// exceptions.
type Kind int

const (
	// KindTransient means retrying the same backend is expected to help.
	KindTransient Kind = iota
	// KindPermanent means the backend rejected the request outright; retrying
	// cannot help.
	KindPermanent
	// KindBreakerOpen means the backend was skipped without an attempt because
	// its circuit breaker is open.
	KindBreakerOpen
	// KindUnavailable means the backend's availability probe declined or failed.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindBreakerOpen:
		return "breaker_open"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText makes Kind render as its name in JSON attempt records.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var transientMarkers = []string{
	"timeout",
	"connection",
	"network",
	"socket",
	"dns",
	"rate limit",
	"busy",
	"unavailable",
	"overloaded",
}

var permanentMarkers = []string{
	"authentication",
	"unauthorized",
	"forbidden",
	"api key",
	"invalid request",
	"not found",
	"bad request",
	"malformed",
}

// Error maps a failure from a backend call to a Kind by substring matching on
// the lowercased error text. Unrecognized errors default to transient, failing
// open toward retrying.
func Error(err error) Kind {
	if err == nil {
		return KindTransient
	}
	return Message(err.Error())
}

// Message classifies a raw error string. Transient markers are checked first:
// an error that reads both ways (e.g. "connection forbidden by proxy") is
// worth one more try.
func Message(msg string) Kind {
	lower := strings.ToLower(msg)

	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return KindTransient
		}
	}

	for _, marker := range permanentMarkers {
		if strings.Contains(lower, marker) {
			return KindPermanent
		}
	}

	return KindTransient
}
