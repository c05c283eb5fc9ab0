package cascade

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkontos/persona-engine/internal/backend"
	"github.com/nkontos/persona-engine/internal/circuitbreaker"
	"github.com/nkontos/persona-engine/internal/classify"
)

// Attempt records one call (or skip) against one backend.
type Attempt struct {
	Backend     string        `json:"backend"`
	Success     bool          `json:"success"`
	Kind        classify.Kind `json:"kind"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	RetriesUsed int           `json:"retries_used"`
}

// Result is what a cascade always returns. Exhausting every backend is a
// normal outcome, not an error.
type Result struct {
	Success      bool              `json:"success"`
	Response     *backend.Response `json:"response,omitempty"`
	BackendUsed  string            `json:"backend_used,omitempty"`
	Attempts     []Attempt         `json:"attempts"`
	TotalElapsed time.Duration     `json:"total_elapsed"`
}

// Executor walks the ordered backend list for one request: breaker check,
// availability probe, then a bounded retry loop. The first success wins.
type Executor struct {
	backends       []backend.Backend
	breaker        *circuitbreaker.Tracker
	schedule       Schedule
	probeTimeout   time.Duration
	respondTimeout time.Duration
	logger         *slog.Logger
}

func NewExecutor(
	backends []backend.Backend,
	breaker *circuitbreaker.Tracker,
	schedule Schedule,
	probeTimeout, respondTimeout time.Duration,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		backends:       backends,
		breaker:        breaker,
		schedule:       schedule,
		probeTimeout:   probeTimeout,
		respondTimeout: respondTimeout,
		logger:         logger,
	}
}

// Backends returns the configured attempt order.
func (e *Executor) Backends() []backend.Backend {
	return e.backends
}

// Execute runs the cascade. Backends are attempted strictly in configured
// order; there is no reordering based on past performance.
func (e *Executor) Execute(ctx context.Context, req backend.Request) Result {
	start := time.Now()
	var attempts []Attempt

	for _, b := range e.backends {
		name := b.Name()

		if e.breaker.IsOpen(name) {
			e.logger.Debug("Skipping backend, breaker open",
				slog.String("backend", name),
				slog.String("request_id", req.RequestID))
			attempts = append(attempts, Attempt{
				Backend: name,
				Kind:    classify.KindBreakerOpen,
				Error:   "circuit breaker open",
			})
			continue
		}

		if available, reason := e.probe(ctx, b); !available {
			// Probe failures never feed the breaker; only response failures do.
			attempts = append(attempts, Attempt{
				Backend: name,
				Kind:    classify.KindUnavailable,
				Error:   reason,
			})
			continue
		}

		result, done := e.tryBackend(ctx, b, req, &attempts)
		if done {
			result.Attempts = attempts
			result.TotalElapsed = time.Since(start)
			return result
		}
	}

	e.logger.Warn("All backends exhausted",
		slog.String("request_id", req.RequestID),
		slog.Int("attempts", len(attempts)))

	return Result{
		Success:      false,
		Attempts:     attempts,
		TotalElapsed: time.Since(start),
	}
}

func (e *Executor) probe(ctx context.Context, b backend.Backend) (bool, string) {
	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	available, err := b.ProbeAvailable(probeCtx)
	if err != nil {
		e.logger.Debug("Availability probe failed",
			slog.String("backend", b.Name()),
			slog.Any("err", err))
		return false, err.Error()
	}
	if !available {
		return false, "probe declined"
	}
	return true, ""
}

// tryBackend runs the retry loop for one backend. It returns done=true with a
// successful result, or done=false after recording the backend's failed
// attempts so the cascade can move on.
func (e *Executor) tryBackend(
	ctx context.Context,
	b backend.Backend,
	req backend.Request,
	attempts *[]Attempt,
) (Result, bool) {
	name := b.Name()

	for attempt := 0; attempt <= len(e.schedule); attempt++ {
		if attempt > 0 {
			if err := e.schedule.Wait(ctx, attempt); err != nil {
				// Request context gone mid-backoff; give up on this backend.
				e.breaker.RecordFailure(name)
				*attempts = append(*attempts, Attempt{
					Backend:     name,
					Kind:        classify.KindTransient,
					Error:       err.Error(),
					RetriesUsed: attempt,
				})
				return Result{}, false
			}
		}

		callStart := time.Now()
		resp, err := e.respond(ctx, b, req)
		elapsed := time.Since(callStart)

		if err == nil {
			e.breaker.RecordSuccess(name)
			*attempts = append(*attempts, Attempt{
				Backend:     name,
				Success:     true,
				Elapsed:     elapsed,
				RetriesUsed: attempt,
			})
			e.logger.Info("Backend responded",
				slog.String("backend", name),
				slog.String("request_id", req.RequestID),
				slog.Duration("elapsed", elapsed),
				slog.Int("retries", attempt))
			return Result{Success: true, Response: resp, BackendUsed: name}, true
		}

		kind := classify.Error(err)
		lastAllowed := attempt == len(e.schedule)

		*attempts = append(*attempts, Attempt{
			Backend:     name,
			Kind:        kind,
			Error:       err.Error(),
			Elapsed:     elapsed,
			RetriesUsed: attempt,
		})

		if kind == classify.KindPermanent || lastAllowed {
			// Only the final exhausted attempt counts toward the breaker:
			// "consecutive failed cascades", not "consecutive failed calls".
			e.breaker.RecordFailure(name)
			e.logger.Warn("Backend failed, moving on",
				slog.String("backend", name),
				slog.String("request_id", req.RequestID),
				slog.String("kind", kind.String()),
				slog.String("error", err.Error()))
			return Result{}, false
		}

		e.logger.Debug("Transient failure, will retry",
			slog.String("backend", name),
			slog.String("request_id", req.RequestID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}

	return Result{}, false
}

func (e *Executor) respond(ctx context.Context, b backend.Backend, req backend.Request) (*backend.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.respondTimeout)
	defer cancel()

	return b.Respond(callCtx, req)
}
