package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/nkontos/persona-engine/internal/backend"
	"github.com/nkontos/persona-engine/internal/cascade"
	"github.com/nkontos/persona-engine/internal/circuitbreaker"
	"github.com/nkontos/persona-engine/internal/governor"
	"github.com/nkontos/persona-engine/internal/metrics"
	"github.com/nkontos/persona-engine/internal/persona"
	"github.com/nkontos/persona-engine/internal/session"
)

// ErrOverloaded is returned when the backpressure check rejects a request
// before it takes any concurrency slot.
var ErrOverloaded = errors.New("engine overloaded")

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Message, validation.Required, validation.Length(1, 4096)),
	)
}

// Result is the engine's answer for one chat turn. A cascade that exhausted
// every backend, or overran the response time budget, is still a Result.
type Result struct {
	cascade.Result

	RequestID string `json:"request_id"`
	Persona   string `json:"persona"`
	TimedOut  bool   `json:"timed_out,omitempty"`
}

// Status reports the engine's live state for the status endpoint.
type Status struct {
	InFlight       int64                            `json:"in_flight"`
	Utilization    float64                          `json:"utilization"`
	ActiveSessions int                              `json:"active_sessions"`
	Sessions       map[string]session.Entry         `json:"sessions"`
	Breakers       map[string]circuitbreaker.Status `json:"breakers"`
	Personas       []string                         `json:"personas"`
}

// Options wires the engine's collaborators.
type Options struct {
	Executor              *cascade.Executor
	Breaker               *circuitbreaker.Tracker
	Governor              *governor.Governor
	Sessions              *session.Registry
	Collector             *metrics.Collector
	Personas              *persona.Store
	MaxResponseTime       time.Duration
	BackpressureThreshold float64
	Logger                *slog.Logger
}

// Engine is the facade in front of the cascade: it validates requests,
// applies backpressure, takes the global and per-key concurrency slots,
// touches the session, picks a persona, and bounds the caller's wait with a
// wall-clock budget.
type Engine struct {
	executor              *cascade.Executor
	breaker               *circuitbreaker.Tracker
	governor              *governor.Governor
	sessions              *session.Registry
	collector             *metrics.Collector
	personas              *persona.Store
	maxResponseTime       time.Duration
	backpressureThreshold float64
	logger                *slog.Logger
}

func New(opts Options) *Engine {
	return &Engine{
		executor:              opts.Executor,
		breaker:               opts.Breaker,
		governor:              opts.Governor,
		sessions:              opts.Sessions,
		collector:             opts.Collector,
		personas:              opts.Personas,
		maxResponseTime:       opts.MaxResponseTime,
		backpressureThreshold: opts.BackpressureThreshold,
		logger:                opts.Logger,
	}
}

// Chat runs one turn end to end. Validation failures and overload come back
// as errors; every other outcome, including exhaustion and budget expiry, is
// a Result.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		e.collector.Emit(metrics.Event{
			Type:   metrics.EventRequestRejected,
			Reason: "invalid_request",
		})
		return nil, err
	}

	requestID := uuid.NewString()
	log := e.logger.With(
		slog.String("request_id", requestID),
		slog.String("key", req.Key))

	if e.governor.Utilization() >= e.backpressureThreshold {
		log.Warn("Request rejected, engine overloaded",
			slog.Float64("utilization", e.governor.Utilization()))
		e.collector.Emit(metrics.Event{
			Type:   metrics.EventRequestRejected,
			Reason: "overloaded",
		})
		return nil, ErrOverloaded
	}

	if err := e.governor.AcquireGlobal(ctx); err != nil {
		return nil, err
	}
	if err := e.governor.AcquireKey(ctx, req.Key); err != nil {
		e.governor.ReleaseGlobal()
		return nil, err
	}

	entry := e.sessions.Touch(req.Key)

	p := e.personas.Match(req.Message)
	system, err := p.RenderSystem(req.Message, req.Key)
	if err != nil {
		e.governor.ReleaseKey(req.Key)
		e.governor.ReleaseGlobal()
		return nil, fmt.Errorf("rendering persona %q: %w", p.Name, err)
	}

	log.Info("Cascade starting",
		slog.String("persona", p.Name),
		slog.Int64("session_requests", entry.RequestCount))
	e.collector.Emit(metrics.Event{Type: metrics.EventCascadeStarted})

	breq := backend.Request{
		RequestID:    requestID,
		Key:          req.Key,
		Message:      req.Message,
		SystemPrompt: system,
	}

	// The cascade owns its concurrency slots: if the caller stops waiting, the
	// slots are released only when the cascade actually winds down.
	resultCh := make(chan cascade.Result, 1)
	go func() {
		result := e.executor.Execute(ctx, breq)
		e.governor.ReleaseKey(req.Key)
		e.governor.ReleaseGlobal()
		e.report(result)
		resultCh <- result
	}()

	timer := time.NewTimer(e.maxResponseTime)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		return &Result{
			Result:    result,
			RequestID: requestID,
			Persona:   p.Name,
		}, nil

	case <-timer.C:
		log.Warn("Response time budget exceeded, abandoning cascade",
			slog.Duration("budget", e.maxResponseTime))
		e.collector.Emit(metrics.Event{
			Type:   metrics.EventRequestRejected,
			Reason: "timeout",
		})
		return &Result{
			RequestID: requestID,
			Persona:   p.Name,
			TimedOut:  true,
		}, nil
	}
}

func (e *Engine) report(result cascade.Result) {
	for _, attempt := range result.Attempts {
		e.collector.Emit(metrics.Event{
			Type:     metrics.EventAttemptCompleted,
			Backend:  attempt.Backend,
			Duration: attempt.Elapsed,
			Success:  attempt.Success,
			Kind:     attempt.Kind.String(),
		})
	}
	if result.Success {
		e.collector.Emit(metrics.Event{
			Type:    metrics.EventCascadeWon,
			Backend: result.BackendUsed,
		})
	}
}

// Status snapshots live concurrency, session, and breaker state.
func (e *Engine) Status() Status {
	return Status{
		InFlight:       e.governor.InFlight(),
		Utilization:    e.governor.Utilization(),
		ActiveSessions: e.sessions.Len(),
		Sessions:       e.sessions.Snapshot(),
		Breakers:       e.breaker.Stats(),
		Personas:       e.personas.Names(),
	}
}
