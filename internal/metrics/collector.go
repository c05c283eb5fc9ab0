package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCascadeStarted   EventType = "cascade_started"
	EventAttemptCompleted EventType = "attempt_completed"
	EventCascadeWon       EventType = "cascade_won"
	EventRequestRejected  EventType = "request_rejected"
	EventSessionEvicted   EventType = "session_evicted"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Backend   string
	Duration  time.Duration
	Success   bool
	Kind      string
	Reason    string
}

// Collector consumes metric events off a buffered channel so the request path
// never blocks on bookkeeping. Producers drop events when the buffer is full.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit sends an event without blocking; events are dropped if the collector
// is saturated.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCascadeStarted:
		c.metrics.IncrementCascades()

	case EventAttemptCompleted:
		c.metrics.RecordAttempt(event.Backend, event.Duration, event.Success, event.Kind)

	case EventCascadeWon:
		c.metrics.RecordWin(event.Backend)

	case EventRequestRejected:
		c.metrics.RecordRejection(event.Reason)

	case EventSessionEvicted:
		c.metrics.RecordEviction()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
