package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event kinds emitted by the core.
const (
	KindMatchCreated    = "match.created"
	KindMessageReceived = "message.received"
)

// Event is a notification addressed to a single user. The transport
// (push, email, ...) is external; the core only hands events off.
type Event struct {
	ID           string
	Kind         string
	TargetUserID uint64
	Payload      map[string]any
	CreatedAt    time.Time
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(kind string, targetUserID uint64, payload map[string]any) Event {
	return Event{
		ID:           uuid.NewString(),
		Kind:         kind,
		TargetUserID: targetUserID,
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
	}
}

// Dispatcher is the abstract sink the match engine and chat pipeline hand
// events to. Implementations must be fire-and-forget from the caller's
// perspective: Dispatch never blocks on delivery and never returns
// transport errors to the caller.
type Dispatcher interface {
	Dispatch(event Event)
}

// Sink performs the actual (external) delivery of one event.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// LogSink is the default sink: it only logs the event. Real transports
// (push, email) are wired in from outside the core.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Deliver(_ context.Context, event Event) error {
	s.Logger.Info("notification",
		"event_id", event.ID,
		"kind", event.Kind,
		"target_user", event.TargetUserID,
	)
	return nil
}

// AsyncDispatcher decouples event handoff from delivery via a buffered
// queue drained by a single worker. Delivery failures are logged, never
// propagated; each accepted event reaches the sink at least once unless
// the process stops first.
type AsyncDispatcher struct {
	sink   Sink
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}
}

// NewAsyncDispatcher starts the worker goroutine.
func NewAsyncDispatcher(sink Sink, logger *slog.Logger) *AsyncDispatcher {
	d := &AsyncDispatcher{
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		if err := d.sink.Deliver(context.Background(), event); err != nil {
			d.logger.Error("notification delivery failed",
				"event_id", event.ID,
				"kind", event.Kind,
				"target_user", event.TargetUserID,
				"err", err,
			)
		}
	}
}

// Dispatch enqueues the event. When the queue is full the event is
// delivered inline by the calling goroutine rather than dropped.
func (d *AsyncDispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
	default:
		if err := d.sink.Deliver(context.Background(), event); err != nil {
			d.logger.Error("notification delivery failed",
				"event_id", event.ID,
				"kind", event.Kind,
				"err", err,
			)
		}
	}
}

// Close drains the queue and stops the worker.
func (d *AsyncDispatcher) Close() {
	close(d.queue)
	<-d.done
}
