package notify

import (
	"context"
	"sync"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/obs"
)

// Notification kinds emitted by the complaint service.
const (
	KindSubmitted = "reclamation.submitted"
	KindAccepted  = "reclamation.accepted"
	KindRejected  = "reclamation.rejected"
	KindAssigned  = "reclamation.assigned"
	KindResolved  = "reclamation.resolved"
	KindWithdrawn = "reclamation.withdrawn"
)

// Message is one outbound notification. An empty UserIDs slice means the sink
// should route to its administrative subscribers.
type Message struct {
	UserIDs   []string  `json:"user_ids,omitempty"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink delivers messages to the external notification collaborator
// (web push, email relay). Delivery mechanics are out of scope here.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// Notifier is what the complaint service emits into. Notify must never block
// the caller and must never surface an error into the user-facing operation.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, kind, body, link string)
}

// LogSink writes notifications as JSON log lines. Stands in for a real
// delivery channel in tests and demo mode.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, msg Message) error {
	obs.LogRequest(map[string]any{
		"type":     "notification",
		"kind":     msg.Kind,
		"user_ids": msg.UserIDs,
		"body":     msg.Body,
		"link":     msg.Link,
	})
	return nil
}

// Dispatcher decouples notification delivery from the transition transaction.
// Messages go through a bounded queue consumed by a single worker; when the
// queue is full or the sink fails, the message is dropped and logged.
type Dispatcher struct {
	sink  Sink
	queue chan Message

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts the delivery worker. A buffer of zero falls back to a
// sensible default.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Message, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.sink.Deliver(ctx, msg)
		cancel()
		if err != nil {
			obs.LogRequest(map[string]any{
				"level": "warn",
				"msg":   "notification delivery failed",
				"kind":  msg.Kind,
				"error": err.Error(),
			})
		}
	}
}

// Notify enqueues a message. Best effort: a full queue drops the message.
func (d *Dispatcher) Notify(_ context.Context, userIDs []string, kind, body, link string) {
	msg := Message{
		UserIDs:   append([]string(nil), userIDs...),
		Kind:      kind,
		Body:      body,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case d.queue <- msg:
	default:
		obs.LogRequest(map[string]any{
			"level": "warn",
			"msg":   "notification queue full, dropping",
			"kind":  kind,
		})
	}
}

// Close stops the worker after draining queued messages.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
	})
}
