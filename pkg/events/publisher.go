package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// Emitter publishes typed events.
type Emitter interface {
	Emit(ctx context.Context, eventType EventType, sessionID string, data any) error
}

// Publisher wraps frame's queue manager to emit typed events. It also
// fans events out to local in-process subscribers, which back the event
// streaming RPC. A nil queue manager keeps events local.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string

	subMu       sync.RWMutex
	subscribers map[string]subscription
}

type subscription struct {
	ch        chan Envelope
	sessionID string
}

// NewPublisher creates a publisher that emits events to the given queue reference.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string) *Publisher {
	return &Publisher{
		queueMgr:    queueMgr,
		source:      source,
		queueRef:    queueRef,
		subscribers: make(map[string]subscription),
	}
}

// Emit publishes a typed event to the event bus and fans out to local subscribers.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, sessionID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	envelope := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.subMu.RLock()
	for id, sub := range p.subscribers {
		if sub.sessionID != "" && sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.ch <- envelope:
		default:
			slog.WarnContext(ctx, "event dropped: subscriber buffer full",
				slog.String("subscriber", id), slog.String("event_type", string(eventType)))
		}
	}
	p.subMu.RUnlock()

	if p.queueMgr == nil {
		return nil
	}
	return p.queueMgr.Publish(ctx, p.queueRef, envelope)
}

// Subscribe creates a local subscription. An empty sessionID receives every
// event. The returned cancel func removes the subscription and closes the
// channel.
func (p *Publisher) Subscribe(sessionID string, bufSize int) (<-chan Envelope, func()) {
	if bufSize <= 0 {
		bufSize = 64
	}
	id := xid.New().String()
	ch := make(chan Envelope, bufSize)

	p.subMu.Lock()
	p.subscribers[id] = subscription{ch: ch, sessionID: sessionID}
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subscribers, id)
			close(ch)
			p.subMu.Unlock()
		})
	}
}

// Subscribers returns the number of local subscriptions.
func (p *Publisher) Subscribers() int {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	return len(p.subscribers)
}

// Discard is an Emitter that drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, EventType, string, any) error { return nil }
