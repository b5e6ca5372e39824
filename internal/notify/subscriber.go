package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/cheamigo/cheamigo/pkg/events"
)

// Subscriber routes queued events to the subscriptions that want them.
type Subscriber struct {
	Store      Store
	Dispatcher *Dispatcher
	Pool       workerpool.WorkerPool
}

// Handle is called by frame's pub/sub for each event message.
func (s *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("notify subscriber: unmarshal envelope")
		return err
	}

	subs, err := s.Store.Matching(ctx, env)
	if err != nil {
		util.Log(ctx).WithError(err).Error("notify subscriber: match subscriptions")
		return err
	}

	// Retries outlive the queue callback.
	dctx := context.WithoutCancel(ctx)
	for _, sub := range subs {
		deliver := func() { s.Dispatcher.Dispatch(dctx, sub, env) }
		if s.Pool == nil {
			go deliver()
			continue
		}
		if err := s.Pool.Submit(dctx, deliver); err != nil {
			slog.WarnContext(ctx, "notify pool full", slog.String("subscription_id", sub.ID))
		}
	}
	return nil
}
