package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pitabwire/util"

	"github.com/cheamigo/cheamigo/pkg/events"
)

// Subscriber implements frame's queue subscribe worker, turning detection
// events into stored records.
type Subscriber struct {
	Store Store
}

// Handle is called by frame's pub/sub for each event message.
func (s *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("history subscriber: unmarshal envelope")
		return err
	}

	rec, ok, err := recordFromEnvelope(env)
	if err != nil {
		util.Log(ctx).WithError(err).Error("history subscriber: decode payload")
		return err
	}
	if !ok {
		return nil
	}

	if err := s.Store.Create(ctx, rec); err != nil {
		util.Log(ctx).WithError(err).Error("history subscriber: store record")
		return err
	}
	return nil
}

func recordFromEnvelope(env events.Envelope) (*DetectionRecord, bool, error) {
	detectedAt := env.Timestamp
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	switch env.Type {
	case events.DetectionCompleted:
		var d events.DetectionCompletedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, false, err
		}
		return &DetectionRecord{
			SessionID:   env.SessionID,
			Description: d.Description,
			Spoken:      d.Spoken,
			Suppressed:  d.Suppressed,
			Error:       d.SpeechError,
			LatencyMs:   d.LatencyMs,
			DetectedAt:  detectedAt,
		}, true, nil

	case events.DetectionFailed:
		var d events.DetectionFailedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, false, err
		}
		return &DetectionRecord{
			SessionID:  env.SessionID,
			Error:      d.Error,
			DetectedAt: detectedAt,
		}, true, nil
	}
	return nil, false, nil
}
