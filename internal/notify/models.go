// Package notify forwards assistant events to subscribed HTTP endpoints,
// for example a caregiver dashboard that wants to know what was described.
package notify

import (
	"encoding/json"
	"time"

	"github.com/pitabwire/frame/data"

	"github.com/cheamigo/cheamigo/pkg/events"
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Subscription is a registered endpoint and the events it wants.
type Subscription struct {
	data.BaseModel

	Name   string     `gorm:"type:varchar(255);not null"  json:"name"`
	URL    string     `gorm:"type:varchar(2048);not null" json:"url"`
	Secret string     `gorm:"type:varchar(128);not null"  json:"-"`
	Events EventTypes `gorm:"type:jsonb;default:'[]'"     json:"events"`
	// SessionID restricts deliveries to one session when set.
	SessionID string `gorm:"type:varchar(64)" json:"session_id,omitempty"`
	Active    bool   `gorm:"default:true"     json:"active"`
}

func (Subscription) TableName() string { return "notify_subscriptions" }

// Wants reports whether env should be delivered to s.
func (s Subscription) Wants(env events.Envelope) bool {
	if !s.Active {
		return false
	}
	if s.SessionID != "" && s.SessionID != env.SessionID {
		return false
	}
	return s.Events.Contains(env.Type)
}

// EventTypes is stored as a JSON array.
type EventTypes []events.EventType

func (e EventTypes) Value() (any, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	return string(b), err
}

func (e *EventTypes) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		*e = EventTypes{}
		return nil
	}
}

// Contains reports whether et is listed.
func (e EventTypes) Contains(et events.EventType) bool {
	for _, t := range e {
		if t == et {
			return true
		}
	}
	return false
}

// Delivery records one attempt to deliver an event.
type Delivery struct {
	data.BaseModel

	SubscriptionID string    `gorm:"type:varchar(50);not null;index:idx_nd_subscription" json:"subscription_id"`
	EventID        string    `gorm:"type:varchar(50);not null"                          json:"event_id"`
	EventType      string    `gorm:"type:varchar(100);not null"                         json:"event_type"`
	Attempt        int       `gorm:"default:1"                                          json:"attempt"`
	StatusCode     int       `gorm:"default:0"                                          json:"status_code"`
	Outcome        string    `gorm:"type:varchar(20);not null"                          json:"outcome"`
	Error          string    `gorm:"type:text"                                          json:"error,omitempty"`
	DurationMs     int64     `gorm:"default:0"                                          json:"duration_ms"`
	AttemptedAt    time.Time `gorm:"index:idx_nd_attempted_at"                          json:"attempted_at"`
}

func (Delivery) TableName() string { return "notify_deliveries" }
