package api

import "github.com/cheamigo/cheamigo/pkg/events"

// CreateRequest is the body of POST /api/v1/subscriptions.
type CreateRequest struct {
	Name      string             `json:"name"`
	URL       string             `json:"url"`
	Events    []events.EventType `json:"events"`
	SessionID string             `json:"session_id,omitempty"`
}

// UpdateRequest is the body of PATCH /api/v1/subscriptions/{id}. Absent
// fields are left unchanged.
type UpdateRequest struct {
	Name      *string             `json:"name,omitempty"`
	URL       *string             `json:"url,omitempty"`
	Events    *[]events.EventType `json:"events,omitempty"`
	SessionID *string             `json:"session_id,omitempty"`
	Active    *bool               `json:"active,omitempty"`
}

// SubscriptionResponse describes a subscription. Secret is only set on
// create and rotate.
type SubscriptionResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	URL       string             `json:"url"`
	Secret    string             `json:"secret,omitempty"`
	Events    []events.EventType `json:"events"`
	SessionID string             `json:"session_id,omitempty"`
	Active    bool               `json:"active"`
	Breaker   string             `json:"breaker"`
}

// DeliveryResponse describes one delivery attempt.
type DeliveryResponse struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	Attempt     int    `json:"attempt"`
	StatusCode  int    `json:"status_code"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	AttemptedAt string `json:"attempted_at"`
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
