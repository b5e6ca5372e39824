package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	DetectionStarted   EventType = "detection.started"
	DetectionCompleted EventType = "detection.completed"
	DetectionFailed    EventType = "detection.failed"
	TTSStarted         EventType = "tts.started"
	TTSCompleted       EventType = "tts.completed"
	TTSFailed          EventType = "tts.failed"
	Notice             EventType = "notice"
	SessionOpened      EventType = "session.opened"
	SessionClosed      EventType = "session.closed"
	NotifyTest         EventType = "notify.test"
)

var known = map[EventType]bool{
	DetectionStarted: true, DetectionCompleted: true, DetectionFailed: true,
	TTSStarted: true, TTSCompleted: true, TTSFailed: true,
	Notice: true, SessionOpened: true, SessionClosed: true, NotifyTest: true,
}

// Known reports whether et is an event type the service emits.
func (et EventType) Known() bool { return known[et] }

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DetectionStartedData is the payload for detection.started events.
type DetectionStartedData struct {
	MIMEType string `json:"mime_type,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
}

// DetectionCompletedData is the payload for detection.completed events,
// published once the description has been spoken, suppressed or failed to
// play. LatencyMs covers the describer call only.
type DetectionCompletedData struct {
	Description string `json:"description"`
	Suppressed  bool   `json:"suppressed"`
	Spoken      bool   `json:"spoken"`
	SpeechError string `json:"speech_error,omitempty"`
	LatencyMs   int64  `json:"latency_ms"`
}

// DetectionFailedData is the payload for detection.failed events.
type DetectionFailedData struct {
	Error string `json:"error"`
}

// TTSEventData is the payload for tts.started, tts.completed and
// tts.failed events.
type TTSEventData struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Greeting bool   `json:"greeting,omitempty"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NoticeData is a user-visible message, rendered by clients as a toast.
type NoticeData struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Variant string `json:"variant,omitempty"`
}

// SessionData is the payload for session.opened and session.closed events.
type SessionData struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	Speech     bool   `json:"speech"`
	Locale     string `json:"locale,omitempty"`
}

// NotifyTestData is the payload of a test delivery to a notification
// subscription.
type NotifyTestData struct {
	SubscriptionID string `json:"subscription_id"`
	Message        string `json:"message"`
}
