// Package assistantv1 declares the messages of the
// cheamigo.assistant.v1.AssistantService API.
package assistantv1

import (
	"encoding/json"
	"time"
)

type DescribeRequest struct {
	// PhotoDataURI is a frame as "data:<mimetype>;base64,<data>".
	PhotoDataURI string `json:"photoDataUri"`
	// DescribeOnly skips speech and the single-flight gate.
	DescribeOnly bool `json:"describeOnly,omitempty"`
}

type DescribeResponse struct {
	ObjectDescription string `json:"objectDescription"`
	Suppressed        bool   `json:"suppressed"`
	SpeechError       string `json:"speechError,omitempty"`
}

type SpeakRequest struct {
	Text     string `json:"text"`
	Greeting bool   `json:"greeting,omitempty"`
}

type SpeakResponse struct{}

type ListVoicesRequest struct {
	// Language is the tag used to report the selected voice; empty means
	// the service language.
	Language string `json:"language,omitempty"`
}

type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"lang"`
	Default  bool   `json:"default"`
}

type ListVoicesResponse struct {
	Available bool    `json:"available"`
	Voices    []Voice `json:"voices"`
	Selected  *Voice  `json:"selected,omitempty"`
	Match     string  `json:"match,omitempty"`
}

type GetStatusRequest struct{}

type Settings struct {
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
}

type Status struct {
	Detecting       bool     `json:"detecting"`
	Speaking        bool     `json:"speaking"`
	LastDescription string   `json:"lastDescription,omitempty"`
	LastError       string   `json:"lastError,omitempty"`
	Settings        Settings `json:"settings"`
}

type GetStatusResponse struct {
	Status Status `json:"status"`
}

// SettingsUpdate changes only the fields that are set.
type SettingsUpdate struct {
	Volume *float64 `json:"volume,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
}

type UpdateSettingsRequest struct {
	Settings SettingsUpdate `json:"settings"`
}

type UpdateSettingsResponse struct {
	Settings Settings `json:"settings"`
}

type ListDetectionsRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Detection struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Description string    `json:"description,omitempty"`
	Spoken      bool      `json:"spoken"`
	Suppressed  bool      `json:"suppressed"`
	Error       string    `json:"error,omitempty"`
	LatencyMs   int64     `json:"latencyMs"`
	DetectedAt  time.Time `json:"detectedAt"`
}

type ListDetectionsResponse struct {
	Detections []Detection `json:"detections"`
}

type WatchEventsRequest struct {
	// SessionID filters events; empty watches every session.
	SessionID string `json:"sessionId,omitempty"`
}

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
