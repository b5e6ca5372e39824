// Package history persists detection outcomes so clients can review what
// the assistant said.
package history

import (
	"time"

	"github.com/pitabwire/frame/data"
)

// DetectionRecord is one detection attempt.
type DetectionRecord struct {
	data.BaseModel

	SessionID   string    `gorm:"type:varchar(64);index:idx_dr_session" json:"session_id"`
	Description string    `gorm:"type:text"                             json:"description"`
	Spoken      bool      `gorm:"default:false"                         json:"spoken"`
	Suppressed  bool      `gorm:"default:false"                         json:"suppressed"`
	Error       string    `gorm:"type:text"                             json:"error,omitempty"`
	LatencyMs   int64     `gorm:"default:0"                             json:"latency_ms"`
	DetectedAt  time.Time `gorm:"index:idx_dr_detected_at"              json:"detected_at"`
}

func (DetectionRecord) TableName() string { return "detection_records" }
