package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type eventModel struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Type       string            `gorm:"column:type;index"`
	Name       string            `gorm:"column:name;index"`
	ActorID    *uuid.UUID        `gorm:"type:uuid;column:actor_id;index"`
	Properties datatypes.JSONMap `gorm:"column:properties"`
	OccurredAt time.Time         `gorm:"column:occurred_at;index"`
	ReceivedAt time.Time         `gorm:"column:received_at"`
}

func (eventModel) TableName() string { return "analytics_events" }

// EventInput is one client-submitted analytics event. Timestamps are
// client-supplied here, unlike the import pipeline: analytics is best-effort
// telemetry, not an audit trail.
type EventInput struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
	OccurredAt time.Time              `json:"occurred_at"`
}
