package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/datatypes"
)

// Record is one import attempt in the audit trail. Rows are immutable once
// written; there is no update or delete path in this package.
type Record struct {
	AttemptID        uuid.UUID      `gorm:"type:uuid;primaryKey;column:attempt_id"`
	ActorID          *uuid.UUID     `gorm:"type:uuid;column:actor_id;index"`
	Filename         string         `gorm:"column:filename"`
	DeclaredChecksum string         `gorm:"column:declared_checksum"`
	SchemaVersion    string         `gorm:"column:schema_version"`
	Status           string         `gorm:"column:status;index"`
	ErrorDetail      string         `gorm:"column:error_detail;type:text"`
	ReportID         *uuid.UUID     `gorm:"type:uuid;column:report_id"`
	Permalink        string         `gorm:"column:permalink"`
	RawPayload       datatypes.JSON `gorm:"column:raw_payload"`
	StartedAt        time.Time      `gorm:"column:started_at;index"`
	FinishedAt       time.Time      `gorm:"column:finished_at"`
}

func (Record) TableName() string {
	return "import_attempts"
}

func (r *Record) toDomain(includePayload bool) models.ImportAttempt {
	attempt := models.ImportAttempt{
		AttemptID:        r.AttemptID,
		ActorID:          r.ActorID,
		Filename:         r.Filename,
		DeclaredChecksum: r.DeclaredChecksum,
		SchemaVersion:    r.SchemaVersion,
		Status:           r.Status,
		ErrorDetail:      r.ErrorDetail,
		ReportID:         r.ReportID,
		Permalink:        r.Permalink,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
	if includePayload && len(r.RawPayload) > 0 {
		attempt.RawPayload = json.RawMessage(r.RawPayload)
	}
	return attempt
}
