package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Import attempt terminal states. No pending state is ever persisted: an
// attempt row is written exactly once, with the final outcome.
const (
	AttemptStatusSuccess = "success"
	AttemptStatusFailed  = "failed"
)

// Failure categories reported by the import engine and mapped to HTTP status
// codes by the ingestion gateway.
const (
	CategoryValidation      = "validation"
	CategoryDuplicate       = "duplicate"
	CategoryPayloadTooLarge = "payload_too_large"
	CategoryInternal        = "internal"
)

const (
	SideLong  = "long"
	SideShort = "short"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// ImportRequest is what the ingestion gateway hands to the import engine once
// transport-level checks have passed.
type ImportRequest struct {
	Filename         string
	Payload          json.RawMessage
	DeclaredChecksum string
	ActorID          *uuid.UUID
}

// ImportResult is the engine's terminal outcome. The attempt identifier is
// always set, success or failure, so callers can correlate with the audit
// trail.
type ImportResult struct {
	AttemptID uuid.UUID  `json:"attempt_id"`
	Status    string     `json:"status"`
	Category  string     `json:"-"`
	ReportID  *uuid.UUID `json:"report_id,omitempty"`
	Permalink string     `json:"permalink,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type Report struct {
	ID          uuid.UUID `json:"report_id"`
	Permalink   string    `json:"permalink"`
	PeriodKey   string    `json:"period_key"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type Pick struct {
	ID              uuid.UUID `json:"pick_id"`
	ReportID        uuid.UUID `json:"report_id"`
	Ticker          string    `json:"ticker"`
	Exchange        string    `json:"exchange"`
	Side            string    `json:"side"`
	TargetChangePct float64   `json:"target_change_pct"`
	Rationale       string    `json:"rationale"`
}

type ReportDetail struct {
	Report Report `json:"report"`
	Picks  []Pick `json:"picks"`
}

// ImportAttempt is the domain view of one audit row. RawPayload is only
// populated for single-record detail lookups, never in list responses.
type ImportAttempt struct {
	AttemptID        uuid.UUID       `json:"attempt_id"`
	ActorID          *uuid.UUID      `json:"actor_id,omitempty"`
	Filename         string          `json:"filename"`
	DeclaredChecksum string          `json:"declared_checksum,omitempty"`
	SchemaVersion    string          `json:"schema_version"`
	Status           string          `json:"status"`
	ErrorDetail      string          `json:"error_detail,omitempty"`
	ReportID         *uuid.UUID      `json:"report_id,omitempty"`
	Permalink        string          `json:"permalink,omitempty"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

type AttemptFilter struct {
	Status        string
	ActorID       *uuid.UUID
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Page          int
	PageSize      int
}

type AttemptPage struct {
	Items    []ImportAttempt `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// Event is the Kafka wire envelope shared by producer and consumer.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BootstrapRequest struct {
	AdminEmail    string `json:"admin_email"`
	AdminName     string `json:"admin_name"`
	AdminPassword string `json:"admin_password"`
}

type RegisterUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
