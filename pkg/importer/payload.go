package importer

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportPayload is the decoded, version-independent form of an uploaded
// report. Wire shapes are tagged by schema_version and decoded per version so
// a future v2 is a new case below, not a reshape of v1.
type ReportPayload struct {
	SchemaVersion string
	Title         string
	Summary       string
	PublishedAt   time.Time
	Version       string
	Picks         []PickPayload
}

type PickPayload struct {
	Ticker          string
	Exchange        string
	Side            string
	TargetChangePct float64
	Rationale       string
}

type versionEnvelope struct {
	SchemaVersion string `json:"schema_version"`
}

// SchemaVersionOf peeks the discriminant without decoding the full document,
// so the audit trail can record the declared version even when decoding fails.
func SchemaVersionOf(raw json.RawMessage, defaultVersion string) string {
	var env versionEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.SchemaVersion != "" {
		return env.SchemaVersion
	}
	return defaultVersion
}

type payloadV1 struct {
	SchemaVersion string    `json:"schema_version"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	PublishedAt   time.Time `json:"published_at"`
	Version       string    `json:"version"`
	// period_key is accepted on the wire but never trusted: the engine
	// recomputes it from published_at.
	PeriodKey string   `json:"period_key"`
	Picks     []pickV1 `json:"picks"`
}

type pickV1 struct {
	Ticker          string  `json:"ticker"`
	Exchange        string  `json:"exchange"`
	Side            string  `json:"side"`
	TargetChangePct float64 `json:"target_change_pct"`
	Rationale       string  `json:"rationale"`
}

// DecodePayload resolves the schema_version discriminant and decodes the
// matching wire shape. Unknown versions are validation failures.
func DecodePayload(raw json.RawMessage, defaultVersion string) (*ReportPayload, error) {
	version := SchemaVersionOf(raw, defaultVersion)

	switch version {
	case "v1":
		return decodeV1(raw, defaultVersion)
	default:
		return nil, ValidationError{reason: fmt.Errorf("unknown schema_version %q", version)}
	}
}

func decodeV1(raw json.RawMessage, defaultVersion string) (*ReportPayload, error) {
	var wire payloadV1
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, ValidationError{reason: fmt.Errorf("malformed v1 payload: %w", err)}
	}

	version := wire.Version
	if version == "" {
		version = defaultVersion
	}

	payload := &ReportPayload{
		SchemaVersion: "v1",
		Title:         wire.Title,
		Summary:       wire.Summary,
		PublishedAt:   wire.PublishedAt,
		Version:       version,
		Picks:         make([]PickPayload, 0, len(wire.Picks)),
	}
	for _, p := range wire.Picks {
		payload.Picks = append(payload.Picks, PickPayload{
			Ticker:          p.Ticker,
			Exchange:        p.Exchange,
			Side:            p.Side,
			TargetChangePct: p.TargetChangePct,
			Rationale:       p.Rationale,
		})
	}

	return payload, nil
}
