package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/audit"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"github.com/pickwire/platform/pkg/common/retry"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Refresher rebuilds the denormalized read view after a successful import.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type EngineConfig struct {
	MaxPayloadBytes int64
	RefreshAttempts int
	DefaultVersion  string
}

// Engine is the transactional core of the import pipeline. Every invocation
// leaves exactly one terminal ImportAttempt row, whatever the outcome: the
// business write runs in a savepoint scope that can be rolled back on its own,
// and the audit row is written in the outer transaction which always commits.
type Engine struct {
	db        *gorm.DB
	validator *Validator
	repo      *Repository
	auditLog  *audit.Writer
	refresher Refresher
	cfg       EngineConfig
}

func NewEngine(db *gorm.DB, validator *Validator, repo *Repository, auditLog *audit.Writer, refresher Refresher, cfg EngineConfig) *Engine {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 5 * 1024 * 1024
	}
	if cfg.RefreshAttempts <= 0 {
		cfg.RefreshAttempts = 3
	}
	if cfg.DefaultVersion == "" {
		cfg.DefaultVersion = "v1"
	}
	return &Engine{
		db:        db,
		validator: validator,
		repo:      repo,
		auditLog:  auditLog,
		refresher: refresher,
		cfg:       cfg,
	}
}

// Import runs the full pipeline: decode and validate, duplicate pre-check,
// atomic header+picks write, unconditional audit append, then best-effort
// read-view refresh on success. Failures are classified, never raised: the
// result always carries the attempt id for correlation with the audit trail.
func (e *Engine) Import(ctx context.Context, req models.ImportRequest) models.ImportResult {
	attemptID := uuid.New()
	startedAt := time.Now().UTC()
	schemaVersion := e.cfg.DefaultVersion

	var (
		category    string // empty means success so far
		callerError string // sanitized, returned to the caller
		auditDetail string // full detail, audit trail only
		report      *reportModel
		picks       []pickModel
	)

	fail := func(cat, caller, detail string) {
		category = cat
		callerError = caller
		auditDetail = detail
	}

	if int64(len(req.Payload)) > e.cfg.MaxPayloadBytes {
		msg := fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", len(req.Payload), e.cfg.MaxPayloadBytes)
		fail(models.CategoryPayloadTooLarge, msg, msg)
	} else {
		schemaVersion = SchemaVersionOf(req.Payload, e.cfg.DefaultVersion)
		payload, err := DecodePayload(req.Payload, e.cfg.DefaultVersion)
		if err == nil {
			err = e.validator.Validate(req.Filename, payload)
		}
		if err != nil {
			fail(models.CategoryValidation, err.Error(), err.Error())
		} else {
			report, picks = buildRows(payload)
		}
	}

	txErr := e.db.WithContext(ctx).Transaction(func(outer *gorm.DB) error {
		if category == "" {
			conflict, err := e.repo.FindConflict(outer, report.PeriodKey, report.Version, report.Permalink)
			if err != nil {
				logger.Log.WithError(err).WithField("attempt_id", attemptID).Error("duplicate pre-check failed")
				fail(models.CategoryInternal, "internal error", err.Error())
			} else if conflict != "" {
				fail(models.CategoryDuplicate, conflict, conflict)
			}
		}

		if category == "" {
			// Savepoint scope: a failed business write is unwound here alone,
			// leaving the outer transaction free to record the failure.
			writeErr := outer.Transaction(func(inner *gorm.DB) error {
				return e.repo.InsertReportWithPicks(inner, report, picks)
			})
			if writeErr != nil {
				if isDuplicateErr(writeErr) {
					msg := fmt.Sprintf("conflict on (period_key=%s, version=%s) or permalink=%s",
						report.PeriodKey, report.Version, report.Permalink)
					fail(models.CategoryDuplicate, msg, msg)
				} else {
					logger.Log.WithError(writeErr).WithField("attempt_id", attemptID).Error("report write failed")
					fail(models.CategoryInternal, "internal error", writeErr.Error())
				}
			}
		}

		return e.auditLog.AppendTx(outer, e.buildRecord(attemptID, req, schemaVersion, startedAt, category, auditDetail, report))
	})

	if txErr != nil {
		// The outer commit (or the audit insert itself) failed. Nothing from
		// this transaction persisted, so try once more to leave a trace on a
		// fresh connection before reporting the attempt as internal.
		logger.Log.WithError(txErr).WithField("attempt_id", attemptID).Error("import transaction failed")
		if category == "" {
			fail(models.CategoryInternal, "internal error", txErr.Error())
		}
		if err := e.auditLog.Append(ctx, e.buildRecord(attemptID, req, schemaVersion, startedAt, category, auditDetail, nil)); err != nil {
			logger.Log.WithError(err).WithField("attempt_id", attemptID).Error("audit fallback write failed")
		}
		return failedResult(attemptID, category, callerError)
	}

	if category != "" {
		return failedResult(attemptID, category, callerError)
	}

	e.refreshView(ctx, attemptID)

	reportID := report.ID
	return models.ImportResult{
		AttemptID: attemptID,
		Status:    models.AttemptStatusSuccess,
		ReportID:  &reportID,
		Permalink: report.Permalink,
	}
}

func (e *Engine) buildRecord(attemptID uuid.UUID, req models.ImportRequest, schemaVersion string, startedAt time.Time, category, detail string, report *reportModel) *audit.Record {
	rec := &audit.Record{
		AttemptID:        attemptID,
		ActorID:          req.ActorID,
		Filename:         req.Filename,
		DeclaredChecksum: req.DeclaredChecksum,
		SchemaVersion:    schemaVersion,
		Status:           models.AttemptStatusSuccess,
		RawPayload:       datatypes.JSON(req.Payload),
		StartedAt:        startedAt,
		FinishedAt:       time.Now().UTC(),
	}
	if category != "" {
		rec.Status = models.AttemptStatusFailed
		rec.ErrorDetail = detail
	}
	if category == "" && report != nil {
		reportID := report.ID
		rec.ReportID = &reportID
		rec.Permalink = report.Permalink
	}
	return rec
}

// refreshView is best-effort relative to the response: the import has already
// committed, and a stale view is acceptable until the next successful import.
func (e *Engine) refreshView(ctx context.Context, attemptID uuid.UUID) {
	if e.refresher == nil {
		return
	}
	err := retry.Do(ctx, e.cfg.RefreshAttempts, 200*time.Millisecond, func() error {
		return e.refresher.Refresh(ctx)
	})
	if err != nil {
		logger.Log.WithError(err).WithField("attempt_id", attemptID).
			Warn("read view refresh failed, view stale until next successful import")
	}
}

func failedResult(attemptID uuid.UUID, category, message string) models.ImportResult {
	return models.ImportResult{
		AttemptID: attemptID,
		Status:    models.AttemptStatusFailed,
		Category:  category,
		Error:     message,
	}
}
