package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pickwire/platform/pkg/audit"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Init("test")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context) error {
	s.calls++
	return s.err
}

func newTestEngine(t *testing.T, db *gorm.DB, refresher Refresher) *Engine {
	t.Helper()

	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("migrating report tables: %v", err)
	}
	writer := audit.NewWriter(db)
	if err := writer.AutoMigrate(); err != nil {
		t.Fatalf("migrating audit table: %v", err)
	}

	return NewEngine(db, NewValidator(DefaultRules()), repo, writer, refresher, EngineConfig{})
}

// samplePayload builds a valid v1 document published in ISO week 2025-W02.
func samplePayload(t *testing.T, pickCount int) json.RawMessage {
	t.Helper()

	tickers := []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOG", "META"}
	if pickCount > len(tickers) {
		t.Fatalf("samplePayload supports at most %d picks", len(tickers))
	}

	picks := make([]map[string]interface{}, 0, pickCount)
	for i := 0; i < pickCount; i++ {
		picks = append(picks, map[string]interface{}{
			"ticker":            tickers[i],
			"exchange":          "NASDAQ",
			"side":              "long",
			"target_change_pct": 12.5,
			"rationale":         "momentum setup into earnings",
		})
	}

	doc := map[string]interface{}{
		"schema_version": "v1",
		"title":          "Weekly Alpha Picks",
		"summary":        "Five names for the week ahead.",
		"published_at":   "2025-01-08T13:00:00Z",
		"version":        "v1",
		"picks":          picks,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshalling payload: %v", err)
	}
	return raw
}

const sampleFilename = "2025-01-06report.json"

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return count
}

func lastAttempt(t *testing.T, db *gorm.DB) audit.Record {
	t.Helper()
	var rec audit.Record
	if err := db.Order("started_at DESC").First(&rec).Error; err != nil {
		t.Fatalf("loading attempt row: %v", err)
	}
	return rec
}

func TestImportSuccess(t *testing.T) {
	db := newTestDB(t)
	refresher := &stubRefresher{}
	engine := newTestEngine(t, db, refresher)

	result := engine.Import(context.Background(), models.ImportRequest{
		Filename: sampleFilename,
		Payload:  samplePayload(t, 3),
	})

	if result.Status != models.AttemptStatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Error)
	}
	if result.ReportID == nil || result.Permalink == "" {
		t.Fatal("expected report id and permalink in result")
	}

	var report reportModel
	if err := db.First(&report, "report_id = ?", *result.ReportID).Error; err != nil {
		t.Fatalf("report row missing: %v", err)
	}
	if report.PeriodKey != "2025-W02" {
		t.Fatalf("expected period 2025-W02, got %s", report.PeriodKey)
	}
	if got := countRows(t, db, &pickModel{}); got != 3 {
		t.Fatalf("expected 3 pick rows, got %d", got)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one view refresh, got %d", refresher.calls)
	}

	rec := lastAttempt(t, db)
	if rec.Status != models.AttemptStatusSuccess {
		t.Fatalf("audit status = %s", rec.Status)
	}
	if rec.ReportID == nil || *rec.ReportID != *result.ReportID {
		t.Fatal("audit row not linked to the created report")
	}
	if len(rec.RawPayload) == 0 {
		t.Fatal("audit row missing raw payload snapshot")
	}
}

func TestImportDuplicateSecondAttempt(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})
	payload := samplePayload(t, 3)

	first := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: payload})
	if first.Status != models.AttemptStatusSuccess {
		t.Fatalf("first import failed: %s", first.Error)
	}

	second := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: payload})
	if second.Status != models.AttemptStatusFailed || second.Category != models.CategoryDuplicate {
		t.Fatalf("expected duplicate failure, got %s/%s", second.Status, second.Category)
	}
	if !strings.Contains(second.Error, "period_key=2025-W02") {
		t.Fatalf("duplicate error should name the conflicting key, got %q", second.Error)
	}

	if got := countRows(t, db, &reportModel{}); got != 1 {
		t.Fatalf("expected 1 report after duplicate attempt, got %d", got)
	}
	if got := countRows(t, db, &audit.Record{}); got != 2 {
		t.Fatalf("expected 2 attempt rows, got %d", got)
	}
}

func TestImportRejectsPickCardinality(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})

	for _, count := range []int{0, 6} {
		result := engine.Import(context.Background(), models.ImportRequest{
			Filename: sampleFilename,
			Payload:  samplePayload(t, count),
		})
		if result.Status != models.AttemptStatusFailed || result.Category != models.CategoryValidation {
			t.Fatalf("%d picks: expected validation failure, got %s/%s", count, result.Status, result.Category)
		}
	}

	if got := countRows(t, db, &reportModel{}); got != 0 {
		t.Fatalf("expected no reports, got %d", got)
	}
	if got := countRows(t, db, &pickModel{}); got != 0 {
		t.Fatalf("expected no picks, got %d", got)
	}
	if got := countRows(t, db, &audit.Record{}); got != 2 {
		t.Fatalf("expected one failed attempt per call, got %d rows", got)
	}
}

func TestImportStorageFailureStillAudited(t *testing.T) {
	db := newTestDB(t)
	refresher := &stubRefresher{}
	engine := newTestEngine(t, db, refresher)

	// Simulate a mid-write storage failure: the header insert succeeds, the
	// pick insert cannot.
	if err := db.Migrator().DropTable(&pickModel{}); err != nil {
		t.Fatalf("dropping picks table: %v", err)
	}

	result := engine.Import(context.Background(), models.ImportRequest{
		Filename: sampleFilename,
		Payload:  samplePayload(t, 3),
	})

	if result.Status != models.AttemptStatusFailed || result.Category != models.CategoryInternal {
		t.Fatalf("expected internal failure, got %s/%s", result.Status, result.Category)
	}
	if result.Error != "internal error" {
		t.Fatalf("internal detail must not reach the caller, got %q", result.Error)
	}

	// The speculative business write must be fully unwound...
	if got := countRows(t, db, &reportModel{}); got != 0 {
		t.Fatalf("expected zero report rows after rollback, got %d", got)
	}
	// ...while the audit row survives the rollback.
	if got := countRows(t, db, &audit.Record{}); got != 1 {
		t.Fatalf("expected exactly one attempt row, got %d", got)
	}
	rec := lastAttempt(t, db)
	if rec.Status != models.AttemptStatusFailed || rec.ErrorDetail == "" {
		t.Fatalf("attempt row must be failed with detail, got %s %q", rec.Status, rec.ErrorDetail)
	}
	if refresher.calls != 0 {
		t.Fatal("view must not refresh on failure")
	}
}

func TestImportOverridesClientPeriodKey(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})

	var doc map[string]interface{}
	if err := json.Unmarshal(samplePayload(t, 2), &doc); err != nil {
		t.Fatal(err)
	}
	doc["period_key"] = "1999-W99"
	raw, _ := json.Marshal(doc)

	result := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: raw})
	if result.Status != models.AttemptStatusSuccess {
		t.Fatalf("import failed: %s", result.Error)
	}

	var report reportModel
	if err := db.First(&report, "report_id = ?", *result.ReportID).Error; err != nil {
		t.Fatal(err)
	}
	if report.PeriodKey != "2025-W02" {
		t.Fatalf("client period_key must be ignored, stored %s", report.PeriodKey)
	}
}

func TestImportPermalinkConflict(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})

	first := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: samplePayload(t, 2)})
	if first.Status != models.AttemptStatusSuccess {
		t.Fatalf("first import failed: %s", first.Error)
	}

	// Same title and period under a different version tag derives the same
	// permalink: the second uniqueness mechanism.
	var doc map[string]interface{}
	if err := json.Unmarshal(samplePayload(t, 2), &doc); err != nil {
		t.Fatal(err)
	}
	doc["version"] = "v2"
	raw, _ := json.Marshal(doc)

	second := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: raw})
	if second.Category != models.CategoryDuplicate {
		t.Fatalf("expected duplicate, got %s (%s)", second.Category, second.Error)
	}
	if !strings.Contains(second.Error, "permalink") {
		t.Fatalf("expected permalink conflict message, got %q", second.Error)
	}
}

func TestImportUnknownSchemaVersion(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})

	raw := json.RawMessage(`{"schema_version":"v9","title":"x","published_at":"2025-01-08T13:00:00Z","picks":[]}`)
	result := engine.Import(context.Background(), models.ImportRequest{Filename: sampleFilename, Payload: raw})

	if result.Category != models.CategoryValidation {
		t.Fatalf("expected validation failure, got %s", result.Category)
	}
	rec := lastAttempt(t, db)
	if rec.SchemaVersion != "v9" {
		t.Fatalf("audit row should record the declared schema version, got %q", rec.SchemaVersion)
	}
}

func TestImportPayloadTooLarge(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatal(err)
	}
	writer := audit.NewWriter(db)
	if err := writer.AutoMigrate(); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(db, NewValidator(DefaultRules()), repo, writer, nil, EngineConfig{MaxPayloadBytes: 64})

	result := engine.Import(context.Background(), models.ImportRequest{
		Filename: sampleFilename,
		Payload:  samplePayload(t, 3),
	})

	if result.Category != models.CategoryPayloadTooLarge {
		t.Fatalf("expected payload_too_large, got %s", result.Category)
	}
	if got := countRows(t, db, &audit.Record{}); got != 1 {
		t.Fatalf("expected one attempt row, got %d", got)
	}
}

func TestRefreshFailureDoesNotFailImport(t *testing.T) {
	db := newTestDB(t)
	refresher := &stubRefresher{err: fmt.Errorf("view rebuild timeout")}
	engine := newTestEngine(t, db, refresher)

	result := engine.Import(context.Background(), models.ImportRequest{
		Filename: sampleFilename,
		Payload:  samplePayload(t, 3),
	})

	if result.Status != models.AttemptStatusSuccess {
		t.Fatalf("refresh failure must not fail the import, got %s", result.Status)
	}
	if refresher.calls == 0 {
		t.Fatal("expected refresh attempts")
	}
	rec := lastAttempt(t, db)
	if rec.Status != models.AttemptStatusSuccess {
		t.Fatalf("audit row should still record success, got %s", rec.Status)
	}
}

func TestWriteConflictClassifiedAsDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatal(err)
	}

	payload, err := DecodePayload(samplePayload(t, 2), "v1")
	if err != nil {
		t.Fatal(err)
	}

	first, firstPicks := buildRows(payload)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return repo.InsertReportWithPicks(tx, first, firstPicks)
	}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	// A racing writer that lost: same derived keys, fresh row ids, no
	// pre-check. The constraint violation must classify as duplicate.
	second, secondPicks := buildRows(payload)
	writeErr := db.Transaction(func(tx *gorm.DB) error {
		return repo.InsertReportWithPicks(tx, second, secondPicks)
	})
	if writeErr == nil {
		t.Fatal("expected uniqueness violation")
	}
	if !isDuplicateErr(writeErr) {
		t.Fatalf("constraint violation not classified as duplicate: %v", writeErr)
	}
}
