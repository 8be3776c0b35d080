package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/audit"
	"gorm.io/gorm"
)

func newTestGateway(t *testing.T, hardLimit, softLimit int64) (*mux.Router, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	engine := newTestEngine(t, db, &stubRefresher{})
	handler := NewHTTPHandler(engine, hardLimit, softLimit)

	router := mux.NewRouter()
	handler.Register(router)
	return router, db
}

func jsonImportRequest(t *testing.T, filename string, payload json.RawMessage) *http.Request {
	t.Helper()

	body, err := json.Marshal(jsonImportBody{Filename: filename, Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/imports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartImportRequest(t *testing.T, filename string, payload []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestGatewayJSONImport(t *testing.T) {
	router, db := newTestGateway(t, 5<<20, 2<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonImportRequest(t, sampleFilename, samplePayload(t, 3)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AttemptID string `json:"attempt_id"`
		Status    string `json:"status"`
		Permalink string `json:"permalink"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.AttemptID == "" || body.Permalink == "" {
		t.Fatalf("response missing attempt id or permalink: %s", rec.Body.String())
	}
	if got := countRows(t, db, &reportModel{}); got != 1 {
		t.Fatalf("expected 1 report, got %d", got)
	}
}

func TestGatewayMultipartImport(t *testing.T) {
	router, db := newTestGateway(t, 5<<20, 2<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartImportRequest(t, sampleFilename, samplePayload(t, 2)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := countRows(t, db, &audit.Record{}); got != 1 {
		t.Fatalf("expected 1 attempt row, got %d", got)
	}
}

func TestGatewayStatusMapping(t *testing.T) {
	router, _ := newTestGateway(t, 5<<20, 2<<20)

	// Duplicate: same document twice.
	payload := samplePayload(t, 2)
	first := httptest.NewRecorder()
	router.ServeHTTP(first, jsonImportRequest(t, sampleFilename, payload))
	if first.Code != http.StatusCreated {
		t.Fatalf("seed import failed: %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, jsonImportRequest(t, sampleFilename, payload))
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate should map to 409, got %d", second.Code)
	}

	// Validation: pick count above the limit.
	invalid := httptest.NewRecorder()
	router.ServeHTTP(invalid, jsonImportRequest(t, sampleFilename, samplePayload(t, 6)))
	if invalid.Code != http.StatusUnprocessableEntity {
		t.Fatalf("validation failure should map to 422, got %d", invalid.Code)
	}
}

// Transport-level rejections never reach the engine, so no attempt row may
// exist for any of them.
func TestGatewayRejectionsLeaveNoAuditTrace(t *testing.T) {
	router, db := newTestGateway(t, 5<<20, 2<<20)

	badFilename := jsonImportRequest(t, "picks.json", samplePayload(t, 2))

	badContentType := httptest.NewRequest(http.MethodPost, "/admin/imports", bytes.NewReader(samplePayload(t, 2)))
	badContentType.Header.Set("Content-Type", "text/plain")

	notJSON := httptest.NewRequest(http.MethodPost, "/admin/imports", bytes.NewReader([]byte("{broken")))
	notJSON.Header.Set("Content-Type", "application/json")

	missingPayload := httptest.NewRequest(http.MethodPost, "/admin/imports",
		bytes.NewReader([]byte(`{"filename":"2025-01-06report.json"}`)))
	missingPayload.Header.Set("Content-Type", "application/json")

	cases := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"bad filename", badFilename, http.StatusBadRequest},
		{"bad content type", badContentType, http.StatusBadRequest},
		{"malformed json", notJSON, http.StatusBadRequest},
		{"missing payload", missingPayload, http.StatusBadRequest},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, tc.req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	if got := countRows(t, db, &audit.Record{}); got != 0 {
		t.Fatalf("transport rejections must not be audited, found %d rows", got)
	}
}

func TestGatewayMultipartOverSoftLimit(t *testing.T) {
	router, db := newTestGateway(t, 5<<20, 1024)

	big := []byte(fmt.Sprintf(`{"schema_version":"v1","summary":%q}`, bytes.Repeat([]byte("x"), 2048)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartImportRequest(t, sampleFilename, big))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if got := countRows(t, db, &audit.Record{}); got != 0 {
		t.Fatalf("oversized upload must not be audited, found %d rows", got)
	}
}

func TestGatewayDeclaredLengthOverHardLimit(t *testing.T) {
	router, db := newTestGateway(t, 1024, 512)

	req := jsonImportRequest(t, sampleFilename, samplePayload(t, 2))
	req.ContentLength = 10 << 20

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if got := countRows(t, db, &audit.Record{}); got != 0 {
		t.Fatalf("hard-limit rejections must not be audited, found %d rows", got)
	}
}

func TestGatewayMultipartFileNotJSON(t *testing.T) {
	router, _ := newTestGateway(t, 5<<20, 2<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartImportRequest(t, sampleFilename, []byte("not json at all")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-JSON upload, got %d", rec.Code)
	}
}
