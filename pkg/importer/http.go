package importer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"github.com/pickwire/platform/pkg/gateway/middleware"
)

// HTTPHandler is the ingestion gateway. It owns every transport-level check:
// rejections here never reach the engine and leave no audit trace.
type HTTPHandler struct {
	engine    *Engine
	hardLimit int64 // server-side ceiling, any body
	softLimit int64 // UI-facing cap for client-originated (multipart) uploads
}

func NewHTTPHandler(engine *Engine, hardLimit, softLimit int64) *HTTPHandler {
	return &HTTPHandler{engine: engine, hardLimit: hardLimit, softLimit: softLimit}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/admin/imports", h.handleImport).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.hardLimit {
		respondError(w, http.StatusRequestEntityTooLarge, "request exceeds server size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.hardLimit)

	var (
		req    models.ImportRequest
		status int
		err    error
	)

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		req, status, err = h.extractMultipart(r)
	case strings.HasPrefix(contentType, "application/json"):
		req, status, err = h.extractJSON(r)
	default:
		respondError(w, http.StatusBadRequest, "content type must be multipart/form-data or application/json")
		return
	}
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	if !ValidFilename(req.Filename) {
		respondError(w, http.StatusBadRequest, "filename must match YYYY-MM-DDreport.json")
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		actorID := claims.UserID
		req.ActorID = &actorID
	}

	result := h.engine.Import(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	if result.Status == models.AttemptStatusSuccess {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(statusForCategory(result.Category))
	}
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) extractMultipart(r *http.Request) (models.ImportRequest, int, error) {
	if err := r.ParseMultipartForm(h.softLimit); err != nil {
		if isBodyTooLarge(err) {
			return models.ImportRequest{}, http.StatusRequestEntityTooLarge, errors.New("upload exceeds size limit")
		}
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("malformed multipart body")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("missing file field")
	}
	defer file.Close()

	if header.Size > h.softLimit {
		return models.ImportRequest{}, http.StatusRequestEntityTooLarge, errors.New("upload exceeds client size limit")
	}

	data, err := io.ReadAll(io.LimitReader(file, h.softLimit+1))
	if err != nil {
		logger.Log.WithError(err).Warn("failed to read multipart upload")
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("unreadable upload")
	}
	if int64(len(data)) > h.softLimit {
		return models.ImportRequest{}, http.StatusRequestEntityTooLarge, errors.New("upload exceeds client size limit")
	}
	if !json.Valid(data) {
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("upload is not valid JSON")
	}

	filename := r.FormValue("filename")
	if filename == "" {
		filename = header.Filename
	}

	return models.ImportRequest{
		Filename:         filename,
		Payload:          data,
		DeclaredChecksum: r.FormValue("checksum"),
	}, 0, nil
}

type jsonImportBody struct {
	Filename string          `json:"filename"`
	Payload  json.RawMessage `json:"payload"`
	Checksum string          `json:"checksum"`
}

func (h *HTTPHandler) extractJSON(r *http.Request) (models.ImportRequest, int, error) {
	var body jsonImportBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if isBodyTooLarge(err) {
			return models.ImportRequest{}, http.StatusRequestEntityTooLarge, errors.New("request exceeds server size limit")
		}
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("invalid request body")
	}
	if len(body.Payload) == 0 {
		return models.ImportRequest{}, http.StatusBadRequest, errors.New("payload required")
	}

	return models.ImportRequest{
		Filename:         body.Filename,
		Payload:          body.Payload,
		DeclaredChecksum: body.Checksum,
	}, 0, nil
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func statusForCategory(category string) int {
	switch category {
	case models.CategoryValidation:
		return http.StatusUnprocessableEntity
	case models.CategoryDuplicate:
		return http.StatusConflict
	case models.CategoryPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
