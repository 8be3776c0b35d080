package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
)

type HTTPHandler struct {
	query *QueryService
}

func NewHTTPHandler(query *QueryService) *HTTPHandler {
	return &HTTPHandler{query: query}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/admin/imports", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/admin/imports/{attempt_id}", h.handleGet).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.query.List(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list import attempts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	attemptID, err := uuid.Parse(vars["attempt_id"])
	if err != nil {
		http.Error(w, "invalid attempt id", http.StatusBadRequest)
		return
	}

	attempt, err := h.query.Get(r.Context(), attemptID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import attempt not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch import attempt")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attempt)
}

func parseFilter(r *http.Request) (models.AttemptFilter, error) {
	q := r.URL.Query()
	filter := models.AttemptFilter{}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, errors.New("invalid page")
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > maxPageSize {
			return filter, errors.New("invalid page_size")
		}
		filter.PageSize = size
	}
	if v := q.Get("status"); v != "" {
		if v != models.AttemptStatusSuccess && v != models.AttemptStatusFailed {
			return filter, errors.New("invalid status")
		}
		filter.Status = v
	}
	if v := q.Get("actor"); v != "" {
		actorID, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("invalid actor")
		}
		filter.ActorID = &actorID
	}
	if v := q.Get("started_after"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return filter, errors.New("invalid started_after")
		}
		filter.StartedAfter = &ts
	}
	if v := q.Get("started_before"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return filter, errors.New("invalid started_before")
		}
		filter.StartedBefore = &ts
	}

	return filter, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", value)
}
