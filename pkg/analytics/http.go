package analytics

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/gateway/middleware"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/events", h.handleIngest).Methods(http.MethodPost)
}

type ingestBody struct {
	Events []EventInput `json:"events"`
}

func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body ingestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var actorID *uuid.UUID
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		id := claims.UserID
		actorID = &id
	}

	accepted, err := h.service.Ingest(r.Context(), actorID, body.Events)
	if err != nil {
		if errors.Is(err, ErrEmptyBatch) || errors.Is(err, ErrBatchTooLarge) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to ingest events")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}
