package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/logger"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/reports", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/reports/{permalink}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/picks/{ticker}", h.handleTickerHistory).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	result, err := h.service.ListReports(r.Context(), page, pageSize)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list reports")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	permalink := mux.Vars(r)["permalink"]

	detail, err := h.service.GetByPermalink(r.Context(), permalink)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch report")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

func (h *HTTPHandler) handleTickerHistory(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	entries, err := h.service.TickerHistory(r.Context(), ticker)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch ticker history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ticker":  ticker,
		"entries": entries,
	})
}
