package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"github.com/pickwire/platform/pkg/gateway/middleware"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register wires the public auth routes. registerProtected must additionally
// be mounted behind Authenticate for the admin-gated user registration.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/auth/bootstrap", h.handleBootstrap).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/auth/sso", h.handleSSORedirect).Methods(http.MethodGet)
	router.HandleFunc("/auth/sso/callback", h.handleSSOCallback).Methods(http.MethodGet)
}

func (h *HTTPHandler) RegisterProtected(router *mux.Router) {
	router.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req models.BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Bootstrap(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrBootstrapNotAllowed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	actor := middleware.ClaimsFromContext(r.Context())
	user, err := h.service.RegisterUser(r.Context(), actor, req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.Log.WithError(err).Error("login failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleSSORedirect(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	url, err := h.service.AuthCodeURL(state)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotImplemented)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *HTTPHandler) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	resp, err := h.service.LoginWithOIDC(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "no account for this identity", http.StatusUnauthorized)
			return
		}
		logger.Log.WithError(err).Error("SSO login failed")
		http.Error(w, "SSO login failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
