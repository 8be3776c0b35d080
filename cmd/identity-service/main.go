package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pickwire/platform/pkg/common/config"
	"github.com/pickwire/platform/pkg/common/database"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/gateway/auth"
	"github.com/pickwire/platform/pkg/gateway/middleware"
	"github.com/pickwire/platform/pkg/identity"
)

func main() {
	logger.Init("identity-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := identity.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate user tables")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialise JWT manager")
	}

	var oidc *auth.OIDCAuthenticator
	if cfg.OIDCIssuer != "" {
		oidc, err = auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			logger.Log.WithError(err).Warn("OIDC disabled")
			oidc = nil
		}
	}

	service := identity.NewService(repo, jwtManager, oidc)
	handler := identity.NewHTTPHandler(service)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.Authenticate(jwtManager))
	handler.RegisterProtected(protected)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.IdentityServicePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.IdentityServicePort,
		}).Info("Identity Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Identity Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.ClosePostgres()

	logger.Log.Info("Identity Service stopped")
}
