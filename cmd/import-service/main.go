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
	"github.com/pickwire/platform/pkg/audit"
	"github.com/pickwire/platform/pkg/common/config"
	"github.com/pickwire/platform/pkg/common/database"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/gateway/auth"
	"github.com/pickwire/platform/pkg/gateway/middleware"
	"github.com/pickwire/platform/pkg/importer"
	"github.com/pickwire/platform/pkg/reports"
)

func main() {
	logger.Init("import-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	redisClient := database.GetRedis()

	repo := importer.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate report tables")
	}

	auditWriter := audit.NewWriter(db)
	if err := auditWriter.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit table")
	}

	cacheService := reports.NewService(reports.NewRepository(db), redisClient, cfg.ReportsCacheTTL)
	materializer := reports.NewMaterializer(db, cacheService)
	if err := materializer.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate read view")
	}

	rules, err := importer.LoadRules(cfg.ImportRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default import rules")
	}
	validator := importer.NewValidator(rules)

	engine := importer.NewEngine(db, validator, repo, auditWriter, materializer, importer.EngineConfig{
		MaxPayloadBytes: cfg.ImportMaxPayloadBytes,
		RefreshAttempts: cfg.ImportRefreshAttempts,
		DefaultVersion:  cfg.ImportDefaultVersion,
	})

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialise JWT manager")
	}

	gatewayHandler := importer.NewHTTPHandler(engine, cfg.ImportMaxPayloadBytes, cfg.ImportSoftUploadBytes)
	auditHandler := audit.NewHTTPHandler(audit.NewQueryService(db))

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	admin := router.PathPrefix("/api/v1").Subrouter()
	admin.Use(
		middleware.Authenticate(jwtManager),
		middleware.RequireAdmin,
		middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow),
	)
	gatewayHandler.Register(admin)
	auditHandler.Register(admin)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ImportServicePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ImportServicePort,
		}).Info("Import Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Import Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Import Service stopped")
}
