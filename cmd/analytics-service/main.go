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
	"github.com/pickwire/platform/pkg/analytics"
	"github.com/pickwire/platform/pkg/common/config"
	"github.com/pickwire/platform/pkg/common/database"
	"github.com/pickwire/platform/pkg/common/kafka"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/gateway/middleware"
)

func main() {
	logger.Init("analytics-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := analytics.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate analytics tables")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.AnalyticsEventTopic)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.AnalyticsEventTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	service := analytics.NewService(producer, repo)
	handler := analytics.NewHTTPHandler(service)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AnalyticsServicePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, service.HandleEvent); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("event consumer stopped")
		}
	}()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.AnalyticsServicePort,
		}).Info("Analytics Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Analytics Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.ClosePostgres()

	logger.Log.Info("Analytics Service stopped")
}
