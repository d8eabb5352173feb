package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mesflow/backend/internal/config"
	"github.com/mesflow/backend/internal/db"
	"github.com/mesflow/backend/internal/erp"
	httpapi "github.com/mesflow/backend/internal/http"
	"github.com/mesflow/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "qc-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	gateway := &erp.HTTPGateway{BaseURL: cfg.ERPBaseURL, Token: cfg.ERPToken}
	orders := erp.NewCache(gateway, cfg.ERPCacheTTL)

	alerts := &service.AlertService{Store: store, Logger: logger}
	workOrders := &service.WorkOrderService{Store: store, Logger: logger}
	notifier := &service.Notifier{
		Store:    store,
		Audience: service.RoleAudienceResolver{Users: store},
		Logger:   logger,
	}
	pipeline := &service.Pipeline{
		Alerts:     alerts,
		WorkOrders: workOrders,
		Notifier:   notifier,
		Logger:     logger,
	}

	router := httpapi.Router(cfg, store, orders, pipeline, alerts, notifier, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
