package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/config"
	"leaf-doctor/api/internal/engines"
	"leaf-doctor/api/internal/handle"
	"leaf-doctor/api/internal/httpserver"
	"leaf-doctor/api/internal/logging"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"
	"leaf-doctor/api/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if os.Getenv("PORT") == "" {
		cfg.Port = "8000"
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the proxy never serves the remote engine to itself
	if cfg.DefaultEngine == "remote" {
		cfg.DefaultEngine = "stub"
	}
	cfg.RemoteURL = ""
	manager, err := engines.Build(cfg)
	if err != nil {
		log.Fatal("engines", zap.Error(err))
	}

	svcOpts := []analyzer.ServiceOption{
		analyzer.WithTimeout(cfg.AnalysisTimeout),
		analyzer.WithLogger(log),
	}
	var health func(context.Context) error
	if cfg.DatabaseDSN != "" {
		db, err := store.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("db open", zap.Error(err))
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		log.Info("db connected", zap.String("dsn", config.SafeDSNSummary(cfg.DatabaseDSN)))
		svcOpts = append(svcOpts, analyzer.WithHistory(store.NewDiagnosisRepo(db), cfg.CacheMaxAge))
		health = db.PingContext
	}
	svc := analyzer.NewService(manager, svcOpts...)
	h := handle.New(svc, media.NewValidator(cfg.MaxImageBytes), log)

	router := httpserver.NewRouter(
		httpserver.WithLogger(log),
		httpserver.WithHealthCheck(health),
		httpserver.WithRoutes(func(r chi.Router) {
			r.Post("/v1/diagnose", h.Diagnose)
			r.Get("/v1/engines", h.Engines)
		}),
	)

	addr := ":" + cfg.Port
	log.Info("diagnosis-proxy listening", zap.String("addr", addr), zap.Strings("engines", manager.Names()))
	if err := httpserver.Serve(ctx, addr, router, log); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
