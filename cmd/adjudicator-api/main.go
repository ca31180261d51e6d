// Package main provides the claim adjudicator API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mark64oswald/healthsim-hello/internal/adjudication"
	"github.com/mark64oswald/healthsim-hello/internal/api/handlers"
	"github.com/mark64oswald/healthsim-hello/internal/api/middleware"
	"github.com/mark64oswald/healthsim-hello/internal/config"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/dur"
	"github.com/mark64oswald/healthsim-hello/internal/formulary"
	"github.com/mark64oswald/healthsim-hello/internal/ledger"
	"github.com/mark64oswald/healthsim-hello/internal/observability/metrics"
	"github.com/mark64oswald/healthsim-hello/internal/observability/tracing"
	"github.com/mark64oswald/healthsim-hello/pkg/batch"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := newLogger(cfg)
	defer logger.Sync()

	// Initialize tracing
	tracer, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName:    "adjudicator-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Error("tracing shutdown error", zap.Error(err))
		}
	}()

	// Initialize metrics
	m := metrics.New()

	// Build the adjudication pipeline
	benefits := ledger.New(logger)
	rules := dur.DefaultRuleSet().WithEarlyRefillThreshold(cfg.EarlyRefillThresholdDays)
	engine, err := adjudication.New(formulary.StandardCommercial(), rules, benefits, adjudication.Config{
		Metrics: m,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build adjudication engine", zap.Error(err))
	}
	logger.Info("adjudication engine ready",
		zap.String("dur_rules", rules.Version()),
		zap.Int("early_refill_threshold_days", rules.EarlyRefillThreshold()),
	)

	members := member.NewStore()

	pool, err := batch.New(batch.Config{Workers: cfg.BatchWorkers}, engine, logger)
	if err != nil {
		logger.Fatal("failed to build batch pool", zap.Error(err))
	}

	// Initialize handlers
	claimHandler := handlers.NewClaimHandler(engine, members, benefits, pool, cfg.MaxBatchSize, m, logger)
	memberHandler := handlers.NewMemberHandler(members, benefits, m, logger)
	screeningHandler := handlers.NewScreeningHandler(rules, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("adjudicator-api"))
	r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))

	// Health check (no auth)
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes (with auth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/members", memberHandler.Routes())
		r.Mount("/claims", claimHandler.Routes())
		r.Mount("/dur", screeningHandler.Routes())
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting adjudicator API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Environment == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		panic(fmt.Sprintf("build logger: %v", err))
	}
	return logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"adjudicator-api","version":"1.0.0"}`)
}
