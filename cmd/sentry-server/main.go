package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/halcyon-ai/sentry/internal/api"
	"github.com/halcyon-ai/sentry/internal/audit"
	"github.com/halcyon-ai/sentry/internal/auth"
	"github.com/halcyon-ai/sentry/internal/conversation"
	"github.com/halcyon-ai/sentry/internal/detect"
	"github.com/halcyon-ai/sentry/internal/feedback"
	"github.com/halcyon-ai/sentry/internal/guardrails"
	"github.com/halcyon-ai/sentry/internal/metrics"
	"github.com/halcyon-ai/sentry/internal/pipeline"
	"github.com/halcyon-ai/sentry/internal/ratelimit"
	"github.com/halcyon-ai/sentry/internal/risk"
	"github.com/halcyon-ai/sentry/internal/simulate"
	"github.com/halcyon-ai/sentry/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Logger
	logger := mustBuildLogger(envOrDefault("SENTRY_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("SENTRY_HTTP_PORT", "8000")
	securityThreshold := envOrDefaultFloat("SENTRY_SECURITY_THRESHOLD", 0.5)
	driftThreshold := envOrDefaultFloat("SENTRY_DRIFT_THRESHOLD", 0.7)
	rateLimitMax := envOrDefaultInt("SENTRY_RATE_LIMIT_MAX", 100)
	rateLimitWindowS := envOrDefaultInt("SENTRY_RATE_LIMIT_WINDOW_S", 60)
	idleTimeoutMin := envOrDefaultInt("SENTRY_CONVERSATION_IDLE_MIN", 30)
	failOpen := envOrDefaultBool("SENTRY_GUARDRAILS_FAIL_OPEN", true)
	modelName := envOrDefault("SENTRY_MODEL_NAME", "demo-medium")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	apiKeyHash := os.Getenv("SENTRY_API_KEY_HASH")

	rateLimitWindow := time.Duration(rateLimitWindowS) * time.Second

	logger.Info("starting sentry server",
		zap.String("http_port", httpPort),
		zap.Float64("security_threshold", securityThreshold),
		zap.Float64("drift_threshold", driftThreshold),
		zap.Int("rate_limit_max", rateLimitMax),
		zap.Duration("rate_limit_window", rateLimitWindow),
		zap.Bool("guardrails_fail_open", failOpen),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(reg)

	// Audit sink: ClickHouse when configured, LogWriter otherwise.
	var writer storage.AuditWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	trail := audit.NewTrail(writer, recorder)

	// Feedback store: Postgres when configured, in-memory otherwise.
	var fbStore feedback.Store
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		fbStore = feedback.NewPostgresStore(db)
		logger.Info("postgres connected")
	} else {
		fbStore = feedback.NewMemoryStore()
		logger.Info("no POSTGRES_DSN set, keeping feedback in memory")
	}

	// Detection + policy components
	limiter := ratelimit.New(rateLimitMax, rateLimitWindow, recorder)
	guardCfg := guardrails.Config{
		PIIBlockThreshold: 3,
		MinSecurityScore:  0.3,
		MaxPromptLength:   10000,
		FailOpen:          failOpen,
	}
	guard := guardrails.NewEngine(guardCfg, recorder, logger)
	tracker := conversation.NewTracker(time.Duration(idleTimeoutMin)*time.Minute, recorder)

	pipe := pipeline.New(pipeline.Deps{
		PII:       detect.NewPIIDetector(),
		Security:  detect.NewPromptSecurityAnalyzer(securityThreshold),
		Drift:     detect.NewSemanticDriftDetector(driftThreshold),
		Injector:  detect.NewStressInjector(rand.NewSource(time.Now().UnixNano()), driftThreshold),
		Limiter:   limiter,
		Guard:     guard,
		Tracker:   tracker,
		Scorer:    risk.NewScorer(),
		Trail:     trail,
		Responder: simulate.New(rand.NewSource(time.Now().UnixNano())),
		Recorder:  recorder,
		Logger:    logger,
		Model:     modelName,
	})

	verifier := auth.NewKeyVerifier(apiKeyHash)
	if verifier.Enabled() {
		logger.Info("api key auth enabled")
	} else {
		logger.Warn("SENTRY_API_KEY_HASH not set, api key auth disabled")
	}

	// Stale conversation reaper
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-reaperCtx.Done():
				return
			case <-ticker.C:
				if n := tracker.CleanupStale(); n > 0 {
					logger.Info("reaped stale conversations", zap.Int("count", n))
				}
			}
		}
	}()

	deps := &api.Dependencies{
		Pipeline:        pipe,
		Guard:           guard,
		Tracker:         tracker,
		Feedback:        fbStore,
		Trail:           trail,
		Verifier:        verifier,
		Recorder:        recorder,
		Logger:          logger,
		Version:         version,
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: rateLimitWindow,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("sentry server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
