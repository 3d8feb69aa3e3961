package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Damatnic/astral-safety/internal/anomaly"
	"github.com/Damatnic/astral-safety/internal/api"
	"github.com/Damatnic/astral-safety/internal/audit"
	"github.com/Damatnic/astral-safety/internal/behavior"
	"github.com/Damatnic/astral-safety/internal/pipeline"
	"github.com/Damatnic/astral-safety/internal/pipeline/classifiers"
	"github.com/Damatnic/astral-safety/internal/quality"
	"github.com/Damatnic/astral-safety/internal/store"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("SAFETY_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("SAFETY_HTTP_PORT", "8080")
	totalBudgetMs := envOrDefaultInt("SAFETY_TOTAL_BUDGET_MS", 100)
	crisisBudgetMs := envOrDefaultInt("SAFETY_CRISIS_BUDGET_MS", 50)
	blockThreshold := envOrDefaultFloat("SAFETY_BLOCK_THRESHOLD", 0.8)
	lexiconPath := os.Getenv("SAFETY_LEXICON_PATH")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	apiKeyHash := os.Getenv("SAFETY_API_KEY_HASH")
	cacheTTL := envOrDefaultInt("SAFETY_AUTH_CACHE_TTL_S", 300)

	logger.Info("starting safety server",
		zap.String("http_port", httpPort),
		zap.Int("total_budget_ms", totalBudgetMs),
		zap.Int("crisis_budget_ms", crisisBudgetMs),
		zap.Float32("block_threshold", blockThreshold),
	)

	// Lexicon — embedded defaults unless an override file is given
	lexicon := classifiers.DefaultLexicon()
	if lexiconPath != "" {
		loaded, err := classifiers.LoadLexicon(lexiconPath)
		if err != nil {
			logger.Fatal("failed to load lexicon", zap.String("path", lexiconPath), zap.Error(err))
		}
		lexicon = loaded
		logger.Info("lexicon loaded", zap.String("path", lexiconPath))
	}

	// Classifiers
	crisis := classifiers.NewCrisisClassifier(lexicon)
	moderator := classifiers.NewContentModerator(lexicon, blockThreshold)
	tracker := behavior.NewTracker(behavior.Config{}, logger)
	defer tracker.Close()
	detector := anomaly.NewDetector(anomaly.Config{}, logger)
	defer detector.Close()
	assessor := quality.NewAssessor()

	// Audit — ClickHouse or in-process ledger fallback
	ledger := audit.NewMemoryLedger()
	var recorder audit.Recorder = ledger
	var analyzer audit.Analyzer = ledger
	var outcomes api.OutcomeSink = ledger

	var chReader *audit.Reader
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log recorder", zap.Error(err))
			recorder = audit.NewLogRecorder(logger)
		} else {
			recorder = chWriter
			logger.Info("clickhouse writer connected")

			chReader, err = audit.NewReader(clickhouseDSN, logger)
			if err != nil {
				logger.Warn("clickhouse reader connection failed", zap.Error(err))
			} else {
				defer func() { _ = chReader.Close() }()
				logger.Info("clickhouse reader connected")
			}
		}
	} else {
		logger.Info("no CLICKHOUSE_DSN set, using memory ledger")
	}
	defer recorder.Close()

	// Postgres outcome store (optional)
	var outcomeStore *store.OutcomeStore
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
		outcomeStore = store.NewOutcomeStore(db)
		outcomes = outcomeStore
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, outcomes stay in memory")
	}

	if chReader != nil {
		sa := &audit.StoreAnalyzer{Reader: chReader}
		if outcomeStore != nil {
			sa.Outcomes = outcomeStore
		}
		analyzer = sa
	}

	// Orchestrator
	orch := pipeline.New(
		pipeline.Config{
			TotalBudget:  time.Duration(totalBudgetMs) * time.Millisecond,
			CrisisBudget: time.Duration(crisisBudgetMs) * time.Millisecond,
		},
		pipeline.Deps{
			Crisis:    crisis,
			Moderator: moderator,
			Behavior:  tracker,
			Anomaly:   detector,
			Quality:   assessor,
			Recorder:  recorder,
			Analyzer:  analyzer,
			Logger:    logger,
		},
	)

	// HTTP server
	deps := &api.Dependencies{
		Orchestrator: orch,
		Analyzer:     analyzer,
		Outcomes:     outcomes,
		Logger:       logger,
		APIKeyHash:   apiKeyHash,
		CacheTTL:     time.Duration(cacheTTL) * time.Second,
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

	logger.Info("safety server stopped")
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

func envOrDefaultFloat(key string, defaultVal float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return defaultVal
}
