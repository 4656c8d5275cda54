package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/crm"
	"github.com/bitlabs/talentstream-proctor/internal/database"
	"github.com/bitlabs/talentstream-proctor/internal/events"
	"github.com/bitlabs/talentstream-proctor/internal/handler"
	"github.com/bitlabs/talentstream-proctor/internal/logger"
	"github.com/bitlabs/talentstream-proctor/internal/middleware"
	"github.com/bitlabs/talentstream-proctor/internal/repository"
	"github.com/bitlabs/talentstream-proctor/internal/router"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/bitlabs/talentstream-proctor/internal/upstream"
	"github.com/bitlabs/talentstream-proctor/internal/validator"
	"github.com/bitlabs/talentstream-proctor/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("backend", cfg.BackendURL).
		Dur("test_duration", cfg.TestDuration).
		Msg("Starting TalentStream proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Connect to RabbitMQ (optional) ────────────────────────────────
	publisher, err := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	outcomeRepo := repository.NewOutcomeRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	backend := upstream.NewClient(cfg.BackendURL, cfg.BackendTimeout, log)
	syncer := crm.NewSyncer(backend, cfg.CRMMaxAttempts, cfg.CRMRetryDelay, log)
	sessionStore := service.NewRedisSessionStore(rdb, cfg.SessionTTL)

	authService := service.NewAuthService(cfg)
	sessionService := service.NewSessionService(sessionStore)
	historyService := service.NewHistoryService(outcomeRepo, violationRepo)
	pipeline := service.NewSubmissionPipeline(backend, syncer, sessionStore, rdb, publisher, log)
	loader := service.NewTestLoader(backend, cfg.TestDuration, log)

	manager := attempt.NewManager(cfg.AttemptIdleTTL, log)
	attemptService := service.NewAttemptService(loader, manager, pipeline, rdb, service.AttemptSettings{
		MaxViolations:  cfg.MaxViolations,
		DebounceWindow: cfg.DebounceWindow,
		IdleTTL:        cfg.AttemptIdleTTL,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		History: handler.NewHistoryHandler(historyService, log),
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(rdb, pool, manager, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	outcomeWorker := worker.NewOutcomeWorker(outcomeRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)

	workersDone := make(chan struct{}, 2)
	go func() { outcomeWorker.Start(workerCtx); workersDone <- struct{}{} }()
	go func() { violationWorker.Start(workerCtx); workersDone <- struct{}{} }()
	go manager.StartReaper(workerCtx, time.Minute)

	createLimiter := middleware.NewRateLimiter(cfg.AttemptCreatePerMin, time.Minute, middleware.ByApplicant)
	go createLimiter.StartCleanup(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, createLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop live attempts, then give in-flight CRM syncs a bounded grace.
	manager.Shutdown()
	syncCtx, syncCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer syncCancel()
	if err := pipeline.Wait(syncCtx); err != nil {
		log.Warn().Err(err).Msg("CRM syncs cancelled at shutdown")
	}

	// 3. Stop background workers; each flushes its buffer before returning.
	workerCancel()
	for range 2 {
		<-workersDone
	}

	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Event publisher close error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
