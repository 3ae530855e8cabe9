// Agentic tutoring server: course construction and adaptive tutoring
// sessions over websocket and HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mamounyosef/agentic-tutor/internal/api"
	"github.com/mamounyosef/agentic-tutor/internal/config"
	"github.com/mamounyosef/agentic-tutor/internal/constructor"
	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/extract"
	"github.com/mamounyosef/agentic-tutor/internal/identity"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
	"github.com/mamounyosef/agentic-tutor/internal/middleware"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/tutor"
	"github.com/mamounyosef/agentic-tutor/internal/vector"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Model access is optional: without a key every coordinator decision
	// takes its deterministic path.
	var modelClient llm.Client
	var embedder vector.Embedder
	aiEnabled := false
	if cfg.OpenAIAPIKey != "" {
		oa := llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		modelClient = oa
		embedder = oa
		aiEnabled = true
		slog.Info("Model client initialized", "model", cfg.OpenAIModel)
	} else {
		slog.Info("AI features disabled (OPENAI_API_KEY not set), running deterministic-only")
	}

	extractors := extract.NewRegistry()
	vec := vector.NewStore(repo, embedder)

	consDeps := constructor.Deps{
		LLM:        modelClient,
		Repo:       repo,
		Extractors: extractors,
		Vector:     vec,
		Log:        logger,
	}
	tutDeps := tutor.Deps{
		LLM:    modelClient,
		Repo:   repo,
		Vector: vec,
		Log:    logger,
	}

	mgr := session.NewManager(repo, logger)
	mgr.RegisterKind(domain.KindConstructor, constructor.Restore(consDeps))
	mgr.RegisterKind(domain.KindTutor, tutor.Restore(tutDeps))

	handler := api.NewHandler(mgr, repo, consDeps, tutDeps, cfg, logger)
	wsHandler := session.NewWSHandler(mgr, logger, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	r.Route("/api", handler.RegisterRoutes)

	// WebSocket endpoint.
	r.Get("/ws/sessions/{id}", wsHandler.ServeHTTP)

	// Websocket turns can run long; no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.StartSweeper(ctx, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "ai_enabled", aiEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
