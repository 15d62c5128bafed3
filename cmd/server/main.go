// SHSH Autopilot - goal-driven Linux sandbox bot server
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

	"github.com/ashureev/shsh-autopilot/internal/api"
	"github.com/ashureev/shsh-autopilot/internal/autopilot"
	"github.com/ashureev/shsh-autopilot/internal/bot"
	"github.com/ashureev/shsh-autopilot/internal/config"
	"github.com/ashureev/shsh-autopilot/internal/container"
	"github.com/ashureev/shsh-autopilot/internal/executor"
	"github.com/ashureev/shsh-autopilot/internal/gateway"
	"github.com/ashureev/shsh-autopilot/internal/healthcheck"
	"github.com/ashureev/shsh-autopilot/internal/identity"
	"github.com/ashureev/shsh-autopilot/internal/llm"
	"github.com/ashureev/shsh-autopilot/internal/logging"
	"github.com/ashureev/shsh-autopilot/internal/middleware"
	"github.com/ashureev/shsh-autopilot/internal/nets"
	"github.com/ashureev/shsh-autopilot/internal/store"
	"github.com/ashureev/shsh-autopilot/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const healthRefreshInterval = 15 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		Text:  cfg.IsDevelopment(),
		File:  cfg.LogFile,
	})
	if err != nil {
		slog.Error("Failed to initialize logging", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			slog.Error("Failed to close log file", "error", closeErr)
		}
	}()
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"in_container", config.IsContainer(),
		"model_provider", cfg.Model.Provider,
		"sandbox_backend", cfg.Sandbox.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	httpClient, err := nets.NewHTTPClient(cfg.ProxyAddr, cfg.HTTPTimeout)
	if err != nil {
		slog.Error("Failed to build HTTP client", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.New(cfg.Model, httpClient, logger)
	if err != nil {
		slog.Error("Failed to initialize language model client", "error", err)
		os.Exit(1)
	}

	exec, closeExec, err := newExecutor(ctx, cfg, httpClient, logger)
	if err != nil {
		slog.Error("Failed to initialize sandbox executor", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeExec(); closeErr != nil {
			slog.Error("Failed to close sandbox executor", "error", closeErr)
		}
	}()

	controller := autopilot.NewController(
		autopilot.NewGenerator(llmClient),
		exec,
		cfg.Loop.MaxIterations,
		cfg.Loop.WorkDir,
		logger,
	)

	dispatcher := bot.NewDispatcher(repo, controller, bot.Options{
		OnboardingTimeout: cfg.Bot.OnboardingTimeout,
		MessageLimit:      cfg.Bot.MessageLimit,
		Limiter:           bot.NewRateLimiter(ctx, cfg.Bot.GoalRateLimit, cfg.Bot.GoalRateWindow),
		Logger:            logger,
	})

	// Chat transports.
	sm := gateway.NewSessionManager()
	wsHandler := gateway.NewWebSocketHandler(ctx, dispatcher, sm, cfg.FrontendURL, cfg.IsDevelopment())

	if cfg.TelegramToken != "" {
		tg, err := gateway.NewTelegramChannel(cfg.TelegramToken, httpClient, dispatcher, logger)
		if err != nil {
			slog.Error("Failed to initialize Telegram channel", "error", err)
			os.Exit(1)
		}
		if err := tg.Start(ctx); err != nil {
			slog.Error("Failed to start Telegram channel", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Telegram channel disabled (TELEGRAM_TOKEN not set)")
	}

	if cfg.GRPCHealthAddr != "" {
		hs := healthcheck.New(repo, healthRefreshInterval, logger)
		go func() {
			if err := hs.Serve(ctx, cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	api.NewHandler(repo, cfg).RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: chat sockets are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
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
	}

	// In-flight runs report their abort before the chat sockets close.
	runsDone := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(runsDone)
	}()
	select {
	case <-runsDone:
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for in-flight goal runs")
	}
	sm.CloseAll()

	slog.Info("Server stopped successfully")
}

// newExecutor builds the sandbox backend selected by SANDBOX_BACKEND.
func newExecutor(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (executor.Executor, func() error, error) {
	if !cfg.Sandbox.IsDocker() {
		slog.Info("Using sandbox HTTP API", "url", cfg.Sandbox.APIURL)
		return executor.NewHTTPExecutor(cfg.Sandbox.APIURL, httpClient, logger), func() error { return nil }, nil
	}

	mgr, err := container.NewDockerManager(cfg.Sandbox.Image, cfg.Sandbox.ContainerRuntime)
	if err != nil {
		return nil, nil, err
	}

	networkID, err := mgr.EnsureNetwork(ctx)
	if err != nil {
		_ = mgr.Close()
		return nil, nil, err
	}
	slog.Info("Sandbox network ready", "network_id", networkID)

	tracker := container.NewTracker()
	container.StartTTLWorker(ctx, tracker, mgr, cfg.Sandbox.IdleTTL, nil)
	slog.Info("TTL worker started", "idle_ttl", cfg.Sandbox.IdleTTL)

	return executor.NewDockerExecutor(mgr, tracker, logger), mgr.Close, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
