// Package app wires configuration, storage, and HTTP routing into a
// runnable panel backend.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"devdeck/internal/auth"
	"devdeck/internal/db"
	"devdeck/internal/maintenance"
	"devdeck/internal/observability"
	"devdeck/internal/project"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	workspaceRoot, err := mustEnv("WORKSPACE_ROOT")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development"), os.Getenv("APP_RELEASE")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	userStore := auth.NewRepository(database)
	guard := auth.NewAccountGuard(userStore)
	tracker := auth.NewFailureTracker(
		userStore,
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 30),
	)
	authService := auth.NewService(userStore, guard, tracker, logger, jwtSecret)
	authService.WithAccessTTL(envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 720))
	authHandler := auth.NewHandler(authService)

	// Per-IP window state is in-process memory: it resets on restart
	// and is not shared across instances. Acceptable for a single-node
	// panel; a multi-node deployment needs a shared HitStore. The
	// client key honors X-Forwarded-For, so when the panel is exposed
	// it must sit behind a reverse proxy that overwrites that header.
	loginLimiter := auth.NewLoginRateLimiter(
		auth.NewMemoryHitStore(),
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 5),
		envMinutesOrDefault("LOGIN_RATE_LIMIT_WINDOW_MINUTES", 15),
	)

	projectRepo := project.NewRepository(database)
	projectHandler := project.NewHandler(projectRepo, workspaceRoot)

	cleanupHandler := maintenance.NewCleanupHandler(
		userStore,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("LOGIN_FAILURE_RETENTION_DAYS", 30),
		envIntOrDefault("LOCKOUT_CLEANUP_BATCH_SIZE", 500),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/status", authHandler.Status)
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /auth/user", auth.Middleware(jwtSecret, http.HandlerFunc(authHandler.CurrentUser)))
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.Handle("GET /projects", auth.Middleware(jwtSecret, http.HandlerFunc(projectHandler.List)))
	mux.Handle("POST /projects", auth.Middleware(jwtSecret, http.HandlerFunc(projectHandler.Create)))
	mux.Handle("DELETE /projects/{id}", auth.Middleware(jwtSecret, http.HandlerFunc(projectHandler.Delete)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
