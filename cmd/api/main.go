package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/splax/tasktracker/internal/app/migrate"
	httpx "github.com/splax/tasktracker/internal/http"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/repository/gormstore"
	"github.com/splax/tasktracker/internal/repository/memory"
	"github.com/splax/tasktracker/internal/repository/postgres"
	"github.com/splax/tasktracker/internal/service/auth"
	"github.com/splax/tasktracker/internal/service/category"
	"github.com/splax/tasktracker/internal/service/guard"
	"github.com/splax/tasktracker/internal/service/task"
	"github.com/splax/tasktracker/pkg/config"
	"github.com/splax/tasktracker/pkg/crypto"
	"github.com/splax/tasktracker/pkg/jwt"
	"github.com/splax/tasktracker/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	if repos.Close != nil {
		defer repos.Close()
	}

	codec := jwt.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	services := httpx.Services{
		Auth:       auth.New(repos.Identities, crypto.NewHasher(cfg.BcryptCost), codec, log),
		Guard:      guard.New(codec, repos.Identities),
		Tasks:      task.New(repos.Tasks, repos.Categories, repos.Identities, log),
		Categories: category.New(repos.Categories, log),
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, services, limiter, repos.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           withCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "storage", cfg.StorageDriver, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func openRepositories(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (repository.Set, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return repository.Set{}, fmt.Errorf("connect: %w", err)
		}
		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return repository.Set{}, fmt.Errorf("configure migrations: %w", err)
		}
		if err := runner.Ping(ctx); err != nil {
			pool.Close()
			return repository.Set{}, fmt.Errorf("ping: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return repository.Set{}, fmt.Errorf("migrate: %w", err)
		}
		return postgres.New(pool), nil
	case config.StorageSQLite:
		db, err := gormstore.Open(cfg.SQLitePath, log)
		if err != nil {
			return repository.Set{}, err
		}
		return gormstore.New(db), nil
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New().Set(), nil
	default:
		return repository.Set{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func withCORS(next http.Handler, origins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
