package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage drivers understood by LoadAPIConfig.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

const minProductionSecretLen = 32

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	StorageDriver      string
	DatabaseURL        string
	SQLitePath         string
	MigrationsDir      string
	JWTSecret          string
	TokenTTL           time.Duration
	BcryptCost         int
	CORSOrigins        []string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":8080"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		StorageDriver:      strings.ToLower(GetString("STORAGE_DRIVER", StoragePostgres)),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://tasks:tasks@db:5432/tasks?sslmode=disable"),
		SQLitePath:         GetString("SQLITE_PATH", "data/tasks.db"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", ""),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		TokenTTL:           GetHours("TOKEN_TTL_HOURS", 24),
		BcryptCost:         GetInt("BCRYPT_COST", 10),
		CORSOrigins:        GetList("CORS_ORIGINS", []string{"http://localhost:4200"}),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// Validate rejects configurations the API must not start with.
func (c APIConfig) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLen)
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c APIConfig) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
