package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseType selects the SQL dialect adapter the store package wires up.
type DatabaseType string

const (
	DatabaseSQLite     DatabaseType = "sqlite"
	DatabasePostgreSQL DatabaseType = "postgresql"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Persistent storage
	DatabaseURL  string
	DatabaseType DatabaseType

	// Analytics-grade mirror store (optional: empty disables it)
	ClickHouseURL string

	// Cache / ephemeral state
	RedisURL string

	// Object storage (Supabase Storage, S3-compatible)
	ObjectStoreEndpoint  string
	ObjectStoreBucket    string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreRegion    string
	ObjectStoreLocalDir  string

	// Chat platform
	BotToken string

	// Write-through data layer
	WriteQueueSize int

	// Replay parsing process pool
	WorkerProcesses  int
	ReplayWorkerSize int

	// Matchmaker scheduling loop
	WavePeriod time.Duration

	// Leaderboard refresh cadence
	LeaderboardRefreshInterval time.Duration

	// Match lifecycle
	MatchTimeout time.Duration

	// View idle timeout (external collaborator boundary, carried for config parity)
	GlobalTimeout time.Duration

	// Reference catalogs (races, maps, regions, countries, ping table)
	ReferenceDataDir string

	// Display-name validation: when true, accepts the broader Unicode
	// letter set instead of the ASCII-only charset.
	InternationalNames bool
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		ClickHouseURL: getEnv("CLICKHOUSE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),

		ObjectStoreEndpoint:  getEnv("SUPABASE_ENDPOINT", ""),
		ObjectStoreBucket:    getEnv("SUPABASE_BUCKET", "replays"),
		ObjectStoreAccessKey: getEnv("SUPABASE_ACCESS_KEY", ""),
		ObjectStoreSecretKey: getEnv("SUPABASE_SECRET_KEY", ""),
		ObjectStoreRegion:    getEnv("SUPABASE_REGION", "us-east-1"),
		ObjectStoreLocalDir:  getEnv("OBJECT_STORE_LOCAL_DIR", "./data/replays"),

		WriteQueueSize: getEnvInt("WRITE_QUEUE_SIZE", 10000),

		WorkerProcesses:  getEnvInt("WORKER_PROCESSES", 4),
		ReplayWorkerSize: getEnvInt("REPLAY_WORKER_COUNT", 4),

		WavePeriod:                 getEnvDuration("WAVE_PERIOD", 45*time.Second),
		LeaderboardRefreshInterval: getEnvDuration("LEADERBOARD_REFRESH_INTERVAL", 60*time.Second),
		MatchTimeout:               getEnvDuration("MATCH_TIMEOUT", 60*time.Minute),
		GlobalTimeout:              getEnvDuration("GLOBAL_TIMEOUT", 15*time.Minute),

		ReferenceDataDir: getEnv("REFERENCE_DATA_DIR", "./data"),

		InternationalNames: getEnvBool("INTERNATIONAL_NAMES", false),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	rawOrigins := strings.Split(origins, ",")
	for _, o := range rawOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.DatabaseURL, err = getEnvRequired("DATABASE_URL"); err != nil {
		return nil, err
	}
	dbType, err := getEnvRequired("DATABASE_TYPE")
	if err != nil {
		return nil, err
	}
	switch DatabaseType(dbType) {
	case DatabaseSQLite, DatabasePostgreSQL:
		cfg.DatabaseType = DatabaseType(dbType)
	default:
		return nil, fmt.Errorf("invalid DATABASE_TYPE %q: must be sqlite or postgresql", dbType)
	}
	if cfg.BotToken, err = getEnvRequired("BOT_TOKEN"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
