package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Import      ImportConfig
	Replication ReplicationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ImportConfig tunes the bulk import pipeline.
type ImportConfig struct {
	// SliceSize is the number of rows normalized per scheduler slice.
	SliceSize int
	// ScoreScale selects the source grading scale: "percent", "1-7" or "1-10".
	ScoreScale string
	// AsyncRuns processes uploads on the background queue instead of inline.
	AsyncRuns bool
	// WorkerConcurrency bounds concurrent queued import runs.
	WorkerConcurrency int
	// WorkerRetries is the number of attempts for a queued run.
	WorkerRetries int
	// RunLockTTL caps how long a per-year import lock may be held.
	RunLockTTL time.Duration
	// RunRetention controls how long finished run summaries stay queryable.
	RunRetention time.Duration
	// MaxFileSizeBytes rejects uploads larger than this before parsing.
	MaxFileSizeBytes int64
}

// ReplicationConfig selects which remote backends receive imported records.
type ReplicationConfig struct {
	SQLEnabled   bool
	SQLBatchSize int
	DocEnabled   bool
	DocBatchSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 20 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		SliceSize:         v.GetInt("IMPORT_SLICE_SIZE"),
		ScoreScale:        v.GetString("IMPORT_SCORE_SCALE"),
		AsyncRuns:         v.GetBool("IMPORT_ASYNC_RUNS"),
		WorkerConcurrency: v.GetInt("IMPORT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("IMPORT_WORKER_RETRIES"),
		RunLockTTL:        parseDuration(v.GetString("IMPORT_RUN_LOCK_TTL"), 15*time.Minute),
		RunRetention:      parseDuration(v.GetString("IMPORT_RUN_RETENTION"), 24*time.Hour),
		MaxFileSizeBytes:  maxUploadSize,
	}

	cfg.Replication = ReplicationConfig{
		SQLEnabled:   v.GetBool("REPLICATION_SQL_ENABLED"),
		SQLBatchSize: v.GetInt("REPLICATION_SQL_BATCH_SIZE"),
		DocEnabled:   v.GetBool("REPLICATION_DOC_ENABLED"),
		DocBatchSize: v.GetInt("REPLICATION_DOC_BATCH_SIZE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smart_student_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("IMPORT_SLICE_SIZE", 500)
	v.SetDefault("IMPORT_SCORE_SCALE", "percent")
	v.SetDefault("IMPORT_ASYNC_RUNS", true)
	v.SetDefault("IMPORT_WORKER_CONCURRENCY", 1)
	v.SetDefault("IMPORT_WORKER_RETRIES", 1)
	v.SetDefault("IMPORT_RUN_LOCK_TTL", "15m")
	v.SetDefault("IMPORT_RUN_RETENTION", "24h")
	v.SetDefault("IMPORT_MAX_FILE_SIZE", 20*1024*1024)

	v.SetDefault("REPLICATION_SQL_ENABLED", true)
	v.SetDefault("REPLICATION_SQL_BATCH_SIZE", 500)
	v.SetDefault("REPLICATION_DOC_ENABLED", true)
	v.SetDefault("REPLICATION_DOC_BATCH_SIZE", 4000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
