package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultGridDays and DefaultGridRows describe the weekly grid used when GRID_DAYS/GRID_ROWS are unset.
const (
	DefaultGridDays = "Monday,Tuesday,Wednesday,Thursday,Friday"
	DefaultGridRows = "9:00 - 10:00,10:00 - 11:00,11:00 - 12:00,12:00 - 1:00=Lunch Break,1:00 - 2:00,2:00 - 3:00,3:00 - 4:00,4:00 - 5:00"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Catalog   CatalogConfig
	Scheduler SchedulerConfig
	Import    ImportConfig
	Export    ExportConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig tunes the subject/teacher catalog cache and the background teacher fetch.
type CatalogConfig struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	FetchWorkers  int
	FetchRetries  int
	FetchBuffer   int
	FetchRetryGap time.Duration
}

// SchedulerConfig shapes the routine grid and the conflict policy.
type SchedulerConfig struct {
	EnforceAvailability bool
	Days                []string
	Rows                []string
}

// ImportConfig limits spreadsheet uploads.
type ImportConfig struct {
	MaxFileSizeBytes int64
}

// ExportConfig controls rendered routine documents and their download links.
type ExportConfig struct {
	Title         string
	Dir           string
	SigningSecret string
	LinkTTL       time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled:  v.GetBool("CATALOG_CACHE_ENABLED"),
		CacheTTL:      parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
		FetchTimeout:  parseDuration(v.GetString("TEACHER_FETCH_TIMEOUT"), 5*time.Second),
		FetchWorkers:  v.GetInt("TEACHER_FETCH_WORKERS"),
		FetchRetries:  v.GetInt("TEACHER_FETCH_RETRIES"),
		FetchBuffer:   v.GetInt("TEACHER_FETCH_BUFFER"),
		FetchRetryGap: parseDuration(v.GetString("TEACHER_FETCH_RETRY_DELAY"), 500*time.Millisecond),
	}

	cfg.Scheduler = SchedulerConfig{
		EnforceAvailability: v.GetBool("SCHEDULER_ENFORCE_AVAILABILITY"),
		Days:                splitAndTrim(v.GetString("GRID_DAYS")),
		Rows:                splitAndTrim(v.GetString("GRID_ROWS")),
	}

	maxImportSize := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxImportSize <= 0 {
		maxImportSize = 5 * 1024 * 1024
	}
	cfg.Import = ImportConfig{MaxFileSizeBytes: maxImportSize}

	cfg.Export = ExportConfig{
		Title:         v.GetString("EXPORT_TITLE"),
		Dir:           v.GetString("EXPORT_DIR"),
		SigningSecret: v.GetString("EXPORT_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("EXPORT_LINK_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "routine_builder")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CATALOG_CACHE_ENABLED", true)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")
	v.SetDefault("TEACHER_FETCH_TIMEOUT", "5s")
	v.SetDefault("TEACHER_FETCH_WORKERS", 2)
	v.SetDefault("TEACHER_FETCH_RETRIES", 2)
	v.SetDefault("TEACHER_FETCH_BUFFER", 64)
	v.SetDefault("TEACHER_FETCH_RETRY_DELAY", "500ms")

	v.SetDefault("SCHEDULER_ENFORCE_AVAILABILITY", false)
	v.SetDefault("GRID_DAYS", DefaultGridDays)
	v.SetDefault("GRID_ROWS", DefaultGridRows)

	v.SetDefault("IMPORT_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("EXPORT_TITLE", "Weekly Schedule")
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNING_SECRET", "")
	v.SetDefault("EXPORT_LINK_TTL", "24h")
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
