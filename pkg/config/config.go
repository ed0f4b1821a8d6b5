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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Features  FeatureConfig
	Scheduler SchedulerConfig
	Publisher PublisherConfig
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

// JWTConfig holds the shared secret used to verify access tokens issued by the auth service.
type JWTConfig struct {
	Secret  string
	Enabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeatureConfig toggles optional collaborators.
type FeatureConfig struct {
	Persistence  bool
	Cache        bool
	LegacyRoutes bool
}

// SchedulerConfig tunes the timetable engine defaults. Requests may override the grid.
type SchedulerConfig struct {
	Days             []string
	Periods          []string
	LunchPeriod      int
	MaxYear          int
	BacktrackFactor  int
	TimeBudget       time.Duration
	MaxSubjectPerDay int
	LanguageHours    int
	LabBatches       int
	LabLength        int
	MaxConcurrent    int
	CacheTTL         time.Duration
}

// PublisherConfig sizes the worker pool persisting generated timetables.
type PublisherConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
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
		Secret:  v.GetString("JWT_SECRET"),
		Enabled: v.GetBool("ENABLE_AUTH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Features = FeatureConfig{
		Persistence:  v.GetBool("ENABLE_PERSISTENCE"),
		Cache:        v.GetBool("ENABLE_CACHE"),
		LegacyRoutes: v.GetBool("ENABLE_LEGACY_ROUTES"),
	}

	cfg.Scheduler = SchedulerConfig{
		Days:             splitAndTrim(v.GetString("SCHEDULER_DAYS")),
		Periods:          splitAndTrim(v.GetString("SCHEDULER_PERIODS")),
		LunchPeriod:      v.GetInt("SCHEDULER_LUNCH_PERIOD"),
		MaxYear:          v.GetInt("SCHEDULER_MAX_YEAR"),
		BacktrackFactor:  v.GetInt("SCHEDULER_BACKTRACK_FACTOR"),
		TimeBudget:       parseDuration(v.GetString("SCHEDULER_TIME_BUDGET"), 10*time.Second),
		MaxSubjectPerDay: v.GetInt("SCHEDULER_MAX_SUBJECT_PER_DAY"),
		LanguageHours:    v.GetInt("SCHEDULER_LANGUAGE_HOURS"),
		LabBatches:       v.GetInt("SCHEDULER_LAB_BATCHES"),
		LabLength:        v.GetInt("SCHEDULER_LAB_LENGTH"),
		MaxConcurrent:    v.GetInt("SCHEDULER_MAX_CONCURRENT"),
		CacheTTL:         parseDuration(v.GetString("SCHEDULER_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Publisher = PublisherConfig{
		Workers:    v.GetInt("PUBLISH_WORKERS"),
		Retries:    v.GetInt("PUBLISH_RETRIES"),
		RetryDelay: parseDuration(v.GetString("PUBLISH_RETRY_DELAY"), 2*time.Second),
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
	v.SetDefault("DB_NAME", "college_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("ENABLE_AUTH", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_PERSISTENCE", false)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("ENABLE_LEGACY_ROUTES", true)

	v.SetDefault("SCHEDULER_DAYS", "MONDAY,TUESDAY,WEDNESDAY,THURSDAY,FRIDAY,SATURDAY")
	v.SetDefault("SCHEDULER_PERIODS", "9:00-10:00,10:00-11:00,11:00-12:00,12:00-1:00,1:00-2:00,2:00-3:00,3:00-4:00,4:00-5:00")
	v.SetDefault("SCHEDULER_LUNCH_PERIOD", 4)
	v.SetDefault("SCHEDULER_MAX_YEAR", 4)
	v.SetDefault("SCHEDULER_BACKTRACK_FACTOR", 64)
	v.SetDefault("SCHEDULER_TIME_BUDGET", "10s")
	v.SetDefault("SCHEDULER_MAX_SUBJECT_PER_DAY", 2)
	v.SetDefault("SCHEDULER_LANGUAGE_HOURS", 2)
	v.SetDefault("SCHEDULER_LAB_BATCHES", 2)
	v.SetDefault("SCHEDULER_LAB_LENGTH", 3)
	v.SetDefault("SCHEDULER_MAX_CONCURRENT", 4)
	v.SetDefault("SCHEDULER_CACHE_TTL", "30m")

	v.SetDefault("PUBLISH_WORKERS", 2)
	v.SetDefault("PUBLISH_RETRIES", 3)
	v.SetDefault("PUBLISH_RETRY_DELAY", "2s")
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
