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
	AppName   string
	BaseURL   string
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Activity  ActivityConfig
	RateLimit RateLimitConfig
	Recovery  RecoveryConfig
	Mail      MailConfig
	SMS       SMSConfig
	Backups   BackupsConfig
	Reports   ReportsConfig
	Dashboard DashboardConfig
	I18n      I18nConfig
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

// SessionConfig controls the browser session cookie and its server-side state.
type SessionConfig struct {
	CookieName    string
	TTL           time.Duration
	Secure        bool
	TouchInterval time.Duration
	SweepInterval time.Duration
	// Store selects "redis" or "memory".
	Store string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ActivityConfig sets how long activity entries are kept. Zero keeps them forever.
type ActivityConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig bounds attempts per client IP for login, registration and recovery.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// RecoveryConfig tunes the account recovery wizard.
type RecoveryConfig struct {
	RequestTTL      time.Duration
	MaxAttempts     int
	CodeLength      int
	PasswordHistory int
	SweepInterval   time.Duration
}

// MailConfig selects the outbound email provider.
type MailConfig struct {
	Provider       string
	SendGridAPIKey string
	FromName       string
	FromAddress    string
}

type SMSConfig struct {
	Provider string
}

// BackupsConfig configures the backup manager job queue and storage.
type BackupsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
}

type ReportsConfig struct {
	StorageDir string
	Retention  time.Duration
}

type DashboardConfig struct {
	CacheTTL time.Duration
}

type I18nConfig struct {
	DefaultLanguage string
	Supported       []string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.AppName = v.GetString("APP_NAME")
	cfg.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")
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

	cfg.Session = SessionConfig{
		CookieName:    v.GetString("SESSION_COOKIE_NAME"),
		TTL:           parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
		Secure:        v.GetBool("SESSION_SECURE"),
		TouchInterval: parseDuration(v.GetString("SESSION_TOUCH_INTERVAL"), time.Minute),
		SweepInterval: parseDuration(v.GetString("SESSION_SWEEP_INTERVAL"), time.Hour),
		Store:         v.GetString("SESSION_STORE"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Activity = ActivityConfig{
		Retention:     parseDuration(v.GetString("ACTIVITY_RETENTION"), 0),
		SweepInterval: parseDuration(v.GetString("ACTIVITY_SWEEP_INTERVAL"), 24*time.Hour),
	}

	cfg.RateLimit = RateLimitConfig{
		MaxAttempts: v.GetInt("RATE_LIMIT_MAX_ATTEMPTS"),
		Window:      parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Hour),
	}

	cfg.Recovery = RecoveryConfig{
		RequestTTL:      parseDuration(v.GetString("RECOVERY_REQUEST_TTL"), time.Hour),
		MaxAttempts:     v.GetInt("RECOVERY_MAX_ATTEMPTS"),
		CodeLength:      v.GetInt("RECOVERY_CODE_LENGTH"),
		PasswordHistory: v.GetInt("PASSWORD_HISTORY_DEPTH"),
		SweepInterval:   parseDuration(v.GetString("RECOVERY_SWEEP_INTERVAL"), 15*time.Minute),
	}

	cfg.Mail = MailConfig{
		Provider:       v.GetString("MAIL_PROVIDER"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
	}

	cfg.SMS = SMSConfig{Provider: v.GetString("SMS_PROVIDER")}

	cfg.Backups = BackupsConfig{
		StorageDir:        v.GetString("BACKUPS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("BACKUPS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("BACKUPS_SIGNED_URL_TTL"), 30*time.Minute),
		WorkerConcurrency: v.GetInt("BACKUPS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("BACKUPS_WORKER_RETRIES"),
		CleanupInterval:   parseDuration(v.GetString("BACKUPS_CLEANUP_INTERVAL"), 6*time.Hour),
	}

	cfg.Reports = ReportsConfig{
		StorageDir: v.GetString("REPORTS_STORAGE_DIR"),
		Retention:  parseDuration(v.GetString("REPORTS_RETENTION"), 24*time.Hour),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.I18n = I18nConfig{
		DefaultLanguage: v.GetString("DEFAULT_LANGUAGE"),
		Supported:       splitAndTrim(v.GetString("SUPPORTED_LANGUAGES")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_NAME", "SMA Portal")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_COOKIE_NAME", "sma_session")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_SECURE", false)
	v.SetDefault("SESSION_TOUCH_INTERVAL", "1m")
	v.SetDefault("SESSION_STORE", "redis")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_ISSUER", "sma-portal")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1h")

	v.SetDefault("RECOVERY_REQUEST_TTL", "1h")
	v.SetDefault("RECOVERY_MAX_ATTEMPTS", 5)
	v.SetDefault("RECOVERY_CODE_LENGTH", 6)
	v.SetDefault("PASSWORD_HISTORY_DEPTH", 5)

	v.SetDefault("MAIL_PROVIDER", "log")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "SMA Portal")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@sma.local")
	v.SetDefault("SMS_PROVIDER", "log")

	v.SetDefault("BACKUPS_STORAGE_DIR", "./backups")
	v.SetDefault("BACKUPS_SIGNED_URL_SECRET", "dev_backups_secret")
	v.SetDefault("BACKUPS_SIGNED_URL_TTL", "30m")
	v.SetDefault("BACKUPS_WORKER_CONCURRENCY", 1)
	v.SetDefault("BACKUPS_WORKER_RETRIES", 3)
	v.SetDefault("BACKUPS_CLEANUP_INTERVAL", "6h")
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("DEFAULT_LANGUAGE", "en")
	v.SetDefault("SUPPORTED_LANGUAGES", "en,id,fr")
}

// isMissingFile reports whether viper failed because .env does not exist.
// SetConfigFile bypasses viper's ConfigFileNotFoundError path.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
