package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Store      StoreConfig
	S3         S3Config
	Log        LogConfig
	Extractor  ExtractorConfig
	Customs    CustomsConfig
	Submission SubmissionConfig
	CORS       CORSConfig
	Email      EmailConfig
}

// EmailConfig holds client notification settings.
type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	Region       string `mapstructure:"region"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	DashboardURL string `mapstructure:"dashboard_url"`
	// DefaultRecipient receives notices for sessions started without a
	// client email.
	DefaultRecipient string `mapstructure:"default_recipient"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ExtractorProviderConfig holds settings for a single extraction provider.
type ExtractorProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ExtractorConfig holds document extraction settings. The secondary provider
// is tried when the primary fails or is rate limited.
type ExtractorConfig struct {
	Primary   ExtractorProviderConfig `mapstructure:"primary"`
	Secondary ExtractorProviderConfig `mapstructure:"secondary"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (e *ExtractorConfig) SecondaryConfig() *ExtractorProviderConfig {
	if e.Secondary.Provider != "" {
		return &e.Secondary
	}
	return nil
}

// CustomsConfig holds the customs authority endpoint settings.
type CustomsConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	APIKey      string `mapstructure:"api_key"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// SubmissionConfig holds retry policy for submission pipeline steps.
type SubmissionConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`

	// Recovery resumes sessions left in the submitting phase by a crash.
	RecoveryInterval    time.Duration `mapstructure:"recovery_interval"`
	RecoveryStaleAfter  time.Duration `mapstructure:"recovery_stale_after"`
	RecoveryConcurrency int           `mapstructure:"recovery_concurrency"`
}

// Backoff returns the delay before retry number attempt (1-based), doubling
// from BaseBackoff and capped at MaxBackoff.
func (s *SubmissionConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 || s.BaseBackoff <= 0 {
		return 0
	}
	d := s.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if s.MaxBackoff > 0 && d >= s.MaxBackoff {
			return s.MaxBackoff
		}
	}
	if s.MaxBackoff > 0 && d > s.MaxBackoff {
		return s.MaxBackoff
	}
	return d
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, bolt or memory
	BoltPath string `mapstructure:"bolt_path"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the CUSTOMSDESK_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CUSTOMSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "customsdesk")
	v.SetDefault("db.password", "customsdesk_secret")
	v.SetDefault("db.name", "customsdesk_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Store defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.bolt_path", "customsdesk.db")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "customsdesk-documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 25)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "declarations@customsdesk.local")
	v.SetDefault("email.from_name", "Customs Desk")
	v.SetDefault("email.dashboard_url", "http://localhost:3000")
	v.SetDefault("email.default_recipient", "")

	// Extractor defaults
	v.SetDefault("extractor.primary.provider", "claude")
	v.SetDefault("extractor.primary.api_key", "")
	v.SetDefault("extractor.primary.default_model", "")
	v.SetDefault("extractor.primary.timeout_secs", 120)
	v.SetDefault("extractor.secondary.provider", "")
	v.SetDefault("extractor.secondary.api_key", "")
	v.SetDefault("extractor.secondary.default_model", "")
	v.SetDefault("extractor.secondary.timeout_secs", 120)

	// Customs authority defaults
	v.SetDefault("customs.endpoint", "http://localhost:9090/declarations")
	v.SetDefault("customs.api_key", "")
	v.SetDefault("customs.timeout_secs", 30)

	// Submission retry defaults
	v.SetDefault("submission.max_attempts", 3)
	v.SetDefault("submission.base_backoff", "1s")
	v.SetDefault("submission.max_backoff", "30s")
	v.SetDefault("submission.recovery_interval", "30s")
	v.SetDefault("submission.recovery_stale_after", "10m")
	v.SetDefault("submission.recovery_concurrency", 2)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "CUSTOMSDESK_SERVER_PORT",
		"server.read_timeout":               "CUSTOMSDESK_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "CUSTOMSDESK_SERVER_WRITE_TIMEOUT",
		"server.environment":                "CUSTOMSDESK_SERVER_ENVIRONMENT",
		"db.host":                           "CUSTOMSDESK_DB_HOST",
		"db.port":                           "CUSTOMSDESK_DB_PORT",
		"db.user":                           "CUSTOMSDESK_DB_USER",
		"db.password":                       "CUSTOMSDESK_DB_PASSWORD",
		"db.name":                           "CUSTOMSDESK_DB_NAME",
		"db.sslmode":                        "CUSTOMSDESK_DB_SSLMODE",
		"db.max_open":                       "CUSTOMSDESK_DB_MAX_OPEN",
		"db.max_idle":                       "CUSTOMSDESK_DB_MAX_IDLE",
		"store.driver":                      "CUSTOMSDESK_STORE_DRIVER",
		"store.bolt_path":                   "CUSTOMSDESK_STORE_BOLT_PATH",
		"s3.region":                         "CUSTOMSDESK_S3_REGION",
		"s3.bucket":                         "CUSTOMSDESK_S3_BUCKET",
		"s3.endpoint":                       "CUSTOMSDESK_S3_ENDPOINT",
		"s3.access_key":                     "CUSTOMSDESK_S3_ACCESS_KEY",
		"s3.secret_key":                     "CUSTOMSDESK_S3_SECRET_KEY",
		"s3.max_file_size_mb":               "CUSTOMSDESK_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":                 "CUSTOMSDESK_S3_PRESIGN_EXPIRY",
		"log.level":                         "CUSTOMSDESK_LOG_LEVEL",
		"log.format":                        "CUSTOMSDESK_LOG_FORMAT",
		"cors.allowed_origins":              "CUSTOMSDESK_CORS_ALLOWED_ORIGINS",
		"email.provider":                    "CUSTOMSDESK_EMAIL_PROVIDER",
		"email.region":                      "CUSTOMSDESK_EMAIL_REGION",
		"email.from_address":                "CUSTOMSDESK_EMAIL_FROM_ADDRESS",
		"email.from_name":                   "CUSTOMSDESK_EMAIL_FROM_NAME",
		"email.dashboard_url":               "CUSTOMSDESK_EMAIL_DASHBOARD_URL",
		"email.default_recipient":           "CUSTOMSDESK_EMAIL_DEFAULT_RECIPIENT",
		"extractor.primary.provider":        "CUSTOMSDESK_EXTRACTOR_PRIMARY_PROVIDER",
		"extractor.primary.api_key":         "CUSTOMSDESK_EXTRACTOR_PRIMARY_API_KEY",
		"extractor.primary.default_model":   "CUSTOMSDESK_EXTRACTOR_PRIMARY_DEFAULT_MODEL",
		"extractor.primary.timeout_secs":    "CUSTOMSDESK_EXTRACTOR_PRIMARY_TIMEOUT_SECS",
		"extractor.secondary.provider":      "CUSTOMSDESK_EXTRACTOR_SECONDARY_PROVIDER",
		"extractor.secondary.api_key":       "CUSTOMSDESK_EXTRACTOR_SECONDARY_API_KEY",
		"extractor.secondary.default_model": "CUSTOMSDESK_EXTRACTOR_SECONDARY_DEFAULT_MODEL",
		"extractor.secondary.timeout_secs":  "CUSTOMSDESK_EXTRACTOR_SECONDARY_TIMEOUT_SECS",
		"customs.endpoint":                  "CUSTOMSDESK_CUSTOMS_ENDPOINT",
		"customs.api_key":                   "CUSTOMSDESK_CUSTOMS_API_KEY",
		"customs.timeout_secs":              "CUSTOMSDESK_CUSTOMS_TIMEOUT_SECS",
		"submission.max_attempts":           "CUSTOMSDESK_SUBMISSION_MAX_ATTEMPTS",
		"submission.base_backoff":           "CUSTOMSDESK_SUBMISSION_BASE_BACKOFF",
		"submission.max_backoff":            "CUSTOMSDESK_SUBMISSION_MAX_BACKOFF",
		"submission.recovery_interval":      "CUSTOMSDESK_SUBMISSION_RECOVERY_INTERVAL",
		"submission.recovery_stale_after":   "CUSTOMSDESK_SUBMISSION_RECOVERY_STALE_AFTER",
		"submission.recovery_concurrency":   "CUSTOMSDESK_SUBMISSION_RECOVERY_CONCURRENCY",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set a PORT env var. Use it if CUSTOMSDESK_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CUSTOMSDESK_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Store = StoreConfig{
		Driver:   strings.ToLower(v.GetString("store.driver")),
		BoltPath: v.GetString("store.bolt_path"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Email = EmailConfig{
		Provider:         v.GetString("email.provider"),
		Region:           v.GetString("email.region"),
		FromAddress:      v.GetString("email.from_address"),
		FromName:         v.GetString("email.from_name"),
		DashboardURL:     v.GetString("email.dashboard_url"),
		DefaultRecipient: v.GetString("email.default_recipient"),
	}

	cfg.Extractor = ExtractorConfig{
		Primary: ExtractorProviderConfig{
			Provider:     v.GetString("extractor.primary.provider"),
			APIKey:       v.GetString("extractor.primary.api_key"),
			DefaultModel: v.GetString("extractor.primary.default_model"),
			TimeoutSecs:  v.GetInt("extractor.primary.timeout_secs"),
		},
		Secondary: ExtractorProviderConfig{
			Provider:     v.GetString("extractor.secondary.provider"),
			APIKey:       v.GetString("extractor.secondary.api_key"),
			DefaultModel: v.GetString("extractor.secondary.default_model"),
			TimeoutSecs:  v.GetInt("extractor.secondary.timeout_secs"),
		},
	}

	cfg.Customs = CustomsConfig{
		Endpoint:    v.GetString("customs.endpoint"),
		APIKey:      v.GetString("customs.api_key"),
		TimeoutSecs: v.GetInt("customs.timeout_secs"),
	}

	cfg.Submission = SubmissionConfig{
		MaxAttempts: v.GetInt("submission.max_attempts"),
		BaseBackoff: v.GetDuration("submission.base_backoff"),
		MaxBackoff:  v.GetDuration("submission.max_backoff"),

		RecoveryInterval:    v.GetDuration("submission.recovery_interval"),
		RecoveryStaleAfter:  v.GetDuration("submission.recovery_stale_after"),
		RecoveryConcurrency: v.GetInt("submission.recovery_concurrency"),
	}
	if cfg.Submission.MaxAttempts < 1 {
		return nil, fmt.Errorf("submission.max_attempts must be at least 1, got %d", cfg.Submission.MaxAttempts)
	}

	switch cfg.Store.Driver {
	case "postgres", "bolt", "memory":
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}

	return cfg, nil
}
