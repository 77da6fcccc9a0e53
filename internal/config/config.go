package config

import (
	"context"
	"os"
	"strings"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the task service.
type Config struct {
	// Mode is "prod" (default) or "testing". Testing mode disables the
	// sign-in rate limiter.
	Mode string

	// Database
	DBURL  string
	DBName string

	// Datastore backend type
	DatastoreType string // "mongo"

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Cache backend type
	CacheType string // "none", "local", or "redis"

	// Redis
	RedisURL string

	// User cache TTL.
	CacheTTL time.Duration

	// Upload store type
	UploadType string // "local", "s3", or "gridfs"

	// Local upload directory.
	UploadsDir string

	// Maximum accepted upload size in bytes.
	UploadMaxSize int64

	// S3
	S3Bucket       string
	S3Prefix       string
	S3UsePathStyle bool

	// Assistant type
	AssistantType string // "disabled", "openai", or "gemini"

	AssistantAPIKey  string
	AssistantModel   string
	AssistantBaseURL string
	// AssistantTimeout bounds a single completion call.
	AssistantTimeout time.Duration

	// Auth
	JWTSecret string
	// TokenTTL of zero issues tokens without an expiry.
	TokenTTL time.Duration
	// Sign-in/sign-up requests per second per client IP.
	AuthRateLimit float64
	AuthRateBurst int

	// Scheduler
	DueReminderSchedule string
	DueReminderWindow   time.Duration
	// TrashRetention of zero disables automatic purging of the trash.
	TrashRetention         time.Duration
	TrashRetentionSchedule string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	// Defaults to "service=taskmate".
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port (or TASKMATE_MANAGEMENT_PORT)
	// was explicitly provided. When false, management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for management endpoints (/health, /ready, /metrics).
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// Temporary file directory. Empty uses platform default temp directory.
	TempDir string

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DBName:                  "taskmate",
		DatastoreType:           "mongo",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		CacheType:               "none",
		CacheTTL:                10 * time.Minute,
		UploadType:              "local",
		UploadsDir:              "uploads",
		UploadMaxSize:           5 * 1024 * 1024, // 5 MB
		AssistantType:           "disabled",
		AssistantModel:          "openai/gpt-3.5-turbo",
		AssistantBaseURL:        "https://openrouter.ai/api/v1",
		AssistantTimeout:        60 * time.Second,
		AuthRateLimit:           5,
		AuthRateBurst:           10,
		DueReminderSchedule:     "@every 15m",
		DueReminderWindow:       24 * time.Hour,
		TrashRetentionSchedule:  "@daily",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:  10 * 1024 * 1024, // 2x upload max-size
		DrainTimeout: 30,
	}
}

// ResolvedTempDir returns the configured temp directory or the platform default.
func (c *Config) ResolvedTempDir() string {
	if c == nil {
		return os.TempDir()
	}
	if dir := strings.TrimSpace(c.TempDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Testing reports whether the service runs in testing mode.
func (c *Config) Testing() bool {
	return c != nil && c.Mode == ModeTesting
}
