package serve

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/chirino/taskmate/internal/plugin/assistant/disabled"
	_ "github.com/chirino/taskmate/internal/plugin/assistant/gemini"
	_ "github.com/chirino/taskmate/internal/plugin/assistant/openai"
	_ "github.com/chirino/taskmate/internal/plugin/cache/local"
	_ "github.com/chirino/taskmate/internal/plugin/cache/noop"
	_ "github.com/chirino/taskmate/internal/plugin/cache/redis"
	_ "github.com/chirino/taskmate/internal/plugin/route/system"
	_ "github.com/chirino/taskmate/internal/plugin/store/mongo"
	_ "github.com/chirino/taskmate/internal/plugin/upload/gridfs"
	_ "github.com/chirino/taskmate/internal/plugin/upload/local"
	_ "github.com/chirino/taskmate/internal/plugin/upload/s3store"
)

// multipartSlack covers the form fields and boundaries around an upload.
const multipartSlack = 1 << 20

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var readHeaderTimeoutSecs int = 5
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the task service HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.ManagementListener.ReadHeaderTimeout = cfg.Listener.ReadHeaderTimeout
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs *int) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "mode",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_MODE"),
			Destination: &cfg.Mode,
			Value:       cfg.Mode,
			Usage:       "Run mode (prod|testing); testing disables auth rate limiting",
		},
		&cli.StringFlag{
			Name:        "tls-cert-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_TLS_CERT_FILE"),
			Destination: &cfg.Listener.TLSCertFile,
			Usage:       "TLS certificate file; a self-signed certificate is generated when unset",
		},
		&cli.StringFlag{
			Name:        "tls-key-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_TLS_KEY_FILE"),
			Destination: &cfg.Listener.TLSKeyFile,
			Usage:       "TLS private key file",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.IntFlag{
			Name:        "drain-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_DRAIN_TIMEOUT_SECONDS"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Seconds to wait for in-flight requests on shutdown",
		},
		&cli.Int64Flag{
			Name:        "max-body-size",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_MAX_BODY_SIZE"),
			Destination: &cfg.MaxBodySize,
			Value:       cfg.MaxBodySize,
			Usage:       "Maximum request body size in bytes for non-upload requests",
		},
		&cli.StringFlag{
			Name:        "temp-dir",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_TEMP_DIR"),
			Destination: &cfg.TempDir,
			Usage:       "Directory for temporary files; defaults to OS temp directory",
		},
		&cli.BoolFlag{
			Name:        "management-access-log",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_MANAGEMENT_ACCESS_LOG"),
			Destination: &cfg.ManagementAccessLog,
			Usage:       "Enable HTTP access logging for management endpoints (/health, /ready, /metrics)",
		},
		&cli.BoolFlag{
			Name:        "cors",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_CORS_ENABLED"),
			Destination: &cfg.CORSEnabled,
			Usage:       "Enable CORS headers for browser clients",
		},
		&cli.StringFlag{
			Name:        "cors-origins",
			Category:    "Server:",
			Sources:     cli.EnvVars("TASKMATE_CORS_ORIGINS"),
			Destination: &cfg.CORSOrigins,
			Usage:       "Comma-separated allowed origins; empty allows any origin",
		},

		// ── Network Listener ──────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_PORT", "PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP server port",
		},
		&cli.BoolFlag{
			Name:        "plain-text",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_PLAIN_TEXT"),
			Destination: &cfg.Listener.EnablePlainText,
			Value:       cfg.Listener.EnablePlainText,
			Usage:       "Enable plaintext HTTP/1.1 + h2c",
		},
		&cli.BoolFlag{
			Name:        "tls",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_TLS"),
			Destination: &cfg.Listener.EnableTLS,
			Value:       cfg.Listener.EnableTLS,
			Usage:       "Enable TLS HTTP/1.1 + HTTP/2",
		},

		// ── Management Network Listener ───────────────────────────
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementListener.Port,
			Value:       cfg.ManagementListener.Port,
			Usage:       "Dedicated port for health and metrics (0 = OS-assigned random port); when unset, served on the main port",
		},
		&cli.BoolFlag{
			Name:        "management-plain-text",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_MANAGEMENT_PLAIN_TEXT"),
			Destination: &cfg.ManagementListener.EnablePlainText,
			Value:       cfg.ManagementListener.EnablePlainText,
			Usage:       "Enable plaintext HTTP for management server",
		},
		&cli.BoolFlag{
			Name:        "management-tls",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("TASKMATE_MANAGEMENT_TLS"),
			Destination: &cfg.ManagementListener.EnableTLS,
			Value:       cfg.ManagementListener.EnableTLS,
			Usage:       "Enable TLS for management server",
		},

		// ── Database ───────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Backend store (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_URL", "MONGO_URI"),
			Destination: &cfg.DBURL,
			Usage:       "Database connection URL",
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "db-name",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_NAME"),
			Destination: &cfg.DBName,
			Value:       cfg.DBName,
			Usage:       "Database name",
		},
		&cli.BoolFlag{
			Name:        "db-migrate-at-start",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Create collections and indexes on startup",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum number of open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("TASKMATE_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Minimum number of pooled database connections",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TASKMATE_CACHE_KIND"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "User cache backend (" + strings.Join(registrycache.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TASKMATE_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL",
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TASKMATE_CACHE_TTL"),
			Destination: &cfg.CacheTTL,
			Value:       cfg.CacheTTL,
			Usage:       "How long authenticated users stay cached",
		},

		// ── Uploads ───────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "uploads-kind",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_KIND"),
			Destination: &cfg.UploadType,
			Value:       cfg.UploadType,
			Usage:       "Upload store (" + strings.Join(registryupload.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "uploads-dir",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_DIR"),
			Destination: &cfg.UploadsDir,
			Value:       cfg.UploadsDir,
			Usage:       "Directory for the local upload store",
		},
		&cli.Int64Flag{
			Name:        "uploads-max-size",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_MAX_SIZE"),
			Destination: &cfg.UploadMaxSize,
			Value:       cfg.UploadMaxSize,
			Usage:       "Maximum accepted upload size in bytes; 0 disables the limit",
		},
		&cli.StringFlag{
			Name:        "uploads-s3-bucket",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_S3_BUCKET"),
			Destination: &cfg.S3Bucket,
			Usage:       "S3 bucket for uploads",
		},
		&cli.StringFlag{
			Name:        "uploads-s3-prefix",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_S3_PREFIX"),
			Destination: &cfg.S3Prefix,
			Usage:       "Key prefix for uploads in the S3 bucket",
		},
		&cli.BoolFlag{
			Name:        "uploads-s3-use-path-style",
			Category:    "Uploads:",
			Sources:     cli.EnvVars("TASKMATE_UPLOADS_S3_USE_PATH_STYLE"),
			Destination: &cfg.S3UsePathStyle,
			Usage:       "Use path-style S3 addressing (required for LocalStack/MinIO)",
		},

		// ── Assistant ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "assistant-kind",
			Category:    "Assistant:",
			Sources:     cli.EnvVars("TASKMATE_ASSISTANT_KIND"),
			Destination: &cfg.AssistantType,
			Value:       cfg.AssistantType,
			Usage:       "Chatbot backend (" + strings.Join(registryassistant.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "assistant-api-key",
			Category:    "Assistant:",
			Sources:     cli.EnvVars("TASKMATE_ASSISTANT_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.AssistantAPIKey,
			Usage:       "API key for the chatbot backend",
		},
		&cli.StringFlag{
			Name:        "assistant-model",
			Category:    "Assistant:",
			Sources:     cli.EnvVars("TASKMATE_ASSISTANT_MODEL"),
			Destination: &cfg.AssistantModel,
			Value:       cfg.AssistantModel,
			Usage:       "Model used for chatbot replies",
		},
		&cli.StringFlag{
			Name:        "assistant-base-url",
			Category:    "Assistant:",
			Sources:     cli.EnvVars("TASKMATE_ASSISTANT_BASE_URL"),
			Destination: &cfg.AssistantBaseURL,
			Value:       cfg.AssistantBaseURL,
			Usage:       "Base URL of the OpenAI-compatible chat completions API",
		},
		&cli.DurationFlag{
			Name:        "assistant-timeout",
			Category:    "Assistant:",
			Sources:     cli.EnvVars("TASKMATE_ASSISTANT_TIMEOUT"),
			Destination: &cfg.AssistantTimeout,
			Value:       cfg.AssistantTimeout,
			Usage:       "Timeout for a single chatbot completion",
		},

		// ── Authentication ────────────────────────────────────────
		&cli.StringFlag{
			Name:        "jwt-secret",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("TASKMATE_JWT_SECRET", "JWT_SECRET"),
			Destination: &cfg.JWTSecret,
			Usage:       "HMAC secret used to sign access tokens",
			Required:    true,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("TASKMATE_TOKEN_TTL"),
			Destination: &cfg.TokenTTL,
			Value:       cfg.TokenTTL,
			Usage:       "Access token lifetime; 0 issues tokens without expiry",
		},
		&cli.FloatFlag{
			Name:        "auth-rate-limit",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("TASKMATE_AUTH_RATE_LIMIT"),
			Destination: &cfg.AuthRateLimit,
			Value:       cfg.AuthRateLimit,
			Usage:       "Sign-in and sign-up requests per second per client IP; 0 disables limiting",
		},
		&cli.IntFlag{
			Name:        "auth-rate-burst",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("TASKMATE_AUTH_RATE_BURST"),
			Destination: &cfg.AuthRateBurst,
			Value:       cfg.AuthRateBurst,
			Usage:       "Burst size for the auth rate limiter",
		},

		// ── Scheduler ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "due-reminder-schedule",
			Category:    "Scheduler:",
			Sources:     cli.EnvVars("TASKMATE_DUE_REMINDER_SCHEDULE"),
			Destination: &cfg.DueReminderSchedule,
			Value:       cfg.DueReminderSchedule,
			Usage:       "Cron spec for due-date reminders; empty disables them",
		},
		&cli.DurationFlag{
			Name:        "due-reminder-window",
			Category:    "Scheduler:",
			Sources:     cli.EnvVars("TASKMATE_DUE_REMINDER_WINDOW"),
			Destination: &cfg.DueReminderWindow,
			Value:       cfg.DueReminderWindow,
			Usage:       "Remind assignees of tasks due within this window",
		},
		&cli.DurationFlag{
			Name:        "trash-retention",
			Category:    "Scheduler:",
			Sources:     cli.EnvVars("TASKMATE_TRASH_RETENTION"),
			Destination: &cfg.TrashRetention,
			Value:       cfg.TrashRetention,
			Usage:       "Purge trashed tasks older than this; 0 keeps them forever",
		},
		&cli.StringFlag{
			Name:        "trash-retention-schedule",
			Category:    "Scheduler:",
			Sources:     cli.EnvVars("TASKMATE_TRASH_RETENTION_SCHEDULE"),
			Destination: &cfg.TrashRetentionSchedule,
			Value:       cfg.TrashRetentionSchedule,
			Usage:       "Cron spec for the trash purge",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("TASKMATE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       "service=taskmate",
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout(cfg))
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

// maxBodySizeMiddleware caps request bodies. Multipart uploads get the
// upload limit plus room for the surrounding form instead.
func maxBodySizeMiddleware(maxBodySize, uploadMaxSize int64) gin.HandlerFunc {
	// Unlimited uploads leave multipart bodies unbounded too.
	var uploadLimit int64
	if uploadMaxSize > 0 {
		uploadLimit = max(maxBodySize, uploadMaxSize+multipartSlack)
	}
	return func(c *gin.Context) {
		limit := maxBodySize
		if isUploadRequest(c.Request) {
			limit = uploadLimit
		}
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func isUploadRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	if req.Method != http.MethodPost && req.Method != http.MethodPut {
		return false
	}
	contentType := strings.ToLower(strings.TrimSpace(req.Header.Get("Content-Type")))
	return strings.HasPrefix(contentType, "multipart/form-data")
}
