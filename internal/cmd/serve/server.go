package serve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/app"
	"github.com/chirino/taskmate/internal/config"
	routesystem "github.com/chirino/taskmate/internal/plugin/route/system"
	storemetrics "github.com/chirino/taskmate/internal/plugin/store/metrics"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/security"
	"github.com/chirino/taskmate/internal/service"
	"github.com/gin-gonic/gin"
)

// limiterPruneSchedule drops idle per-client rate limit buckets.
const limiterPruneSchedule = "@every 10m"

// Server holds the running server and its subsystems.
type Server struct {
	Config     *config.Config
	Store      registrystore.TaskStore
	Router     *gin.Engine
	Running    *RunningServers
	Management *RunningServers
	Scheduler  *service.Scheduler
	closeStore func(context.Context) error
}

// Shutdown stops background jobs, drains both listeners and closes the datastore.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Scheduler.Stop()
	var errs []error
	if s.Management != nil {
		errs = append(errs, s.Management.Close(ctx))
	}
	errs = append(errs, s.Running.Close(ctx))
	if s.closeStore != nil {
		errs = append(errs, s.closeStore(ctx))
	}
	return errors.Join(errs...)
}

// StartServer initializes all subsystems and starts serving on cfg.Listener.Port.
// Use port 0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting task service",
		"port", cfg.Listener.Port,
		"mode", cfg.Mode,
		"db", cfg.DatastoreType,
		"cache", cfg.CacheType,
		"uploads", cfg.UploadType,
		"assistant", cfg.AssistantType,
	)

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("a JWT signing secret is required: set --jwt-secret")
	}

	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// The cache rides on the context so the store loader can pick it up.
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if userCache, err := cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize cache", "cache", cfg.CacheType, "err", err)
	} else {
		ctx = registrycache.WithUserCacheContext(ctx, userCache)
	}

	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	var closeStore func(context.Context) error
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		routesystem.AddReadinessCheck("datastore", p.Ping)
	}
	if c, ok := store.(interface{ Close(context.Context) error }); ok {
		closeStore = c.Close
	}
	store = storemetrics.Wrap(store)

	uploadLoader, err := registryupload.Select(cfg.UploadType)
	if err != nil {
		return nil, err
	}
	files, err := uploadLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	assistantLoader, err := registryassistant.Select(cfg.AssistantType)
	if err != nil {
		return nil, err
	}
	assistant, err := assistantLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize assistant: %w", err)
	}
	assistant = registryassistant.Instrument(cfg.AssistantType, assistant)

	issuer, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	limiter := security.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	if cfg.Testing() {
		limiter = security.NewRateLimiter(0, 0)
	}

	if cfg.Testing() {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware(managementPaths...))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(security.AdminAuditMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize, cfg.UploadMaxSize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	err = app.MountRoutes(router, app.Deps{
		Config:    cfg,
		Store:     store,
		Files:     files,
		Assistant: assistant,
		Issuer:    issuer,
		Limiter:   limiter,
	})
	if err != nil {
		return nil, err
	}

	management, err := mountManagement(cfg, router)
	if err != nil {
		return nil, err
	}

	scheduler := service.NewScheduler()
	jobs := []service.Job{
		service.NewDueReminderService(store, cfg.DueReminderWindow).Job(cfg.DueReminderSchedule),
		service.NewTrashRetentionService(store, cfg.TrashRetention).Job(cfg.TrashRetentionSchedule),
		{
			Name:     "rate-limit-prune",
			Schedule: limiterPruneSchedule,
			Run: func(context.Context) error {
				if n := limiter.Prune(); n > 0 {
					log.Debug("Pruned idle rate limit buckets", "count", n)
				}
				return nil
			},
		},
	}
	for _, job := range jobs {
		if err := scheduler.Add(job); err != nil {
			return nil, err
		}
	}

	running, err := StartSinglePortHTTP("main", cfg.Listener, router)
	if err != nil {
		if management != nil {
			_ = management.Close(context.Background())
		}
		return nil, err
	}
	scheduler.Start()

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
		"routes", registryroute.Names(registryroute.RouteTypeMain),
		"jobs", scheduler.Jobs(),
	)

	routesystem.MarkReady()
	return &Server{
		Config:     cfg,
		Store:      store,
		Router:     router,
		Running:    running,
		Management: management,
		Scheduler:  scheduler,
		closeStore: closeStore,
	}, nil
}

func drainTimeout(cfg config.Config) time.Duration {
	if cfg.DrainTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.DrainTimeout) * time.Second
}
