package security

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency can be used by store implementations to record operation latency.
	StoreLatency *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// NotificationsCreatedTotal counts notification documents written, by type.
	NotificationsCreatedTotal *prometheus.CounterVec

	// SchedulerRunsTotal counts background job runs by job and outcome.
	SchedulerRunsTotal *prometheus.CounterVec

	// AssistantLatency records completion call latency by assistant backend.
	AssistantLatency *prometheus.HistogramVec
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Label values may not contain commas. Returns nil for an empty string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus metrics with the given constant labels.
// Must be called before starting the HTTP server or any store/cache initialization
// that records metrics. Safe to call multiple times; only the first call registers.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmate_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmate_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "taskmate_cache_hits_total",
		Help: "Total cache hits",
	})

	CacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "taskmate_cache_misses_total",
		Help: "Total cache misses",
	})

	NotificationsCreatedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmate_notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)

	SchedulerRunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmate_scheduler_runs_total",
			Help: "Total background job runs",
		},
		[]string{"job", "outcome"},
	)

	AssistantLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmate_assistant_latency_seconds",
			Help:    "Assistant completion latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)
}

// MetricsMiddleware records HTTP request metrics for Prometheus.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method).Observe(duration.Seconds())
	}
}

// CountNotifications records n notifications of the given type.
func CountNotifications(notificationType string, n int) {
	if NotificationsCreatedTotal == nil || n <= 0 {
		return
	}
	NotificationsCreatedTotal.WithLabelValues(notificationType).Add(float64(n))
}

// CountCacheLookup records a cache hit or miss.
func CountCacheLookup(hit bool) {
	if CacheHitsTotal == nil {
		return
	}
	if hit {
		CacheHitsTotal.Inc()
	} else {
		CacheMissesTotal.Inc()
	}
}

// ObserveStoreLatency records the duration of a store operation.
func ObserveStoreLatency(operation string, d time.Duration) {
	if StoreLatency == nil {
		return
	}
	StoreLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveAssistantLatency records the duration of an assistant completion.
func ObserveAssistantLatency(backend string, d time.Duration) {
	if AssistantLatency == nil {
		return
	}
	AssistantLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// CountSchedulerRun records the outcome of a background job run.
func CountSchedulerRun(job, outcome string) {
	if SchedulerRunsTotal == nil {
		return
	}
	SchedulerRunsTotal.WithLabelValues(job, outcome).Inc()
}
