package system

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	registryroute "github.com/chirino/taskmate/internal/registry/route"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports whether a dependency can serve traffic.
type Check func(ctx context.Context) error

var (
	ready    atomic.Bool
	checksMu sync.RWMutex
	checks   = map[string]Check{}
)

// MarkReady signals that the server has started and routes are mounted.
func MarkReady() {
	ready.Store(true)
}

// AddReadinessCheck registers a dependency probe evaluated by /ready.
func AddReadinessCheck(name string, check Check) {
	checksMu.Lock()
	defer checksMu.Unlock()
	checks[name] = check
}

func runChecks(ctx context.Context) (map[string]string, bool) {
	checksMu.RLock()
	defer checksMu.RUnlock()
	results := make(map[string]string, len(checks))
	ok := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ok = false
			continue
		}
		results[name] = "ok"
	}
	return results, ok
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "system",
		Order: 0,
		Type:  registryroute.RouteTypeManagement,
		Loader: func(r *gin.Engine, _ registryroute.Deps) error {
			r.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			r.GET("/ready", func(c *gin.Context) {
				if !ready.Load() {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
					return
				}
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				defer cancel()
				results, ok := runChecks(ctx)
				if !ok {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
			})

			r.GET("/metrics", gin.WrapH(promhttp.Handler()))
			return nil
		},
	})
}
