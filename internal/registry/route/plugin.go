package route

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chirino/taskmate/internal/config"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

// Deps are the initialized components route plugins are built from.
// Management plugins receive the zero value.
type Deps struct {
	Config    *config.Config
	Store     registrystore.TaskStore
	Files     registryupload.FileStore
	Assistant registryassistant.Assistant
	Issuer    *security.TokenIssuer
	Limiter   *security.RateLimiter
	// Auth authenticates the bearer token and loads the caller.
	Auth gin.HandlerFunc
}

// RouterLoader mounts a plugin's routes on the gin engine.
type RouterLoader func(r *gin.Engine, d Deps) error

// RouteType distinguishes which server a plugin's routes belong to.
type RouteType int

const (
	// RouteTypeMain registers routes on the main API server.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers routes on the management server (health, metrics).
	// When no dedicated management port is configured, these are mounted on the main server.
	RouteTypeManagement
)

// Plugin is a named group of routes mounted in Order.
type Plugin struct {
	Name   string
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	mu      sync.Mutex
	plugins []Plugin
)

// Register adds a route plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	plugins = append(plugins, p)
}

func ofType(t RouteType) []Plugin {
	mu.Lock()
	defer mu.Unlock()
	var out []Plugin
	for _, p := range plugins {
		if p.Type == t {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Names returns the names of the plugins of type t in mount order.
func Names(t RouteType) []string {
	var names []string
	for _, p := range ofType(t) {
		names = append(names, p.Name)
	}
	return names
}

// Mount runs every loader of type t against r in order.
func Mount(t RouteType, r *gin.Engine, d Deps) error {
	for _, p := range ofType(t) {
		if err := p.Loader(r, d); err != nil {
			return fmt.Errorf("failed to load %s routes: %w", p.Name, err)
		}
	}
	return nil
}
