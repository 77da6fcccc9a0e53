package serve

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

// managementPaths are the probe and scrape endpoints excluded from the
// access log unless management access logging is on.
var managementPaths = []string{"/health", "/ready", "/metrics"}

// mountManagement mounts the health and metrics routes. With a dedicated
// management port they get their own listener, otherwise they share router.
func mountManagement(cfg *config.Config, router *gin.Engine) (*RunningServers, error) {
	if !cfg.ManagementListenerEnabled {
		return nil, registryroute.Mount(registryroute.RouteTypeManagement, router, registryroute.Deps{})
	}

	mgmtRouter := gin.New()
	mgmtRouter.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		mgmtRouter.Use(security.AccessLogMiddleware())
	}
	if err := registryroute.Mount(registryroute.RouteTypeManagement, mgmtRouter, registryroute.Deps{}); err != nil {
		return nil, err
	}

	// The management listener shares the main listener's certificate.
	mgmtCfg := cfg.ManagementListener
	mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
	mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
	if !mgmtCfg.EnablePlainText && !mgmtCfg.EnableTLS {
		mgmtCfg.EnablePlainText = true
	}
	running, err := StartSinglePortHTTP("management", mgmtCfg, mgmtRouter)
	if err != nil {
		return nil, fmt.Errorf("failed to start management server: %w", err)
	}
	log.Info("Management server listening", "addr", running.Addr)
	return running, nil
}
