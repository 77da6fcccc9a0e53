// Package app assembles the TaskMate API from the registered route plugins.
package app

import (
	"github.com/chirino/taskmate/internal/httpapi"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"

	// Route plugins register themselves in init().
	_ "github.com/chirino/taskmate/internal/plugin/route/auth"
	_ "github.com/chirino/taskmate/internal/plugin/route/chatbot"
	_ "github.com/chirino/taskmate/internal/plugin/route/groupchat"
	_ "github.com/chirino/taskmate/internal/plugin/route/inbox"
	_ "github.com/chirino/taskmate/internal/plugin/route/notifications"
	_ "github.com/chirino/taskmate/internal/plugin/route/tasks"
	_ "github.com/chirino/taskmate/internal/plugin/route/uploads"
	_ "github.com/chirino/taskmate/internal/plugin/route/users"
)

// Deps are the initialized components the API routes are built from.
type Deps = registryroute.Deps

// MountRoutes mounts every API route on r. d.Auth is derived from the issuer and store.
func MountRoutes(r *gin.Engine, d Deps) error {
	httpapi.RegisterValidators()
	d.Auth = security.AuthMiddleware(d.Issuer, d.Store, httpapi.HandleError)
	return registryroute.Mount(registryroute.RouteTypeMain, r, d)
}
