package users

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "users",
		Order: 20,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Issuer, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the user management routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, issuer *security.TokenIssuer, auth gin.HandlerFunc) {
	g := r.Group("/api/user", auth)
	admin := security.RequireRole(model.RoleAdmin)

	g.GET("", func(c *gin.Context) {
		listUsers(c, store)
	})
	g.POST("", admin, func(c *gin.Context) {
		addUser(c, store, issuer)
	})
	g.GET("/normal", func(c *gin.Context) {
		listNormalUsers(c, store)
	})
	g.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success", "user": security.CurrentUser(c)})
	})
	g.GET("/:id", admin, func(c *gin.Context) {
		getUser(c, store)
	})
	g.DELETE("/:id", admin, func(c *gin.Context) {
		deleteUser(c, store)
	})
	g.PATCH("/:id", func(c *gin.Context) {
		updateUser(c, store)
	})
}

func listUsers(c *gin.Context, store registrystore.TaskStore) {
	role := model.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error", "\"role\" must be one of [user, admin]")
		return
	}
	users, err := store.ListUsers(c.Request.Context(), role)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "users": users})
}

func listNormalUsers(c *gin.Context, store registrystore.TaskStore) {
	users, err := store.ListUsers(c.Request.Context(), model.RoleUser)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "users": users})
}

type addUserRequest struct {
	Name       string     `json:"name" binding:"required,min=2,max=20"`
	Email      string     `json:"email" binding:"required,email"`
	Password   string     `json:"password" binding:"required"`
	RePassword string     `json:"rePassword" binding:"required,eqfield=Password"`
	Role       model.Role `json:"role" binding:"omitempty,oneof=user admin"`
	JobTitle   string     `json:"jobTitle"`
}

func addUser(c *gin.Context, store registrystore.TaskStore, issuer *security.TokenIssuer) {
	var req addUserRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	hash, err := security.HashPassword(req.Password)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	user, err := store.CreateUser(c.Request.Context(), registrystore.CreateUserRequest{
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
		JobTitle:     req.JobTitle,
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	token, err := issuer.Issue(user.ID, user.Role)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("User added", "userID", user.ID, "role", user.Role, "by", security.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": user, "token": token})
}

func getUser(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	user, err := store.GetUser(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": user})
}

func deleteUser(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	user, err := store.DeleteUser(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("User deleted", "userID", id, "by", security.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"message": "deleted", "user": user})
}

type updateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=3,max=50"`
	JobTitle *string `json:"jobTitle" binding:"omitempty,min=2,max=50"`
}

func updateUser(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if !security.IsSelfOrAdmin(c, id) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "you can only update your own profile")
		return
	}
	var req updateUserRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	user, err := store.UpdateUserProfile(c.Request.Context(), id, registrystore.UserProfileUpdate{
		Name:     req.Name,
		JobTitle: req.JobTitle,
	})
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}
