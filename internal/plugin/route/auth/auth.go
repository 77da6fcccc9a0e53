package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "auth",
		Order: 10,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Files, d.Issuer, d.Config, d.Auth, d.Limiter)
			return nil
		},
	})
}

// MountRoutes mounts the sign-up, sign-in, password and profile photo routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, files registryupload.FileStore, issuer *security.TokenIssuer, cfg *config.Config, auth gin.HandlerFunc, limiter *security.RateLimiter) {
	g := r.Group("/api/auth")
	limited := limiter.Middleware()

	g.POST("/signup", limited, func(c *gin.Context) {
		signUp(c, store, issuer)
	})
	g.POST("/signin", limited, func(c *gin.Context) {
		signIn(c, store, issuer)
	})
	g.PATCH("/changePassword", limited, func(c *gin.Context) {
		changePassword(c, store)
	})
	g.PUT("/profilePhoto", auth, func(c *gin.Context) {
		setProfilePhoto(c, store, files, cfg.UploadMaxSize)
	})
}

type signUpRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=20"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RePassword string `json:"rePassword" binding:"required,eqfield=Password"`
	JobTitle   string `json:"jobTitle"`
}

func signUp(c *gin.Context, store registrystore.TaskStore, issuer *security.TokenIssuer) {
	var req signUpRequest
	if !httpapi.BindJSON(c, &req) {
		return
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
		Role:         model.RoleUser,
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
	log.Info("User signed up", "userID", user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "added", "user": user, "token": token})
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func signIn(c *gin.Context, store registrystore.TaskStore, issuer *security.TokenIssuer) {
	var req signInRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	user, ok := checkCredentials(c, store, req.Email, req.Password)
	if !ok {
		httpapi.Fail(c, http.StatusUnauthorized, "unauthorized", "email or password is not correct")
		return
	}
	token, err := issuer.Issue(user.ID, user.Role)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": user, "token": token})
}

type changePasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func changePassword(c *gin.Context, store registrystore.TaskStore) {
	var req changePasswordRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	user, ok := checkCredentials(c, store, req.Email, req.OldPassword)
	if !ok {
		httpapi.Fail(c, http.StatusUnauthorized, "unauthorized", "email or password are not correct")
		return
	}
	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := store.ChangePassword(ctx, user.ID, hash, time.Now()); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	updated, err := store.GetUser(ctx, user.ID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	log.Info("Password changed", "userID", user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "password has been changed", "updatedUser": updated})
}

// checkCredentials loads the user by email and verifies the password. Lookup
// failures and mismatches are reported the same way.
func checkCredentials(c *gin.Context, store registrystore.TaskStore, email, password string) (*model.User, bool) {
	user, err := store.GetUserByEmail(c.Request.Context(), strings.ToLower(email))
	if err != nil || user == nil {
		return nil, false
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		return nil, false
	}
	return user, true
}

func setProfilePhoto(c *gin.Context, store registrystore.TaskStore, files registryupload.FileStore, maxSize int64) {
	fh, ok := httpapi.OptionalFile(c, "image")
	if !ok {
		return
	}
	if fh == nil {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error", "\"image\" file is required")
		return
	}
	if !strings.HasPrefix(registryupload.BaseContentType(fh.Header.Get("Content-Type")), "image/") {
		httpapi.HandleError(c, registryupload.ErrTypeNotAllowed)
		return
	}
	ctx := c.Request.Context()
	att, err := registryupload.SaveMultipart(ctx, files, fh, maxSize)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	userID := security.GetUserID(c)
	previous := security.CurrentUser(c)
	user, err := store.SetUserImage(ctx, userID, registryupload.NameFromURL(att.URL))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if previous != nil && previous.Image != "" && registryupload.ValidName(previous.Image) {
		if err := files.Delete(ctx, previous.Image); err != nil {
			log.Warn("Failed to delete previous profile photo", "userID", userID, "name", previous.Image, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "user": user})
}
