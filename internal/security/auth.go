package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the gin context key for the authenticated user ID.
	ContextKeyUserID = "userID"
	// ContextKeyRole is the gin context key for the authenticated user's role.
	ContextKeyRole = "role"
	// ContextKeyUser is the gin context key for the authenticated *model.User.
	ContextKeyUser = "user"
)

// UserLookup loads users for the authentication middleware.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// BearerToken extracts the access token from "Authorization: Bearer <t>"
// or the legacy "token" header.
func BearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("token"))
}

// GetUserID returns the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetRole returns the authenticated user's role.
func GetRole(c *gin.Context) model.Role {
	v, _ := c.Get(ContextKeyRole)
	r, _ := v.(model.Role)
	return r
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == model.RoleAdmin
}

// CurrentUser returns the authenticated user loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) *model.User {
	v, _ := c.Get(ContextKeyUser)
	u, _ := v.(*model.User)
	return u
}

// IsSelfOrAdmin reports whether the caller is userID or an admin.
func IsSelfOrAdmin(c *gin.Context, userID string) bool {
	return IsAdmin(c) || GetUserID(c) == userID
}

func reject(c *gin.Context, msg string, kv ...any) {
	log.Info("Auth rejected", append([]any{"method", c.Request.Method, "path", c.Request.URL.Path, "reason", msg}, kv...)...)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": msg})
}

// ErrorHandler writes the response for a lookup failure that is not an
// authentication problem.
type ErrorHandler func(c *gin.Context, err error)

func internalError(c *gin.Context, err error) {
	log.Error("User lookup failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "error": "internal server error"})
}

// AuthMiddleware verifies the access token, loads its user and rejects tokens
// issued before the user's last password change. Only a missing user is a 401;
// other lookup errors go to onError, or a plain 500 when it is nil.
func AuthMiddleware(issuer *TokenIssuer, users UserLookup, onError ErrorHandler) gin.HandlerFunc {
	if onError == nil {
		onError = internalError
	}
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			reject(c, "token is missing")
			return
		}
		claims, err := issuer.Parse(token)
		if err != nil {
			reject(c, "invalid token", "err", err)
			return
		}
		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil && !registrystore.IsNotFound(err) {
			onError(c, err)
			return
		}
		if user == nil || err != nil {
			reject(c, "user not found", "userID", claims.UserID)
			return
		}
		if claims.IssuedBefore(user.PasswordChangedAt) {
			reject(c, "token issued before password change", "userID", user.ID)
			return
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyRole, user.Role)
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller has one of the roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": "forbidden"})
	}
}
