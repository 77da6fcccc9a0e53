package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/model"
)

type userCacheKey struct{}

// WithUserCacheContext returns a new context carrying the given UserCache.
func WithUserCacheContext(ctx context.Context, c UserCache) context.Context {
	return context.WithValue(ctx, userCacheKey{}, c)
}

// UserCacheFromContext retrieves the UserCache from the context.
// Returns nil if none was set.
func UserCacheFromContext(ctx context.Context) UserCache {
	c, _ := ctx.Value(userCacheKey{}).(UserCache)
	return c
}

// CachedUser is the cached form of a user. It carries the password hash
// and change time so the auth middleware can validate tokens from cache.
type CachedUser struct {
	User              model.User `json:"user"`
	PasswordHash      string     `json:"passwordHash"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
}

// ToUser rebuilds the full user from its cached form.
func (c *CachedUser) ToUser() *model.User {
	u := c.User
	u.PasswordHash = c.PasswordHash
	u.PasswordChangedAt = c.PasswordChangedAt
	return &u
}

// NewCachedUser captures a user for caching.
func NewCachedUser(u *model.User) CachedUser {
	return CachedUser{User: *u, PasswordHash: u.PasswordHash, PasswordChangedAt: u.PasswordChangedAt}
}

// UserCache caches users looked up by the authentication middleware.
type UserCache interface {
	Available() bool
	Get(ctx context.Context, userID string) (*CachedUser, error)
	Set(ctx context.Context, userID string, user CachedUser, ttl time.Duration) error
	Remove(ctx context.Context, userID string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (UserCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
