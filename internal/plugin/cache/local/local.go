// Package local provides an in-process user cache backed by ristretto.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/config"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	"github.com/dgraph-io/ristretto/v2"
)

const defaultTTL = 10 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registrycache.UserCache, error) {
			ttl := defaultTTL
			if cfg := config.FromContext(ctx); cfg != nil && cfg.CacheTTL > 0 {
				ttl = cfg.CacheTTL
			}
			return New(ttl)
		},
	})
}

// New creates a local cache whose entries expire after ttl.
func New(ttl time.Duration) (registrycache.UserCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, registrycache.CachedUser]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &localUserCache{cache: c, ttl: ttl}, nil
}

type localUserCache struct {
	cache *ristretto.Cache[string, registrycache.CachedUser]
	ttl   time.Duration
}

func (c *localUserCache) Available() bool { return true }

func (c *localUserCache) Get(_ context.Context, userID string) (*registrycache.CachedUser, error) {
	v, ok := c.cache.Get(userID)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *localUserCache) Set(_ context.Context, userID string, user registrycache.CachedUser, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.cache.SetWithTTL(userID, user, 1, ttl)
	c.cache.Wait()
	return nil
}

func (c *localUserCache) Remove(_ context.Context, userID string) error {
	c.cache.Del(userID)
	return nil
}

var _ registrycache.UserCache = (*localUserCache)(nil)
