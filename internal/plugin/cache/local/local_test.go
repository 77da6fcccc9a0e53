package local

import (
	"context"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	"github.com/stretchr/testify/require"
)

func TestLocalUserCache(t *testing.T) {
	ctx := context.Background()
	c, err := New(time.Minute)
	require.NoError(t, err)
	require.True(t, c.Available())

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, got)

	changed := time.Now().Truncate(time.Second)
	user := &model.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: model.RoleUser, PasswordHash: "hash", PasswordChangedAt: &changed}
	require.NoError(t, c.Set(ctx, "u1", registrycache.NewCachedUser(user), 0))

	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	restored := got.ToUser()
	require.Equal(t, "Ann", restored.Name)
	require.Equal(t, "hash", restored.PasswordHash)
	require.True(t, changed.Equal(*restored.PasswordChangedAt))

	require.NoError(t, c.Remove(ctx, "u1"))
	got, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, got)
}
