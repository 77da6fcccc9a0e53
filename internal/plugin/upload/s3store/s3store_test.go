package s3store_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/plugin/upload/s3store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/testutil/tests3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping S3 integration test in short mode")
	}
	bucket := tests3.StartS3(t)

	cfg := config.DefaultConfig()
	cfg.UploadType = "s3"
	cfg.S3Bucket = bucket
	cfg.S3Prefix = "taskmate"
	cfg.S3UsePathStyle = true
	cfg.TempDir = t.TempDir()
	ctx := config.WithContext(context.Background(), &cfg)

	_ = s3store.ForceImport
	loader, err := registryupload.Select("s3")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)

	name := registryupload.StoredName("report.txt")
	res, err := store.Store(ctx, name, strings.NewReader("quarterly"), 1024, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Size)

	rc, info, err := store.Open(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "quarterly", string(data))
	assert.Equal(t, "text/plain", info.ContentType)

	_, err = store.Store(ctx, "too-big.txt", strings.NewReader("0123456789"), 5, "text/plain")
	assert.ErrorIs(t, err, registryupload.ErrTooLarge)

	require.NoError(t, store.Delete(ctx, name))
	_, _, err = store.Open(ctx, name)
	assert.ErrorIs(t, err, registryupload.ErrNotFound)
}
