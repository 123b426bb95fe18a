package minio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestStorageRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := NewStorage(StorageConfig{
		Endpoint:     endpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UploadBucket: "uploads",
		OutputBucket: "optimized",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))
	require.NoError(t, storage.EnsureBuckets(ctx), "idempotent")

	content := "not really a video"
	_, err = storage.client.PutObject(ctx, "uploads", "acme/clip.mov", strings.NewReader(content), int64(len(content)),
		miniogo.PutObjectOptions{ContentType: "video/quicktime"})
	require.NoError(t, err)

	dir := t.TempDir()
	local, err := storage.Fetch(ctx, "acme/clip.mov", filepath.Join(dir, "source.mov"))
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	require.NoError(t, storage.Publish(ctx, local, "acme/optimized-clip.mp4", "video/mp4"))
	info, err := storage.client.StatObject(ctx, "optimized", "acme/optimized-clip.mp4", miniogo.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", info.ContentType)

	require.NoError(t, storage.Remove(ctx, "acme/optimized-clip.mp4"))
	require.NoError(t, storage.Remove(ctx, "acme/optimized-clip.mp4"), "removing twice is fine")

	_, err = storage.Fetch(ctx, "acme/missing.mov", filepath.Join(dir, "missing.mov"))
	assert.Error(t, err)
}
