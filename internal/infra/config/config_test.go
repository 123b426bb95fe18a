package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, QueueRabbitMQ, cfg.QueueBackend)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Equal(t, time.Second, cfg.ProgressSimInterval)
	assert.Equal(t, 3*time.Second, cfg.ClassifierDelay)
	assert.InDelta(t, 0.8, cfg.ClassifierSafeRatio, 1e-9)
	assert.Equal(t, 2, cfg.ClassifierAttempts)
	assert.Equal(t, 30*time.Minute, cfg.StalledAfter)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.ShutdownTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ErrorReloadBackoff)
	assert.Equal(t, 1000, cfg.EventHistory)
	assert.Equal(t, "/data/media", cfg.LocalStorageRoot)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "asynq")
	t.Setenv("NOTIFIER_BACKEND", "redis")
	t.Setenv("PROGRESS_SIM_INTERVAL", "250ms")
	t.Setenv("WORKER_COUNT", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, QueueAsynq, cfg.QueueBackend)
	assert.Equal(t, NotifierRedis, cfg.NotifierBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.ProgressSimInterval)
	assert.Equal(t, 8, cfg.WorkerCount)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoadRequiresBucketForS3(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET_NAME", "")

	_, err := Load()
	assert.ErrorContains(t, err, "S3_BUCKET_NAME")
}

func TestLoadRejectsBadSafeRatio(t *testing.T) {
	t.Setenv("CLASSIFIER_SAFE_RATIO", "1.5")

	_, err := Load()
	assert.Error(t, err)
}
