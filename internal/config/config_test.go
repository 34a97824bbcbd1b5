package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "PM_BACKEND", "PM_CASCADE_TIMEOUT_SECONDS", "PM_SAMPLE_OVERLAY", "MINIO_USE_SSL", "PM_REMOTE_CACHE", "PM_INVOICE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, 30*time.Second, cfg.CascadeTimeout)
	assert.Equal(t, 8, cfg.CascadeConcurrency)
	assert.False(t, cfg.SampleOverlay)
	assert.False(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "./data/remote-cache.db", cfg.RemoteCachePath)
	assert.Empty(t, cfg.InvoiceURL)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PM_BACKEND", "Remote")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pm")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("PM_CASCADE_TIMEOUT_SECONDS", "5")
	t.Setenv("PM_CASCADE_CONCURRENCY", "2")
	t.Setenv("PM_HEALTH_INTERVAL_SECONDS", "3")
	t.Setenv("PM_SAMPLE_OVERLAY", "1")
	t.Setenv("PM_REMOTE_CACHE", "/var/lib/pm/cache.db")
	t.Setenv("PM_INVOICE_URL", "http://vision:8080/extract")
	t.Setenv("PM_INVOICE_TIMEOUT_SECONDS", "12")

	cfg := Load()
	assert.Equal(t, BackendRemote, cfg.Backend)
	assert.Equal(t, "postgres://u:p@db:5432/pm", cfg.DatabaseURL)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 5*time.Second, cfg.CascadeTimeout)
	assert.Equal(t, 2, cfg.CascadeConcurrency)
	assert.Equal(t, 3*time.Second, cfg.HealthInterval)
	assert.True(t, cfg.SampleOverlay)
	assert.Equal(t, "/var/lib/pm/cache.db", cfg.RemoteCachePath)
	assert.Equal(t, "http://vision:8080/extract", cfg.InvoiceURL)
	assert.Equal(t, 12*time.Second, cfg.InvoiceTimeout)
	require.NoError(t, cfg.Validate())
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("PM_CASCADE_CONCURRENCY", "many")
	t.Setenv("PM_SAMPLE_OVERLAY", "maybe")

	cfg := Load()
	assert.Equal(t, 8, cfg.CascadeConcurrency)
	assert.False(t, cfg.SampleOverlay)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Config{Backend: "firebase", CascadeConcurrency: 1}
	assert.ErrorContains(t, cfg.Validate(), "unknown PM_BACKEND")

	cfg = Config{Backend: BackendLocal, LocalDBPath: "x.db"}
	assert.Error(t, cfg.Validate())
}
