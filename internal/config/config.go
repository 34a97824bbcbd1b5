package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/blob"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	Addr       string
	CORSOrigin string
	LogLevel   string

	// Backend selects the store for the whole process: "local" or "remote".
	Backend string

	// Local backend
	LocalDBPath string
	BlobDir     string

	// Remote backend
	DatabaseURL    string
	RedisURL       string
	MinIO          blob.MinIOConfig
	HealthInterval time.Duration
	// RemoteCachePath holds the offline cache and the queued writes.
	RemoteCachePath string

	// Invoice extraction is off when InvoiceURL is empty.
	InvoiceURL     string
	InvoiceAPIKey  string
	InvoiceTimeout time.Duration

	CascadeTimeout     time.Duration
	CascadeConcurrency int
	SampleOverlay      bool
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("config: no .env file, using environment only")
	}

	return Config{
		Addr:        getenv("API_ADDR", ":8787"),
		CORSOrigin:  getenv("CORS_ORIGIN", "*"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Backend:     strings.ToLower(getenv("PM_BACKEND", BackendLocal)),
		LocalDBPath: getenv("PM_LOCAL_DB", "./data/project-manager.db"),
		BlobDir:     getenv("PM_BLOB_DIR", "./data/blobs"),
		DatabaseURL: getenv("DATABASE_URL", "postgres://pm:pm@localhost:5432/pm?sslmode=disable"),
		// Redis is optional; without it the remote backend polls on the health interval.
		RedisURL: getenv("REDIS_URL", ""),
		MinIO: blob.MinIOConfig{
			Endpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getenv("MINIO_BUCKET", "project-documents"),
			UseSSL:    getenvBool("MINIO_USE_SSL", false),
		},
		HealthInterval:     getenvSeconds("PM_HEALTH_INTERVAL_SECONDS", 10),
		RemoteCachePath:    getenv("PM_REMOTE_CACHE", "./data/remote-cache.db"),
		InvoiceURL:         getenv("PM_INVOICE_URL", ""),
		InvoiceAPIKey:      getenv("PM_INVOICE_API_KEY", ""),
		InvoiceTimeout:     getenvSeconds("PM_INVOICE_TIMEOUT_SECONDS", 30),
		CascadeTimeout:     getenvSeconds("PM_CASCADE_TIMEOUT_SECONDS", 30),
		CascadeConcurrency: getenvInt("PM_CASCADE_CONCURRENCY", 8),
		SampleOverlay:      getenvBool("PM_SAMPLE_OVERLAY", false),
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.LocalDBPath == "" {
			return fmt.Errorf("PM_LOCAL_DB is required for the local backend")
		}
	case BackendRemote:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the remote backend")
		}
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for the remote backend")
		}
		if c.RemoteCachePath == "" {
			return fmt.Errorf("PM_REMOTE_CACHE is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown PM_BACKEND %q (want %q or %q)", c.Backend, BackendLocal, BackendRemote)
	}
	if c.CascadeConcurrency < 1 {
		return fmt.Errorf("PM_CASCADE_CONCURRENCY must be at least 1")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getenvInt(key, fallback)) * time.Second
}
