package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/app"
	"github.com/PeacockIllustrated/project-manager/internal/blob"
	"github.com/PeacockIllustrated/project-manager/internal/config"
	"github.com/PeacockIllustrated/project-manager/internal/invoice"
	"github.com/PeacockIllustrated/project-manager/internal/local"
	"github.com/PeacockIllustrated/project-manager/internal/remote"
	"github.com/PeacockIllustrated/project-manager/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("backend setup failed")
	}
	defer closeBackend()

	var opts []app.Option
	if cfg.InvoiceURL != "" {
		opts = append(opts, app.WithExtractor(invoice.NewClient(cfg.InvoiceURL, cfg.InvoiceAPIKey, cfg.InvoiceTimeout)))
	} else {
		log.Info().Msg("PM_INVOICE_URL not set; invoice extraction disabled")
	}
	coordinator := app.NewCoordinator(backend, app.Config{
		CascadeTimeout:     cfg.CascadeTimeout,
		CascadeConcurrency: cfg.CascadeConcurrency,
		SampleOverlay:      cfg.SampleOverlay,
	}, opts...)
	if err := coordinator.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("coordinator start failed")
	}

	httpServer := app.NewHTTPServer(coordinator, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("project manager API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if err := coordinator.Stop(); err != nil {
		log.Error().Err(err).Msg("coordinator stop error")
	}
}

// openBackend builds the one backend this process runs against. The returned func
// releases its connections.
func openBackend(cfg config.Config) (store.Backend, func(), error) {
	if cfg.Backend == config.BackendLocal {
		return openLocal(cfg)
	}
	return openRemote(cfg)
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func openLocal(cfg config.Config) (store.Backend, func(), error) {
	if err := ensureDir(cfg.LocalDBPath); err != nil {
		return nil, nil, err
	}
	s, err := local.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, nil, err
	}
	disk, err := blob.NewDisk(cfg.BlobDir)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	log.Info().Str("db", cfg.LocalDBPath).Str("blobs", cfg.BlobDir).Msg("using local backend")
	return local.NewBackend(s, disk), func() { _ = s.Close() }, nil
}

// openRemote does not require the database to answer: the adapter starts from its
// offline cache and connects when the database comes back.
func openRemote(cfg config.Config) (store.Backend, func(), error) {
	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	blobs, err := blob.NewMinIO(cfg.MinIO)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	if err := ensureDir(cfg.RemoteCachePath); err != nil {
		closeAll()
		return nil, nil, err
	}
	cache, err := remote.OpenCache(cfg.RemoteCachePath)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = cache.Close() })

	opts := []remote.Option{remote.WithHealthInterval(cfg.HealthInterval), remote.WithCache(cache)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		notifier, err := remote.NewNotifier(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opts = append(opts, remote.WithChangeFeed(notifier))
		closers = append(closers, func() { _ = notifier.Close() })
		log.Info().Msg("change notifications over redis enabled")
	} else {
		log.Warn().Msg("REDIS_URL not set; polling for changes from other processes")
	}

	log.Info().Str("bucket", cfg.MinIO.Bucket).Str("cache", cfg.RemoteCachePath).Msg("using remote backend")
	adapter := remote.New(store.NewPostgresStore(db), blobs, opts...)
	return adapter, closeAll, nil
}
