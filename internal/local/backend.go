package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/blob"
	"github.com/PeacockIllustrated/project-manager/internal/feed"
	"github.com/PeacockIllustrated/project-manager/internal/store"
	"github.com/PeacockIllustrated/project-manager/internal/util"
)

// Backend serves store.Backend from a local Store. Writes are read-modify-write of the
// whole collection and are serialized by one mutex.
type Backend struct {
	store    *Store
	blobs    blob.Store
	hub      *feed.Hub
	defaults map[store.Collection][]store.Record

	mu sync.Mutex
}

type Option func(*Backend)

// WithDefaults sets the records a collection is seeded with on first use.
func WithDefaults(collection store.Collection, records []store.Record) Option {
	return func(b *Backend) {
		b.defaults[collection] = records
	}
}

func NewBackend(s *Store, blobs blob.Store, opts ...Option) *Backend {
	b := &Backend{
		store:    s,
		blobs:    blobs,
		hub:      feed.NewHub(),
		defaults: make(map[store.Collection][]store.Record),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seedAndPublish(ctx)
}

func (b *Backend) seedAndPublish(ctx context.Context) error {
	for _, collection := range store.Collections {
		seeded, err := b.store.InitializeIfAbsent(ctx, collection, b.defaults[collection])
		if err != nil {
			return err
		}
		if seeded {
			log.Debug().Str("collection", string(collection)).Msg("local: seeded collection")
		}
		records, err := b.store.GetAll(ctx, collection)
		if err != nil {
			return err
		}
		b.hub.Publish(collection, records)
	}
	return nil
}

func (b *Backend) Stop() error {
	return nil
}

func (b *Backend) Subscribe(collection store.Collection, fn func([]store.Record)) (func(), error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("subscribe %s: unknown collection", collection)
	}
	return b.hub.Subscribe(collection, fn), nil
}

func (b *Backend) Insert(ctx context.Context, collection store.Collection, record store.Record) (string, error) {
	if record.ID == "" {
		record.ID = util.NewID("")
	}
	err := b.mutate(ctx, collection, func(current []store.Record) ([]store.Record, error) {
		return store.InsertRecord(current, record)
	})
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (b *Backend) Replace(ctx context.Context, collection store.Collection, record store.Record) error {
	return b.mutate(ctx, collection, func(current []store.Record) ([]store.Record, error) {
		return store.ReplaceRecord(current, record)
	})
}

func (b *Backend) Delete(ctx context.Context, collection store.Collection, id string) error {
	return b.mutate(ctx, collection, func(current []store.Record) ([]store.Record, error) {
		return store.DeleteRecord(current, id)
	})
}

func (b *Backend) mutate(ctx context.Context, collection store.Collection, apply func([]store.Record) ([]store.Record, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.store.GetAll(ctx, collection)
	if err != nil {
		return err
	}
	next, err := apply(current)
	if err != nil {
		return err
	}
	if err := b.store.SaveAll(ctx, collection, next); err != nil {
		return err
	}
	b.hub.Publish(collection, next)
	return nil
}

// DeleteBatch rewrites every touched collection in a single transaction.
func (b *Backend) DeleteBatch(ctx context.Context, refs []store.Ref) error {
	if len(refs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	order, _ := store.GroupRefs(refs)
	current := make(map[store.Collection][]store.Record, len(order))
	for _, collection := range order {
		records, err := b.store.GetAll(ctx, collection)
		if err != nil {
			return err
		}
		current[collection] = records
	}
	next := store.DeleteRefs(current, refs)
	if err := b.store.SaveMany(ctx, next); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	for _, collection := range order {
		b.hub.Publish(collection, next[collection])
	}
	return nil
}

func (b *Backend) UploadBlob(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if b.blobs == nil {
		return "", errors.New("upload blob: no blob store configured")
	}
	return b.blobs.Upload(ctx, path, contentType, data)
}

func (b *Backend) DeleteBlob(ctx context.Context, path string) error {
	if b.blobs == nil {
		return errors.New("delete blob: no blob store configured")
	}
	return b.blobs.Delete(ctx, path)
}

// Reset wipes every collection and seeds the defaults again.
func (b *Backend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.Clear(ctx); err != nil {
		return err
	}
	return b.seedAndPublish(ctx)
}
