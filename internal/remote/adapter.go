package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/blob"
	"github.com/PeacockIllustrated/project-manager/internal/feed"
	"github.com/PeacockIllustrated/project-manager/internal/store"
	"github.com/PeacockIllustrated/project-manager/internal/util"
)

// RecordStore is the shared database. *store.PostgresStore implements it.
type RecordStore interface {
	Ping(ctx context.Context) error
	List(ctx context.Context, collection store.Collection) ([]store.Record, error)
	Insert(ctx context.Context, collection store.Collection, record store.Record) error
	Replace(ctx context.Context, collection store.Collection, record store.Record) error
	Delete(ctx context.Context, collection store.Collection, id string) error
	DeleteBatch(ctx context.Context, refs []store.Ref) error
}

// ChangeFeed carries change announcements between processes. *Notifier implements it.
type ChangeFeed interface {
	Publish(ctx context.Context, collection store.Collection) error
	Listen(ctx context.Context, fn func(store.Collection)) (func(), error)
}

const defaultHealthInterval = 10 * time.Second

// Adapter serves store.Backend from the shared database. It keeps the latest snapshot
// of every collection so subscribers and offline writes work without a round trip.
type Adapter struct {
	records        RecordStore
	changes        ChangeFeed
	blobs          blob.Store
	cache          *Cache
	hub            *feed.Hub
	healthInterval time.Duration

	online atomic.Bool

	// refreshMu serializes fetch-and-deliver per collection so snapshots never go backwards.
	refreshMu map[store.Collection]*sync.Mutex

	// writeMu orders direct writes, queued writes and the outbox flush.
	writeMu sync.Mutex
	outbox  []pendingOp

	listenMu   sync.Mutex
	stopListen func()

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

type Option func(*Adapter)

func WithChangeFeed(changes ChangeFeed) Option {
	return func(a *Adapter) {
		a.changes = changes
	}
}

// WithCache keeps snapshots and queued writes on disk, so a restart while the database
// is unreachable still serves the last data and delivers writes made before it.
func WithCache(cache *Cache) Option {
	return func(a *Adapter) {
		a.cache = cache
	}
}

func WithHealthInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.healthInterval = d
		}
	}
}

func New(records RecordStore, blobs blob.Store, opts ...Option) *Adapter {
	a := &Adapter{
		records:        records,
		blobs:          blobs,
		hub:            feed.NewHub(),
		healthInterval: defaultHealthInterval,
		refreshMu:      make(map[store.Collection]*sync.Mutex, len(store.Collections)),
	}
	for _, collection := range store.Collections {
		a.refreshMu[collection] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start restores the cache, loads every collection and starts the change listener and
// the health loop. An unreachable database is not an error: the adapter starts offline
// from the cache and connects when the health loop first succeeds.
func (a *Adapter) Start(ctx context.Context) error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()
	if a.cancel != nil {
		return errors.New("remote: already started")
	}

	if err := a.restore(ctx); err != nil {
		log.Warn().Err(err).Msg("remote: offline cache unreadable, starting empty")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	if err := a.records.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("remote: database unavailable, starting offline")
	} else if a.flush(ctx) {
		a.refreshAll(ctx)
	}
	a.ensureListener(loopCtx)

	go a.healthLoop(loopCtx, done)
	return nil
}

// restore delivers the cached snapshots and reloads the queued writes.
func (a *Adapter) restore(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	snapshots, err := a.cache.Snapshots(ctx)
	if err != nil {
		return err
	}
	for collection, records := range snapshots {
		a.hub.Publish(collection, records)
	}
	pending, err := a.cache.Pending(ctx)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	a.outbox = pending
	a.writeMu.Unlock()
	if len(pending) > 0 {
		log.Info().Int("pending", len(pending)).Msg("remote: restored queued changes")
	}
	return nil
}

// Stop ends the health loop and the change listener. It is safe to call more than once.
func (a *Adapter) Stop() error {
	a.lifecycleMu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.lifecycleMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	a.listenMu.Lock()
	stop := a.stopListen
	a.stopListen = nil
	a.listenMu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}

// Online reports whether the database answered the last health check.
func (a *Adapter) Online() bool {
	return a.online.Load()
}

// Pending reports how many writes are waiting for the database to come back.
func (a *Adapter) Pending() int {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return len(a.outbox)
}

func (a *Adapter) Subscribe(collection store.Collection, fn func([]store.Record)) (func(), error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("subscribe %s: unknown collection", collection)
	}
	return a.hub.Subscribe(collection, fn), nil
}

func (a *Adapter) Insert(ctx context.Context, collection store.Collection, record store.Record) (string, error) {
	if record.ID == "" {
		record.ID = util.NewID("")
	}
	if err := a.write(ctx, pendingOp{kind: opInsert, collection: collection, record: record}); err != nil {
		return "", err
	}
	return record.ID, nil
}

func (a *Adapter) Replace(ctx context.Context, collection store.Collection, record store.Record) error {
	return a.write(ctx, pendingOp{kind: opReplace, collection: collection, record: record})
}

func (a *Adapter) Delete(ctx context.Context, collection store.Collection, id string) error {
	return a.write(ctx, pendingOp{kind: opDelete, collection: collection, id: id})
}

func (a *Adapter) DeleteBatch(ctx context.Context, refs []store.Ref) error {
	if len(refs) == 0 {
		return nil
	}
	return a.write(ctx, pendingOp{kind: opDeleteBatch, refs: refs})
}

func (a *Adapter) UploadBlob(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if a.blobs == nil {
		return "", errors.New("upload blob: no blob store configured")
	}
	return a.blobs.Upload(ctx, path, contentType, data)
}

// DeleteBlob is never queued.
func (a *Adapter) DeleteBlob(ctx context.Context, path string) error {
	if a.blobs == nil {
		return errors.New("delete blob: no blob store configured")
	}
	if !a.online.Load() {
		return fmt.Errorf("delete blob %s: %w", path, store.ErrOffline)
	}
	return a.blobs.Delete(ctx, path)
}

// Reset is not offered on a shared database.
func (a *Adapter) Reset(ctx context.Context) error {
	return fmt.Errorf("reset: %w", errors.ErrUnsupported)
}

func (a *Adapter) write(ctx context.Context, op pendingOp) error {
	for _, collection := range op.collections() {
		if !collection.Valid() {
			return fmt.Errorf("%s %s: unknown collection", op.kind, collection)
		}
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if a.online.Load() {
		err := op.commit(ctx, a.records)
		if err == nil {
			a.committed(ctx, op.collections())
			return nil
		}
		if rejected(err) || ctx.Err() != nil || a.reachable(ctx) {
			return err
		}
		if a.online.Swap(false) {
			log.Warn().Err(err).Msg("remote: database unreachable, queueing changes")
		}
	}
	return a.enqueue(ctx, op)
}

// enqueue applies op to the cached snapshots and holds it for the next flush. Nothing
// is delivered until the op is durable. Caller holds writeMu.
func (a *Adapter) enqueue(ctx context.Context, op pendingOp) error {
	collections := op.collections()
	for _, collection := range collections {
		mu := a.refreshMu[collection]
		mu.Lock()
		defer mu.Unlock()
	}

	next := make(map[store.Collection][]store.Record, len(collections))
	for _, collection := range collections {
		current, _ := a.hub.Latest(collection)
		records, err := op.applyCached(collection, current)
		if err != nil {
			return err
		}
		next[collection] = records
	}

	if a.cache != nil {
		seq, err := a.cache.Enqueue(ctx, op)
		if err != nil {
			return err
		}
		op.seq = seq
	}
	for _, collection := range collections {
		a.publish(ctx, collection, next[collection])
	}

	a.outbox = append(a.outbox, op)
	log.Debug().Str("op", op.kind.String()).Int("pending", len(a.outbox)).Msg("remote: queued change")
	return nil
}

// flush replays the outbox in order and marks the adapter online when it empties.
// It reports false when the database went away again part way.
func (a *Adapter) flush(ctx context.Context) bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	touched := make(map[store.Collection]struct{})
	for len(a.outbox) > 0 {
		op := a.outbox[0]
		if err := op.commit(ctx, a.records); err != nil {
			if !rejected(err) && !a.reachable(ctx) {
				log.Warn().Err(err).Int("pending", len(a.outbox)).Msg("remote: flush interrupted")
				return false
			}
			log.Warn().Err(err).Str("op", op.kind.String()).Msg("remote: dropping queued change rejected by database")
		}
		if a.cache != nil {
			if err := a.cache.Dequeue(ctx, op.seq); err != nil {
				// Replaying it later is harmless: the database rejects it as a duplicate or a miss.
				log.Warn().Err(err).Int64("seq", op.seq).Msg("remote: could not clear queued change")
			}
		}
		a.outbox[0] = pendingOp{}
		a.outbox = a.outbox[1:]
		for _, collection := range op.collections() {
			touched[collection] = struct{}{}
		}
	}
	a.outbox = nil
	a.online.Store(true)

	for collection := range touched {
		a.announce(ctx, collection)
	}
	return true
}

func (a *Adapter) committed(ctx context.Context, collections []store.Collection) {
	for _, collection := range collections {
		a.announce(ctx, collection)
		if err := a.refresh(ctx, collection); err != nil {
			log.Warn().Err(err).Str("collection", string(collection)).Msg("remote: refresh after write failed")
		}
	}
}

func (a *Adapter) announce(ctx context.Context, collection store.Collection) {
	if a.changes == nil {
		return
	}
	if err := a.changes.Publish(ctx, collection); err != nil {
		log.Warn().Err(err).Str("collection", string(collection)).Msg("remote: change announcement failed")
	}
}

func (a *Adapter) refresh(ctx context.Context, collection store.Collection) error {
	mu := a.refreshMu[collection]
	mu.Lock()
	defer mu.Unlock()

	records, err := a.records.List(ctx, collection)
	if err != nil {
		return err
	}
	a.publish(ctx, collection, records)
	return nil
}

// publish delivers records and keeps them for the next start. Caller holds the
// collection's refreshMu.
func (a *Adapter) publish(ctx context.Context, collection store.Collection, records []store.Record) {
	a.hub.Publish(collection, records)
	if a.cache == nil {
		return
	}
	if err := a.cache.SaveSnapshot(ctx, collection, records); err != nil {
		log.Warn().Err(err).Str("collection", string(collection)).Msg("remote: snapshot not cached")
	}
}

func (a *Adapter) refreshAll(ctx context.Context) {
	for _, collection := range store.Collections {
		if err := a.refresh(ctx, collection); err != nil {
			log.Warn().Err(err).Str("collection", string(collection)).Msg("remote: load failed")
		}
	}
}

func (a *Adapter) ensureListener(ctx context.Context) {
	if a.changes == nil {
		return
	}
	a.listenMu.Lock()
	defer a.listenMu.Unlock()
	if a.stopListen != nil {
		return
	}

	stop, err := a.changes.Listen(ctx, func(collection store.Collection) {
		if !a.online.Load() {
			return
		}
		if err := a.refresh(ctx, collection); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("collection", string(collection)).Msg("remote: refresh on change failed")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("remote: change listener unavailable")
		return
	}
	a.stopListen = stop
}

func (a *Adapter) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.checkHealth(ctx)
		}
	}
}

func (a *Adapter) checkHealth(ctx context.Context) {
	if !a.reachable(ctx) {
		if a.online.Swap(false) {
			log.Warn().Msg("remote: database unreachable")
		}
		return
	}
	if !a.online.Load() {
		if !a.flush(ctx) {
			return
		}
		log.Info().Msg("remote: database reachable again, reloading")
		a.refreshAll(ctx)
	} else if a.changes == nil {
		// Without a change feed, poll.
		a.refreshAll(ctx)
	}
	a.ensureListener(ctx)
}

func (a *Adapter) reachable(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.records.Ping(pingCtx) == nil
}

// rejected reports whether the database refused the write for a reason other than
// connectivity.
func rejected(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicateID)
}
