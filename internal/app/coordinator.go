package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/invoice"
	"github.com/PeacockIllustrated/project-manager/internal/overlay"
	"github.com/PeacockIllustrated/project-manager/internal/store"
	"github.com/PeacockIllustrated/project-manager/internal/util"
)

type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "uninitialized"
}

type Config struct {
	CascadeTimeout     time.Duration
	CascadeConcurrency int
	SampleOverlay      bool
}

const (
	defaultCascadeTimeout     = 30 * time.Second
	defaultCascadeConcurrency = 8
	createAttempts            = 3
)

// Coordinator owns every business entity. It validates and guards writes, routes them to
// the active backend and serves reads from the snapshots the backend delivers.
type Coordinator struct {
	backend   store.Backend
	extractor invoice.Extractor
	validate  *validator.Validate
	now       func() time.Time
	cfg       Config

	overlayEnabled atomic.Bool
	sampleIDs      map[store.Collection]map[string]struct{}

	lifecycleMu sync.Mutex
	unsubscribe []func()

	// refMu is held for reading by writes that reference a project and for writing by
	// DeleteProject, so no child can appear under a project being removed.
	refMu sync.RWMutex
	// batchMu is held for writing while a multi-collection batch lands, so reads see all
	// of it or none.
	batchMu sync.RWMutex

	mu        sync.RWMutex
	state     State
	snapshots map[store.Collection][]store.Record
	ready     chan struct{}
}

type Option func(*Coordinator)

func WithExtractor(extractor invoice.Extractor) Option {
	return func(c *Coordinator) {
		c.extractor = extractor
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(backend store.Backend, cfg Config, opts ...Option) *Coordinator {
	if cfg.CascadeTimeout <= 0 {
		cfg.CascadeTimeout = defaultCascadeTimeout
	}
	if cfg.CascadeConcurrency <= 0 {
		cfg.CascadeConcurrency = defaultCascadeConcurrency
	}

	c := &Coordinator{
		backend:   backend,
		validate:  newValidator(),
		now:       time.Now,
		cfg:       cfg,
		sampleIDs: sampleIDs(overlay.Samples()),
		snapshots: make(map[store.Collection][]store.Record),
		ready:     make(chan struct{}),
	}
	c.overlayEnabled.Store(cfg.SampleOverlay)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func sampleIDs(set overlay.Set) map[store.Collection]map[string]struct{} {
	ids := map[store.Collection]map[string]struct{}{
		store.Projects: {},
		store.Tasks:    {},
		store.Staff:    {},
		store.Costs:    {},
	}
	for _, p := range set.Projects {
		ids[store.Projects][p.ID] = struct{}{}
	}
	for _, t := range set.Tasks {
		ids[store.Tasks][t.ID] = struct{}{}
	}
	for _, s := range set.Staff {
		ids[store.Staff][s.ID] = struct{}{}
	}
	for _, cost := range set.Costs {
		ids[store.Costs][cost.ID] = struct{}{}
	}
	return ids
}

// Start starts the backend and subscribes to every collection. The coordinator is
// Ready once each collection has delivered its first snapshot.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.backend.Start(ctx); err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.subscribe()
	return nil
}

// Stop drops every subscription and stops the backend.
func (c *Coordinator) Stop() error {
	c.lifecycleMu.Lock()
	c.unsubscribeAll()
	c.lifecycleMu.Unlock()
	return c.backend.Stop()
}

// Reload drops all subscriptions and subscribes again, going back through Loading.
func (c *Coordinator) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.unsubscribeAll()
	c.subscribe()
	return nil
}

// Reset asks the backend to wipe and reseed its data. Shared backends refuse.
func (c *Coordinator) Reset(ctx context.Context) error {
	if err := c.backend.Reset(ctx); err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return domainError(ErrUnsupported, "UNSUPPORTED", "reset is not available for this backend", nil, err)
		}
		log.Error().Err(err).Str("op", "reset").Msg("app: reset failed")
		return persistenceError("reset", "all", "", err)
	}
	return nil
}

// subscribe must be called with lifecycleMu held.
func (c *Coordinator) subscribe() {
	c.mu.Lock()
	c.state = StateLoading
	c.snapshots = make(map[store.Collection][]store.Record)
	select {
	case <-c.ready:
		c.ready = make(chan struct{})
	default:
	}
	c.mu.Unlock()

	for _, collection := range store.Collections {
		stop, err := c.backend.Subscribe(collection, c.onSnapshot(collection))
		if err != nil {
			log.Error().Err(err).Str("collection", string(collection)).Msg("app: subscribe failed")
			continue
		}
		c.unsubscribe = append(c.unsubscribe, stop)
	}
}

// unsubscribeAll must be called with lifecycleMu held.
func (c *Coordinator) unsubscribeAll() {
	for _, stop := range c.unsubscribe {
		stop()
	}
	c.unsubscribe = nil
}

func (c *Coordinator) onSnapshot(collection store.Collection) func([]store.Record) {
	return func(records []store.Record) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.snapshots[collection] = records
		if c.state == StateLoading && len(c.snapshots) == len(store.Collections) {
			c.state = StateReady
			close(c.ready)
			log.Info().Msg("app: all collections loaded")
		}
	}
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// WaitReady blocks until every collection has loaded or ctx ends.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) SetOverlay(enabled bool) {
	c.overlayEnabled.Store(enabled)
}

func (c *Coordinator) OverlayEnabled() bool {
	return c.overlayEnabled.Load()
}

func (c *Coordinator) records(collection store.Collection) []store.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshots[collection]
}

func (c *Coordinator) hasLive(collection store.Collection, id string) bool {
	if id == "" {
		return false
	}
	for _, record := range c.records(collection) {
		if record.ID == id {
			return true
		}
	}
	return false
}

// isSample reports whether id names a demonstration entity, either in the overlay set or
// as a stored record flagged isSample.
func (c *Coordinator) isSample(collection store.Collection, id string) bool {
	if _, ok := c.sampleIDs[collection][id]; ok {
		return true
	}
	for _, record := range c.records(collection) {
		if record.ID != id {
			continue
		}
		var marker struct {
			IsSample bool `json:"isSample"`
		}
		return json.Unmarshal(record.Body, &marker) == nil && marker.IsSample
	}
	return false
}

func (c *Coordinator) requireReady() error {
	if c.State() != StateReady {
		return domainError(ErrNotReady, "NOT_READY", "data is still loading", nil, nil)
	}
	return nil
}

func (c *Coordinator) validateEntity(entity any) error {
	err := c.validate.Struct(entity)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(err.Error())
	}
	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		names = append(names, fe.Field())
	}
	return validationError("invalid "+strings.Join(names, ", "), fields...)
}

func (c *Coordinator) requireLive(collection store.Collection, field, id string) error {
	if c.hasLive(collection, id) {
		return nil
	}
	return validationError(fmt.Sprintf("%s does not name an existing %s", field, collection),
		FieldError{Field: field, Rule: "exists", Value: id})
}

func create[E store.Entity[E]](ctx context.Context, c *Coordinator, collection store.Collection, entity E, check func(E) error) (E, error) {
	var zero E
	if err := c.requireReady(); err != nil {
		return zero, err
	}
	if entity.SampleData() {
		return zero, readOnlyError("create", string(collection), entity.EntityID())
	}
	if err := c.validateEntity(entity); err != nil {
		return zero, err
	}
	if check != nil {
		c.refMu.RLock()
		defer c.refMu.RUnlock()
		if err := check(entity); err != nil {
			return zero, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		entity = entity.WithID(util.NewID(""))
		if c.hasLive(collection, entity.EntityID()) {
			continue
		}
		record, err := store.EncodeRecord(entity)
		if err != nil {
			return zero, validationError(err.Error())
		}
		if _, err := c.backend.Insert(ctx, collection, record); err != nil {
			if errors.Is(err, store.ErrDuplicateID) {
				lastErr = err
				continue
			}
			return zero, c.logPersistence("create", collection, entity.EntityID(), err)
		}
		return entity, nil
	}
	return zero, c.logPersistence("create", collection, "", fmt.Errorf("no free id after %d attempts: %w", createAttempts, lastErr))
}

func update[E store.Entity[E]](ctx context.Context, c *Coordinator, collection store.Collection, entity E, check func(E) error) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	id := entity.EntityID()
	if entity.SampleData() || c.isSample(collection, id) {
		return readOnlyError("update", string(collection), id)
	}
	if id == "" {
		return validationError("id is required", FieldError{Field: "id", Rule: "required"})
	}
	if err := c.validateEntity(entity); err != nil {
		return err
	}
	if check != nil {
		c.refMu.RLock()
		defer c.refMu.RUnlock()
		if err := check(entity); err != nil {
			return err
		}
	}

	record, err := store.EncodeRecord(entity)
	if err != nil {
		return validationError(err.Error())
	}
	if err := c.backend.Replace(ctx, collection, record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(string(collection), id, err)
		}
		return c.logPersistence("update", collection, id, err)
	}
	return nil
}

func (c *Coordinator) remove(ctx context.Context, collection store.Collection, id string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if c.isSample(collection, id) {
		return readOnlyError("delete", string(collection), id)
	}
	if err := c.backend.Delete(ctx, collection, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(string(collection), id, err)
		}
		return c.logPersistence("delete", collection, id, err)
	}
	return nil
}

func (c *Coordinator) logPersistence(op string, collection store.Collection, id string, err error) error {
	log.Error().Err(err).
		Str("op", op).
		Str("collection", string(collection)).
		Str("id", id).
		Msg("app: write failed")
	return persistenceError(op, string(collection), id, err)
}

func (c *Coordinator) CreateProject(ctx context.Context, p store.Project) (store.Project, error) {
	return create(ctx, c, store.Projects, p, nil)
}

func (c *Coordinator) UpdateProject(ctx context.Context, p store.Project) error {
	return update(ctx, c, store.Projects, p, nil)
}

func (c *Coordinator) CreateTask(ctx context.Context, t store.Task) (store.Task, error) {
	return create(ctx, c, store.Tasks, t, c.checkTask)
}

func (c *Coordinator) UpdateTask(ctx context.Context, t store.Task) error {
	return update(ctx, c, store.Tasks, t, c.checkTask)
}

func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	return c.remove(ctx, store.Tasks, id)
}

func (c *Coordinator) checkTask(t store.Task) error {
	if err := c.requireLive(store.Projects, "projectId", t.ProjectID); err != nil {
		return err
	}
	if t.AssigneeID != "" {
		return c.requireLive(store.Staff, "assigneeId", t.AssigneeID)
	}
	return nil
}

func (c *Coordinator) CreateStaff(ctx context.Context, m store.StaffMember) (store.StaffMember, error) {
	return create(ctx, c, store.Staff, m, nil)
}

func (c *Coordinator) UpdateStaff(ctx context.Context, m store.StaffMember) error {
	return update(ctx, c, store.Staff, m, nil)
}

// DeleteStaff leaves tasks assigned to the member in place.
func (c *Coordinator) DeleteStaff(ctx context.Context, id string) error {
	return c.remove(ctx, store.Staff, id)
}

func (c *Coordinator) CreateCost(ctx context.Context, item store.CostItem) (store.CostItem, error) {
	return create(ctx, c, store.Costs, item, c.checkCost)
}

func (c *Coordinator) UpdateCost(ctx context.Context, item store.CostItem) error {
	return update(ctx, c, store.Costs, item, c.checkCost)
}

func (c *Coordinator) DeleteCost(ctx context.Context, id string) error {
	return c.remove(ctx, store.Costs, id)
}

func (c *Coordinator) checkCost(item store.CostItem) error {
	if err := c.requireLive(store.Projects, "projectId", item.ProjectID); err != nil {
		return err
	}
	if item.DocumentID != "" {
		return c.requireLive(store.Documents, "documentId", item.DocumentID)
	}
	return nil
}

// AddChangeRequest stamps and appends a change request. Change requests are never
// edited or removed.
func (c *Coordinator) AddChangeRequest(ctx context.Context, r store.ChangeRequest) (store.ChangeRequest, error) {
	r.SubmittedAt = store.NewTimestamp(c.now())
	return create(ctx, c, store.ChangeRequests, r, nil)
}

// ExtractInvoice reads an invoice image and returns an unsaved cost for projectID.
// The caller confirms it and saves it with CreateCost.
func (c *Coordinator) ExtractInvoice(ctx context.Context, image []byte, mimeType, projectID string) (store.CostItem, error) {
	if c.extractor == nil {
		return store.CostItem{}, domainError(ErrUnsupported, "EXTRACTION_UNAVAILABLE", "invoice extraction is not configured", nil, nil)
	}
	if err := c.requireReady(); err != nil {
		return store.CostItem{}, err
	}
	if len(image) == 0 {
		return store.CostItem{}, validationError("image is required", FieldError{Field: "image", Rule: "required"})
	}
	if err := c.requireLive(store.Projects, "projectId", projectID); err != nil {
		return store.CostItem{}, err
	}

	data, err := c.extractor.Extract(ctx, image, mimeType)
	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		log.Warn().Err(err).Str("projectId", projectID).Msg("app: invoice extraction failed")
		return store.CostItem{}, domainError(ErrExtraction, "EXTRACTION_FAILED",
			"the invoice could not be read", nil, err)
	}
	return data.CostDraft(projectID, ""), nil
}
