package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/PeacockIllustrated/project-manager/internal/blob"
	"github.com/PeacockIllustrated/project-manager/internal/store"
)

// DeleteProject removes a project with every task, cost and document that references it.
// All document blobs are deleted first; the metadata goes in one atomic batch only when
// every blob is gone. A blob that is already missing counts as deleted, so a failed
// cascade can simply be retried.
func (c *Coordinator) DeleteProject(ctx context.Context, id string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if c.isSample(store.Projects, id) {
		return readOnlyError("delete", string(store.Projects), id)
	}

	c.refMu.Lock()
	defer c.refMu.Unlock()
	if !c.hasLive(store.Projects, id) {
		return notFoundError(string(store.Projects), id, nil)
	}

	_, paths, err := c.dependents(id)
	if err != nil {
		return c.logPersistence("delete", store.Projects, id, err)
	}
	if details, err := c.deleteBlobs(ctx, id, paths); err != nil {
		return c.abortCascade(details, err)
	}

	// Another process may have attached records while the blobs were going.
	refs, current, err := c.dependents(id)
	if err != nil {
		return c.logPersistence("delete", store.Projects, id, err)
	}
	if extra := newPaths(paths, current); len(extra) > 0 {
		if details, err := c.deleteBlobs(ctx, id, extra); err != nil {
			return c.abortCascade(details, err)
		}
	}

	if err := c.commitBatch(ctx, refs); err != nil {
		return c.logPersistence("cascade-delete", store.Projects, id, err)
	}
	log.Info().Str("projectId", id).Int("records", len(refs)).Int("blobs", len(current)).Msg("app: project deleted")
	return nil
}

// commitBatch applies refs with readers held off. Backends deliver the resulting
// snapshots before DeleteBatch returns.
func (c *Coordinator) commitBatch(ctx context.Context, refs []store.Ref) error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.backend.DeleteBatch(ctx, refs)
}

func (c *Coordinator) abortCascade(details CascadeDetails, err error) error {
	log.Error().Err(err).
		Str("projectId", details.ProjectID).
		Strs("deleted", details.Deleted).
		Int("failed", len(details.Failed)).
		Msg("app: cascade aborted before commit")
	return cascadeError(details, err)
}

func newPaths(seen, current []string) []string {
	known := make(map[string]struct{}, len(seen))
	for _, path := range seen {
		known[path] = struct{}{}
	}
	var extra []string
	for _, path := range current {
		if _, ok := known[path]; !ok {
			extra = append(extra, path)
		}
	}
	return extra
}

// dependents lists the refs of the project and everything pointing at it, plus the blob
// paths of its documents.
func (c *Coordinator) dependents(projectID string) ([]store.Ref, []string, error) {
	tasks, err := liveEntities[store.Task](c, store.Tasks)
	if err != nil {
		return nil, nil, err
	}
	costs, err := liveEntities[store.CostItem](c, store.Costs)
	if err != nil {
		return nil, nil, err
	}
	documents, err := liveEntities[store.Document](c, store.Documents)
	if err != nil {
		return nil, nil, err
	}

	var refs []store.Ref
	for _, t := range tasks {
		if t.ProjectID == projectID {
			refs = append(refs, store.Ref{Collection: store.Tasks, ID: t.ID})
		}
	}
	for _, cost := range costs {
		if cost.ProjectID == projectID {
			refs = append(refs, store.Ref{Collection: store.Costs, ID: cost.ID})
		}
	}
	var paths []string
	for _, d := range documents {
		if d.ProjectID == projectID {
			refs = append(refs, store.Ref{Collection: store.Documents, ID: d.ID})
			if d.StoragePath != "" {
				paths = append(paths, d.StoragePath)
			}
		}
	}
	refs = append(refs, store.Ref{Collection: store.Projects, ID: projectID})
	return refs, paths, nil
}

// deleteBlobs deletes paths concurrently and waits for all of them, or for the cascade
// timeout. Paths still running or not yet started at the timeout are reported as failed,
// and no deletion starts after it.
func (c *Coordinator) deleteBlobs(ctx context.Context, projectID string, paths []string) (CascadeDetails, error) {
	details := CascadeDetails{ProjectID: projectID, Deleted: []string{}, Failed: map[string]string{}}
	if len(paths) == 0 {
		return details, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CascadeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		deleted = make(map[string]bool, len(paths))
		failed  = make(map[string]string)
	)

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.CascadeConcurrency)
	done := make(chan error, 1)
	go func() {
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			path := path
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := c.backend.DeleteBlob(ctx, path)
				if errors.Is(err, blob.ErrNotFound) {
					err = nil
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed[path] = err.Error()
					return fmt.Errorf("delete blob %s: %w", path, err)
				}
				deleted[path] = true
				return nil
			})
		}
		done <- g.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for blob deletions: %w", ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	for _, path := range paths {
		switch {
		case deleted[path]:
			details.Deleted = append(details.Deleted, path)
		case failed[path] != "":
			details.Failed[path] = failed[path]
		default:
			details.Failed[path] = "timed out"
		}
	}
	sort.Strings(details.Deleted)
	if err == nil && len(details.Failed) > 0 {
		err = errors.New("blob deletion incomplete")
	}
	return details, err
}

// UploadDocument stores data as a blob under a fresh path and records its metadata.
// The blob is removed again when the metadata cannot be written.
func (c *Coordinator) UploadDocument(ctx context.Context, projectID, filename, contentType string, data []byte) (store.Document, error) {
	if err := c.requireReady(); err != nil {
		return store.Document{}, err
	}
	c.refMu.RLock()
	defer c.refMu.RUnlock()
	if filename == "" {
		return store.Document{}, validationError("name is required", FieldError{Field: "name", Rule: "required"})
	}
	if err := c.requireLive(store.Projects, "projectId", projectID); err != nil {
		return store.Document{}, err
	}

	path := blob.DocumentPath(projectID, filename)
	url, err := c.backend.UploadBlob(ctx, path, contentType, data)
	if err != nil {
		return store.Document{}, c.logPersistence("upload", store.Documents, path, err)
	}

	doc := store.Document{
		Name:        filename,
		URL:         url,
		ProjectID:   projectID,
		FileType:    contentType,
		StoragePath: path,
		UploadedAt:  store.NewTimestamp(c.now()),
	}
	created, err := create(ctx, c, store.Documents, doc, nil)
	if err != nil {
		if cleanupErr := c.backend.DeleteBlob(ctx, path); cleanupErr != nil {
			log.Error().Err(cleanupErr).Str("path", path).Msg("app: orphaned blob after failed upload")
		}
		return store.Document{}, err
	}
	return created, nil
}

// DeleteDocument removes the blob, then the metadata. Costs that point at the document
// keep their documentId.
func (c *Coordinator) DeleteDocument(ctx context.Context, id string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	documents, err := liveEntities[store.Document](c, store.Documents)
	if err != nil {
		return c.logPersistence("delete", store.Documents, id, err)
	}
	var doc *store.Document
	for i := range documents {
		if documents[i].ID == id {
			doc = &documents[i]
			break
		}
	}
	if doc == nil {
		return notFoundError(string(store.Documents), id, nil)
	}

	if doc.StoragePath != "" {
		if err := c.backend.DeleteBlob(ctx, doc.StoragePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
			return c.logPersistence("delete-blob", store.Documents, id, err)
		}
	}
	return c.remove(ctx, store.Documents, id)
}
