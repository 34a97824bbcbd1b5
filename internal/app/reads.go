package app

import (
	"fmt"

	"github.com/PeacockIllustrated/project-manager/internal/overlay"
	"github.com/PeacockIllustrated/project-manager/internal/store"
)

func liveEntities[E any](c *Coordinator, collection store.Collection) ([]E, error) {
	entities, err := store.DecodeRecords[E](c.records(collection))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return entities, nil
}

// readMerged waits out any batch being applied, so a reader never sees part of one.
func readMerged[E any](c *Coordinator, collection store.Collection, sample func(overlay.Set) []E) ([]E, error) {
	c.batchMu.RLock()
	defer c.batchMu.RUnlock()
	return merged(c, collection, sample)
}

func merged[E any](c *Coordinator, collection store.Collection, sample func(overlay.Set) []E) ([]E, error) {
	live, err := liveEntities[E](c, collection)
	if err != nil {
		return nil, persistenceError("read", string(collection), "", err)
	}
	enabled := c.OverlayEnabled()
	if !enabled {
		return live, nil
	}
	return overlay.Merge(live, sample(overlay.Samples()), enabled), nil
}

func sampleProjects(s overlay.Set) []store.Project { return s.Projects }
func sampleTasks(s overlay.Set) []store.Task       { return s.Tasks }

func (c *Coordinator) Projects() ([]store.Project, error) {
	return readMerged(c, store.Projects, sampleProjects)
}

func (c *Coordinator) Tasks() ([]store.Task, error) {
	return readMerged(c, store.Tasks, sampleTasks)
}

func (c *Coordinator) Staff() ([]store.StaffMember, error) {
	return readMerged(c, store.Staff, func(s overlay.Set) []store.StaffMember { return s.Staff })
}

func (c *Coordinator) Costs() ([]store.CostItem, error) {
	return readMerged(c, store.Costs, func(s overlay.Set) []store.CostItem { return s.Costs })
}

func (c *Coordinator) Documents() ([]store.Document, error) {
	return readMerged(c, store.Documents, func(overlay.Set) []store.Document { return nil })
}

func (c *Coordinator) ChangeRequests() ([]store.ChangeRequest, error) {
	return readMerged(c, store.ChangeRequests, func(overlay.Set) []store.ChangeRequest { return nil })
}

// Read returns the typed, overlay-merged contents of any collection.
func (c *Coordinator) Read(collection store.Collection) (any, error) {
	switch collection {
	case store.Projects:
		return c.Projects()
	case store.Tasks:
		return c.Tasks()
	case store.Staff:
		return c.Staff()
	case store.Costs:
		return c.Costs()
	case store.Documents:
		return c.Documents()
	case store.ChangeRequests:
		return c.ChangeRequests()
	}
	return nil, notFoundError("collection", string(collection), nil)
}

// ProjectTasks returns a project with its tasks, as the task board shows them.
func (c *Coordinator) ProjectTasks(projectID string) (store.ProjectWithTasks, error) {
	c.batchMu.RLock()
	defer c.batchMu.RUnlock()
	projects, err := merged(c, store.Projects, sampleProjects)
	if err != nil {
		return store.ProjectWithTasks{}, err
	}
	tasks, err := merged(c, store.Tasks, sampleTasks)
	if err != nil {
		return store.ProjectWithTasks{}, err
	}
	for _, p := range projects {
		if p.ID != projectID {
			continue
		}
		view := store.ProjectWithTasks{Project: p, Tasks: []store.Task{}}
		for _, t := range tasks {
			if t.ProjectID == projectID {
				view.Tasks = append(view.Tasks, t)
			}
		}
		return view, nil
	}
	return store.ProjectWithTasks{}, notFoundError(string(store.Projects), projectID, nil)
}
