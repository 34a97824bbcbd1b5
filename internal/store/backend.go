package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate record id")
	ErrOffline     = errors.New("backend offline")
)

// Record is one stored entity: its id plus the full JSON body (which also carries the id).
type Record struct {
	ID   string
	Body json.RawMessage
}

// Ref addresses one record for batch operations.
type Ref struct {
	Collection Collection
	ID         string
}

// Backend is the active store behind the coordinator. Exactly one implementation is
// selected at process start.
//
// Subscribe invokes fn with the full current snapshot of the collection once right
// away and again after every committed change, whatever its origin. The returned
// function stops delivery; no callback starts after it returns. It must not be called
// from inside fn.
//
// DeleteBatch removes every ref in one atomic unit. Missing refs are ignored.
type Backend interface {
	Start(ctx context.Context) error
	Stop() error
	Subscribe(collection Collection, fn func([]Record)) (func(), error)
	Insert(ctx context.Context, collection Collection, record Record) (string, error)
	Replace(ctx context.Context, collection Collection, record Record) error
	Delete(ctx context.Context, collection Collection, id string) error
	DeleteBatch(ctx context.Context, refs []Ref) error
	UploadBlob(ctx context.Context, path, contentType string, data []byte) (string, error)
	DeleteBlob(ctx context.Context, path string) error
	Reset(ctx context.Context) error
}
