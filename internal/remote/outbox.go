package remote

import (
	"context"
	"fmt"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

type opKind int

const (
	opInsert opKind = iota
	opReplace
	opDelete
	opDeleteBatch
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opReplace:
		return "replace"
	case opDelete:
		return "delete"
	case opDeleteBatch:
		return "delete-batch"
	}
	return "unknown"
}

func parseOpKind(s string) (opKind, error) {
	for _, kind := range []opKind{opInsert, opReplace, opDelete, opDeleteBatch} {
		if kind.String() == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown queued operation %q", s)
}

// pendingOp is one mutation, either applied straight away or held in the outbox
// while the database is unreachable.
type pendingOp struct {
	// seq is the durable outbox position, zero when the adapter has no cache.
	seq        int64
	kind       opKind
	collection store.Collection
	record     store.Record
	id         string
	refs       []store.Ref
}

func (op pendingOp) collections() []store.Collection {
	if op.kind == opDeleteBatch {
		order, _ := store.GroupRefs(op.refs)
		return order
	}
	return []store.Collection{op.collection}
}

func (op pendingOp) commit(ctx context.Context, records RecordStore) error {
	switch op.kind {
	case opInsert:
		return records.Insert(ctx, op.collection, op.record)
	case opReplace:
		return records.Replace(ctx, op.collection, op.record)
	case opDelete:
		return records.Delete(ctx, op.collection, op.id)
	default:
		return records.DeleteBatch(ctx, op.refs)
	}
}

// applyCached returns the cached contents of collection after op.
func (op pendingOp) applyCached(collection store.Collection, current []store.Record) ([]store.Record, error) {
	switch op.kind {
	case opInsert:
		return store.InsertRecord(current, op.record)
	case opReplace:
		return store.ReplaceRecord(current, op.record)
	case opDelete:
		return store.DeleteRecord(current, op.id)
	default:
		next := store.DeleteRefs(map[store.Collection][]store.Record{collection: current}, op.refs)
		return next[collection], nil
	}
}
