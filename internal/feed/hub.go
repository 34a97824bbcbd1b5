// Package feed fans collection snapshots out to subscribers.
package feed

import (
	"sync"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

// Hub keeps the latest snapshot of each collection and delivers every published
// snapshot to every live subscriber of that collection, in publish order.
type Hub struct {
	mu     sync.Mutex
	topics map[store.Collection]*topic
}

type topic struct {
	mu     sync.Mutex
	primed bool
	latest []store.Record
	subs   []*subscriber
}

type subscriber struct {
	fn func([]store.Record)
}

func NewHub() *Hub {
	return &Hub{topics: make(map[store.Collection]*topic)}
}

func (h *Hub) topic(collection store.Collection) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[collection]
	if !ok {
		t = &topic{}
		h.topics[collection] = t
	}
	return t
}

// Subscribe registers fn and, when the collection has been published at least once,
// delivers the latest snapshot right away. The returned function unregisters fn and
// waits for any delivery in progress to finish.
func (h *Hub) Subscribe(collection store.Collection, fn func([]store.Record)) func() {
	t := h.topic(collection)
	sub := &subscriber{fn: fn}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	if t.primed {
		fn(store.CloneRecords(t.latest))
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, existing := range t.subs {
				if existing == sub {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish replaces the latest snapshot and delivers it to every subscriber.
func (h *Hub) Publish(collection store.Collection, records []store.Record) {
	t := h.topic(collection)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = store.CloneRecords(records)
	t.primed = true
	for _, sub := range t.subs {
		sub.fn(store.CloneRecords(t.latest))
	}
}

// Latest returns the last published snapshot, if any.
func (h *Hub) Latest(collection store.Collection) ([]store.Record, bool) {
	t := h.topic(collection)
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.primed {
		return nil, false
	}
	return store.CloneRecords(t.latest), true
}
