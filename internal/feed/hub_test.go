package feed

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

func records(ids ...string) []store.Record {
	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.Record{ID: id, Body: json.RawMessage(`{"id":"` + id + `"}`)})
	}
	return out
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) fn(snapshot []store.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(snapshot))
	for _, rec := range snapshot {
		ids = append(ids, rec.ID)
	}
	r.calls = append(r.calls, ids)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func TestSubscribeBeforePublishWaitsForFirstSnapshot(t *testing.T) {
	hub := NewHub()
	var rec recorder
	stop := hub.Subscribe(store.Projects, rec.fn)
	defer stop()

	assert.Empty(t, rec.snapshot())
	hub.Publish(store.Projects, records("p1"))
	assert.Equal(t, [][]string{{"p1"}}, rec.snapshot())
}

func TestSubscribeAfterPublishGetsLatestImmediately(t *testing.T) {
	hub := NewHub()
	hub.Publish(store.Tasks, records("t1", "t2"))

	var rec recorder
	stop := hub.Subscribe(store.Tasks, rec.fn)
	defer stop()
	assert.Equal(t, [][]string{{"t1", "t2"}}, rec.snapshot())
}

func TestIndependentSubscribersEachReceiveEveryUpdate(t *testing.T) {
	hub := NewHub()
	var a, b recorder
	stopA := hub.Subscribe(store.Staff, a.fn)
	stopB := hub.Subscribe(store.Staff, b.fn)
	defer stopB()

	hub.Publish(store.Staff, records("s1"))
	stopA()
	hub.Publish(store.Staff, records("s1", "s2"))

	assert.Equal(t, [][]string{{"s1"}}, a.snapshot())
	assert.Equal(t, [][]string{{"s1"}, {"s1", "s2"}}, b.snapshot())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	var rec recorder
	stop := hub.Subscribe(store.Costs, rec.fn)
	stop()
	stop()
	hub.Publish(store.Costs, records("c1"))
	assert.Empty(t, rec.snapshot())
}

func TestSubscribersCannotMutateSharedSnapshot(t *testing.T) {
	hub := NewHub()
	stop := hub.Subscribe(store.Projects, func(snapshot []store.Record) {
		snapshot[0].ID = "mutated"
	})
	defer stop()
	hub.Publish(store.Projects, records("p1"))

	latest, ok := hub.Latest(store.Projects)
	require.True(t, ok)
	assert.Equal(t, "p1", latest[0].ID)
}

func TestLatestBeforePublish(t *testing.T) {
	hub := NewHub()
	_, ok := hub.Latest(store.Documents)
	assert.False(t, ok)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var rec recorder
			stop := hub.Subscribe(store.Tasks, rec.fn)
			hub.Publish(store.Tasks, records("t"))
			stop()
			n := len(rec.snapshot())
			hub.Publish(store.Tasks, records("t", "u"))
			assert.Equal(t, n, len(rec.snapshot()))
		}()
	}
	wg.Wait()
}
