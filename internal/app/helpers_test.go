package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/infra/memory"
)

// stepClock hands out strictly increasing timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// manualTicker lets tests fire scheduler ticks by hand.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) Func() app.TickerFunc {
	return func(time.Duration) (<-chan time.Time, func()) {
		return m.ch, func() {}
	}
}

func (m *manualTicker) Fire(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery loop is waiting for a tick")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// spyQueue counts MarkPosted calls on top of a real store.
type spyQueue struct {
	*app.Store
	mu         sync.Mutex
	markPosted int
}

func (q *spyQueue) MarkPosted(ctx context.Context, id int64, ref string) (domain.MCQ, error) {
	q.mu.Lock()
	q.markPosted++
	q.mu.Unlock()
	return q.Store.MarkPosted(ctx, id, ref)
}

func (q *spyQueue) MarkPostedCalls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.markPosted
}

func newTestStore(opts ...app.StoreOption) (*app.Store, *memory.DocumentStore) {
	backend := memory.NewDocumentStore()
	opts = append([]app.StoreOption{app.WithStoreClock(newStepClock().Now)}, opts...)
	return app.NewStore(backend, opts...), backend
}

func mustAppend(t *testing.T, store *app.Store, question string, options []string, correct int) domain.MCQ {
	t.Helper()
	item, err := store.Append(context.Background(), question, options, correct, "tester")
	if err != nil {
		t.Fatalf("append %q: %v", question, err)
	}
	return item
}
