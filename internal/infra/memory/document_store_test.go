package memory

import (
	"context"
	"errors"
	"testing"

	"mcq-queue-service/internal/domain"
)

func TestDocumentStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found before first save, got %v", err)
	}

	if err := store.Save(ctx, []byte(`{"next_id":1,"items":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"next_id":1,"items":[]}` {
		t.Fatalf("unexpected document %q", data)
	}

	// Callers mutating the returned slice must not corrupt the stored copy.
	data[0] = 'X'
	if got := store.Bytes(); got[0] != '{' {
		t.Fatalf("stored document was aliased")
	}
}

func TestDocumentStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStoreWith([]byte(`{}`))
	boom := errors.New("boom")

	store.FailSaves(boom)
	if err := store.Save(ctx, []byte(`{"next_id":2}`)); !errors.Is(err, boom) {
		t.Fatalf("expected injected save error, got %v", err)
	}
	if string(store.Bytes()) != `{}` || store.Saves() != 0 {
		t.Fatalf("failed save must not change the document")
	}

	store.FailSaves(nil)
	store.FailLoads(boom)
	if _, err := store.Load(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected injected load error, got %v", err)
	}
}
