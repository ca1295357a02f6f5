package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-undo/pkg/state"
)

func TestMemoryStoreSaveStampsMeta(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}

	meta, err := store.Save(context.Background(), ref, state.Checkpoint{Revision: 4, Values: map[string]any{"a": 1}}, state.Meta{
		Extra: map[string]string{"origin": "test"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.ETag == "" || meta.UpdatedAt.IsZero() {
		t.Fatalf("expected etag and timestamp, got %+v", meta)
	}
	if meta.SnapshotID != "checkpoint/ledger/main@4" {
		t.Fatalf("expected derived snapshot id, got %q", meta.SnapshotID)
	}

	checkpoint, loaded, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if checkpoint.Revision != 4 || checkpoint.Values["a"] != 1 {
		t.Fatalf("unexpected checkpoint %+v", checkpoint)
	}
	if loaded.ETag != meta.ETag || loaded.Extra["origin"] != "test" {
		t.Fatalf("unexpected loaded meta %+v", loaded)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}
	values := map[string]any{"a": 1}
	if _, err := store.Save(context.Background(), ref, state.Checkpoint{Values: values}, state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	values["a"] = 2

	checkpoint, _, _, _ := store.Load(context.Background(), ref)
	if checkpoint.Values["a"] != 1 {
		t.Fatalf("expected stored copy, got %v", checkpoint.Values["a"])
	}
	checkpoint.Values["a"] = 3
	again, _, _, _ := store.Load(context.Background(), ref)
	if again.Values["a"] != 1 {
		t.Fatalf("expected loaded copy, got %v", again.Values["a"])
	}
}

func TestMemoryStoreRejectsStaleETag(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}

	first, err := store.Save(context.Background(), ref, state.Checkpoint{Revision: 1}, state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Save(context.Background(), ref, state.Checkpoint{Revision: 2}, state.Meta{ETag: first.ETag})
	if err != nil {
		t.Fatalf("save with current etag: %v", err)
	}
	if second.ETag == first.ETag {
		t.Fatalf("expected etag to rotate")
	}
	if _, err := store.Save(context.Background(), ref, state.Checkpoint{Revision: 3}, state.Meta{ETag: first.ETag}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if _, err := store.Save(context.Background(), state.Ref{Domain: "ledger", Stack: "other"}, state.Checkpoint{}, state.Meta{ETag: "missing"}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch for missing record, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := state.NewMemoryStore()
	_, _, ok, err := store.Load(context.Background(), state.Ref{Domain: "ledger", Stack: "main"})
	if err != nil || ok {
		t.Fatalf("expected missing record, ok=%t err=%v", ok, err)
	}
	if _, _, _, err := store.Load(context.Background(), state.Ref{}); err == nil {
		t.Fatalf("expected invalid ref error")
	}
}
