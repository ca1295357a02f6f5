package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-undo/kv"
	"github.com/goliatone/go-undo/pkg/state"
)

func TestCaptureSkipsPendingLayers(t *testing.T) {
	stack, err := kv.NewStack(kv.NewHead(map[string]any{"a": 1}))
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	pushSet(t, stack, "b", 2)
	if err := stack.Commit(1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	pushSet(t, stack, "c", 3)

	checkpoint := state.Capture(stack)
	if checkpoint.Revision != 1 {
		t.Fatalf("expected committed revision 1, got %d", checkpoint.Revision)
	}
	if len(checkpoint.Values) != 2 || checkpoint.Values["b"] != 2 {
		t.Fatalf("expected head values only, got %v", checkpoint.Values)
	}
}

func TestRestoreSeedsRevision(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}
	if _, err := store.Save(context.Background(), ref, state.Checkpoint{Revision: 10, Values: map[string]any{"a": 1}}, state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	stack, meta, err := state.Restore(context.Background(), store, ref)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if meta.ETag == "" {
		t.Fatalf("expected loaded meta")
	}
	if stack.Revision() != 10 || !stack.Empty() {
		t.Fatalf("expected empty stack at revision 10, got %d/%d", stack.Revision(), stack.Size())
	}
	pushSet(t, stack, "b", 2)
	if stack.Revision() != 11 {
		t.Fatalf("expected next push at revision 11, got %d", stack.Revision())
	}
	if value, _ := stack.Head().Get("a"); value != 1 {
		t.Fatalf("expected restored head value, got %v", value)
	}
}

func TestRestoreMissingCheckpointStartsEmpty(t *testing.T) {
	stack, meta, err := state.Restore(context.Background(), state.NewMemoryStore(), state.Ref{Domain: "ledger", Stack: "new"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if stack.Revision() != 0 || stack.Head().Len() != 0 || meta.ETag != "" {
		t.Fatalf("expected blank stack, revision=%d meta=%+v", stack.Revision(), meta)
	}
	if _, _, err := state.Restore(context.Background(), nil, state.Ref{}); !errors.Is(err, state.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestCheckpointerMutateCommitsAndSaves(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}
	checkpointer := state.Checkpointer{Store: store}

	first, meta, err := checkpointer.Mutate(context.Background(), ref, state.Meta{}, func(stack *kv.Stack) error {
		pushSet(t, stack, "a", 1)
		pushSet(t, stack, "b", 2)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if first.Revision != 2 || len(first.Values) != 2 {
		t.Fatalf("unexpected checkpoint %+v", first)
	}

	second, next, err := checkpointer.Mutate(context.Background(), ref, state.Meta{ETag: meta.ETag}, func(stack *kv.Stack) error {
		pushSet(t, stack, "c", 3)
		pushSet(t, stack, "discard", true)
		return stack.Undo()
	})
	if err != nil {
		t.Fatalf("second mutate: %v", err)
	}
	if second.Revision != 3 || second.Values["c"] != 3 {
		t.Fatalf("unexpected second checkpoint %+v", second)
	}
	if _, ok := second.Values["discard"]; ok {
		t.Fatalf("expected undone write absent")
	}
	if next.SnapshotID != "checkpoint/ledger/main@3" {
		t.Fatalf("expected fresh snapshot id, got %q", next.SnapshotID)
	}

	if _, _, err := checkpointer.Mutate(context.Background(), ref, state.Meta{ETag: meta.ETag}, func(*kv.Stack) error { return nil }); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected stale etag rejected, got %v", err)
	}
}

func TestCheckpointerMutateDiscardsOnError(t *testing.T) {
	store := state.NewMemoryStore()
	ref := state.Ref{Domain: "ledger", Stack: "main"}
	checkpointer := state.Checkpointer{Store: store}
	failure := errors.New("rejected")

	_, _, err := checkpointer.Mutate(context.Background(), ref, state.Meta{}, func(stack *kv.Stack) error {
		pushSet(t, stack, "a", 1)
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing saved")
	}
}

func pushSet(t *testing.T, stack *kv.Stack, key string, value any) {
	t.Helper()
	h, err := stack.Push()
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	session, _ := stack.Layer(h)
	if err := session.Set(key, value); err != nil {
		t.Fatalf("set: %v", err)
	}
}
