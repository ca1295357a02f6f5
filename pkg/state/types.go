package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-undo"
	"github.com/goliatone/go-undo/kv"
	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrStoreRequired = errors.New("state: store is required")

// Ref identifies one persisted checkpoint.
type Ref struct {
	Domain string
	Stack  string
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	stack := strings.TrimSpace(r.Stack)
	if domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	if stack == "" {
		return "", fmt.Errorf("state: stack name is required for domain %q", domain)
	}
	if strings.Contains(domain, "/") || strings.Contains(stack, "/") {
		return "", fmt.Errorf("state: ref %s/%s must not contain '/'", domain, stack)
	}
	return fmt.Sprintf("checkpoint/%s/%s", domain, stack), nil
}

// Checkpoint is the committed state of a stack.
type Checkpoint struct {
	Revision int64          `json:"revision"`
	Values   map[string]any `json:"values"`
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one checkpoint per Ref.
//
// Save must reject a non-empty meta.ETag that differs from the stored one
// with ErrETagMismatch, and must return the meta it persisted, including a
// fresh ETag.
type Store interface {
	Load(ctx context.Context, ref Ref) (checkpoint Checkpoint, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, checkpoint Checkpoint, meta Meta) (Meta, error)
}

// Mutator drives a restored stack. Whatever it leaves pending is committed
// by Checkpointer.Mutate.
type Mutator func(*kv.Stack) error

// Capture returns the committed part of stack: the head values at revision
// Revision()-Size().
func Capture(stack *kv.Stack) Checkpoint {
	return Checkpoint{
		Revision: stack.Revision() - int64(stack.Size()),
		Values:   stack.Head().Snapshot(),
	}
}

// Restore loads the checkpoint for ref into a new head and builds a stack
// over it whose revision continues from the checkpoint. A missing checkpoint
// yields an empty head at revision 0.
func Restore(ctx context.Context, store Store, ref Ref, opts ...undo.Option) (*kv.Stack, Meta, error) {
	if store == nil {
		return nil, Meta{}, ErrStoreRequired
	}
	checkpoint, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %s/%s: %w", ref.Domain, ref.Stack, err)
	}
	if !ok {
		checkpoint = Checkpoint{}
		meta = Meta{}
	}
	stack, err := kv.NewStack(kv.NewHead(checkpoint.Values), opts...)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: stack: %w", err)
	}
	stack.SetRevision(checkpoint.Revision)
	return stack, meta, nil
}

// Checkpointer saves and restores stacks through a Store.
type Checkpointer struct {
	Store Store
	// Options are applied to every stack built by Restore and Mutate.
	Options []undo.Option
}

// Save persists the committed part of stack under ref. A non-empty
// meta.ETag must match the stored checkpoint.
func (c Checkpointer) Save(ctx context.Context, ref Ref, stack *kv.Stack, meta Meta) (Meta, error) {
	if c.Store == nil {
		return Meta{}, ErrStoreRequired
	}
	if stack == nil {
		return Meta{}, fmt.Errorf("state: stack is required")
	}
	saved, err := c.Store.Save(ctx, ref, Capture(stack), meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s/%s: %w", ref.Domain, ref.Stack, err)
	}
	return saved, nil
}

// Restore builds a stack from the checkpoint stored under ref.
func (c Checkpointer) Restore(ctx context.Context, ref Ref, opts ...undo.Option) (*kv.Stack, Meta, error) {
	return Restore(ctx, c.Store, ref, append(append([]undo.Option{}, c.Options...), opts...)...)
}

// Mutate restores the checkpoint under ref, hands the stack to fn, commits
// everything fn left pending and saves the result. meta.ETag, when set, must
// match the loaded checkpoint. The stack is always closed; on error nothing
// is saved.
func (c Checkpointer) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (Checkpoint, Meta, error) {
	if c.Store == nil {
		return Checkpoint{}, Meta{}, ErrStoreRequired
	}
	if fn == nil {
		return Checkpoint{}, Meta{}, fmt.Errorf("state: mutator is required")
	}

	stack, loaded, err := c.Restore(ctx, ref)
	if err != nil {
		return Checkpoint{}, Meta{}, err
	}
	defer func() { _ = stack.Close() }()

	if meta.ETag != "" && loaded.ETag != "" && meta.ETag != loaded.ETag {
		return Checkpoint{}, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}

	if err := fn(stack); err != nil {
		return Checkpoint{}, loaded, err
	}
	if err := stack.Commit(stack.Revision()); err != nil {
		return Checkpoint{}, loaded, fmt.Errorf("state: commit %s/%s: %w", ref.Domain, ref.Stack, err)
	}

	saveMeta := Meta{
		SnapshotID: meta.SnapshotID,
		ETag:       loaded.ETag,
		UpdatedAt:  meta.UpdatedAt,
		Extra:      loaded.Extra,
	}
	if meta.Extra != nil {
		saveMeta.Extra = meta.Extra
	}
	saved, err := c.Save(ctx, ref, stack, saveMeta)
	if err != nil {
		return Checkpoint{}, loaded, err
	}
	return Capture(stack), saved, nil
}

// stamp fills the fields a store owns: a fresh ETag, the update time and a
// snapshot ID derived from the key and revision when none is given.
func stamp(key string, checkpoint Checkpoint, meta Meta, now time.Time) Meta {
	out := cloneMeta(meta)
	out.ETag = uuid.NewString()
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now
	}
	if out.SnapshotID == "" {
		out.SnapshotID = fmt.Sprintf("%s@%d", key, checkpoint.Revision)
	}
	return out
}

// Stamp exposes the metadata defaults shared by every Store implementation.
func Stamp(key string, checkpoint Checkpoint, meta Meta) Meta {
	return stamp(key, checkpoint, meta, time.Now().UTC())
}

// CheckETag reports ErrETagMismatch when expected is set and differs from
// the stored ETag. A missing record only matches an empty expectation.
func CheckETag(expected string, stored Meta, exists bool) error {
	if expected == "" {
		return nil
	}
	if !exists {
		return fmt.Errorf("%w: expected %q, checkpoint does not exist", ErrETagMismatch, expected)
	}
	if expected != stored.ETag {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored.ETag)
	}
	return nil
}

// CloneCheckpoint copies the top-level values map.
func CloneCheckpoint(checkpoint Checkpoint) Checkpoint {
	out := checkpoint
	if checkpoint.Values != nil {
		out.Values = maps.Clone(checkpoint.Values)
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = maps.Clone(meta.Extra)
	return out
}
