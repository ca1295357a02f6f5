package state

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and examples. It keys records
// by Ref.Identifier().
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	checkpoint Checkpoint
	meta       Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (Checkpoint, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Checkpoint{}, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Checkpoint{}, Meta{}, false, nil
	}
	return CloneCheckpoint(record.checkpoint), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, checkpoint Checkpoint, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.records[key]
	if err := CheckETag(meta.ETag, existing.meta, exists); err != nil {
		return Meta{}, err
	}
	saved := Stamp(key, checkpoint, meta)
	s.records[key] = memoryRecord{checkpoint: CloneCheckpoint(checkpoint), meta: cloneMeta(saved)}
	return cloneMeta(saved), nil
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
