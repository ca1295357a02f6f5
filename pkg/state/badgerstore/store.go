// Package badgerstore keeps undo stack checkpoints in BadgerDB.
//
// Each checkpoint is stored as one JSON record under its Ref identifier.
// Numbers in checkpoint values come back as float64 after a round trip, the
// same as any encoding/json payload.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-undo/pkg/state"
)

// Config holds configuration for the underlying BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type record struct {
	Checkpoint state.Checkpoint `json:"checkpoint"`
	Meta       state.Meta       `json:"meta"`
}

var _ state.Store = (*Store)(nil)

// Store implements state.Store on top of BadgerDB.
type Store struct {
	db     *badger.DB
	prefix []byte
	owned  bool
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key, for databases shared with other data.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = []byte(prefix)
	}
}

// Open opens a BadgerDB instance owned by the returned Store.
func Open(cfg Config, opts ...Option) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var options badger.Options
	if cfg.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create database directory %s: %w", cfg.Path, err)
		}
		options = badger.DefaultOptions(cfg.Path)
	}
	options = options.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		options = options.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		options = options.WithLogger(nil)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	store := New(db, opts...)
	store.owned = true
	return store, nil
}

// New wraps an already opened database. Close leaves such a database open.
func New(db *badger.DB, opts ...Option) *Store {
	store := &Store{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Close closes the database when Open created it.
func (s *Store) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

// Load implements state.Store.
func (s *Store) Load(ctx context.Context, ref state.Ref) (state.Checkpoint, state.Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return state.Checkpoint{}, state.Meta{}, false, err
	}
	key, err := s.key(ref)
	if err != nil {
		return state.Checkpoint{}, state.Meta{}, false, err
	}

	var rec record
	var found bool
	err = s.db.View(func(txn *badger.Txn) error {
		var getErr error
		rec, found, getErr = get(txn, key)
		return getErr
	})
	if err != nil {
		return state.Checkpoint{}, state.Meta{}, false, err
	}
	if !found {
		return state.Checkpoint{}, state.Meta{}, false, nil
	}
	return rec.Checkpoint, rec.Meta, true, nil
}

// Save implements state.Store. The ETag check and the write run in one
// transaction; a concurrent writer surfaces as badger.ErrConflict.
func (s *Store) Save(ctx context.Context, ref state.Ref, checkpoint state.Checkpoint, meta state.Meta) (state.Meta, error) {
	if err := ctx.Err(); err != nil {
		return state.Meta{}, err
	}
	key, err := s.key(ref)
	if err != nil {
		return state.Meta{}, err
	}
	identifier, _ := ref.Identifier()

	var saved state.Meta
	err = s.db.Update(func(txn *badger.Txn) error {
		existing, exists, err := get(txn, key)
		if err != nil {
			return err
		}
		if err := state.CheckETag(meta.ETag, existing.Meta, exists); err != nil {
			return err
		}
		saved = state.Stamp(identifier, checkpoint, meta)
		payload, err := json.Marshal(record{Checkpoint: checkpoint, Meta: saved})
		if err != nil {
			return fmt.Errorf("badgerstore: encode %s: %w", identifier, err)
		}
		return txn.Set(key, payload)
	})
	if err != nil {
		return state.Meta{}, err
	}
	return saved, nil
}

// Delete removes the checkpoint stored under ref. Deleting a missing
// checkpoint is not an error.
func (s *Store) Delete(ctx context.Context, ref state.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := s.key(ref)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// List returns the identifiers of every stored checkpoint in domain.
func (s *Store) List(ctx context.Context, domain string) ([]string, error) {
	prefix, err := s.key(state.Ref{Domain: domain, Stack: "_"})
	if err != nil {
		return nil, err
	}
	prefix = prefix[:len(prefix)-1]

	var out []string
	err = s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			out = append(out, string(it.Item().KeyCopy(nil)[len(s.prefix):]))
		}
		return nil
	})
	return out, err
}

func (s *Store) key(ref state.Ref) ([]byte, error) {
	identifier, err := ref.Identifier()
	if err != nil {
		return nil, err
	}
	key := make([]byte, 0, len(s.prefix)+len(identifier))
	key = append(key, s.prefix...)
	return append(key, identifier...), nil
}

func get(txn *badger.Txn, key []byte) (record, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, err
	}
	var rec record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return record{}, false, fmt.Errorf("badgerstore: decode %s: %w", key, err)
	}
	return rec, true, nil
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
