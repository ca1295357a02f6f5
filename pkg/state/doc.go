// Package state persists undo stack checkpoints.
//
// A checkpoint is the committed part of a stack: the head values and the
// revision they were committed at. Pending layers are never persisted.
//
// Data flow:
//
//	kv.Stack -> Capture -> Store.Save
//	Store.Load -> Restore -> kv.Stack seeded with SetRevision
//
// Store implementations only load and save one checkpoint per Ref; the
// Checkpointer orchestrates capture, restore and ETag checks on top of them.
// MemoryStore ships here for tests and examples, and package badgerstore
// keeps checkpoints in BadgerDB.
package state
