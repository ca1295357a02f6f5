package activity

import (
	"strings"
	"time"
)

// Verbs emitted by a stack.
const (
	VerbLayerPushed    = "undo.layer.pushed"
	VerbLayerUndone    = "undo.layer.undone"
	VerbLayerSquashed  = "undo.layer.squashed"
	VerbStackCommitted = "undo.stack.committed"
	VerbStackClosed    = "undo.stack.closed"
)

// Object types carried by stack events.
const (
	ObjectLayer = "undo.layer"
	ObjectStack = "undo.stack"
)

// StackEventInput describes the common fields for stack lifecycle events.
type StackEventInput struct {
	ActorID          string
	UserID           string
	TenantID         string
	StackID          string
	Channel          string
	Handle           string
	Revision         int64
	PreviousRevision int64
	Target           int64
	Size             int
	Affected         int
	Metadata         map[string]any
	OccurredAt       time.Time
}

// BuildLayerPushedEvent describes a layer chained onto the stack.
func BuildLayerPushedEvent(input StackEventInput) Event {
	return buildStackEvent(VerbLayerPushed, ObjectLayer, input)
}

// BuildLayerUndoneEvent describes a layer discarded without folding.
func BuildLayerUndoneEvent(input StackEventInput) Event {
	return buildStackEvent(VerbLayerUndone, ObjectLayer, input)
}

// BuildLayerSquashedEvent describes the top layer folded into the one beneath it.
func BuildLayerSquashedEvent(input StackEventInput) Event {
	return buildStackEvent(VerbLayerSquashed, ObjectLayer, input)
}

// BuildStackCommittedEvent describes layers folded into the head.
func BuildStackCommittedEvent(input StackEventInput) Event {
	event := buildStackEvent(VerbStackCommitted, ObjectStack, input)
	event.Metadata["target"] = input.Target
	return event
}

// BuildStackClosedEvent describes a stack torn down with layers still pending.
func BuildStackClosedEvent(input StackEventInput) Event {
	return buildStackEvent(VerbStackClosed, ObjectStack, input)
}

func buildStackEvent(verb, objectType string, input StackEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["previous_revision"] = input.PreviousRevision
	metadata["size"] = input.Size
	metadata["affected"] = input.Affected

	stackID := strings.TrimSpace(input.StackID)
	if stackID != "" {
		metadata["stack_id"] = stackID
	}
	handle := strings.TrimSpace(input.Handle)
	if handle != "" {
		metadata["handle"] = handle
	}

	objectID := stackID
	if objectType == ObjectLayer && handle != "" {
		objectID = handle
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Revision:   input.Revision,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
