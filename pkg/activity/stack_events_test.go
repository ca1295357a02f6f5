package activity

import (
	"context"
	"testing"
	"time"
)

func TestBuildLayerPushedEventUsesHandleAsObject(t *testing.T) {
	meta := map[string]any{"reason": "speculative block"}
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	input := StackEventInput{
		ActorID:          " actor ",
		StackID:          " stack-1 ",
		Handle:           " layer/2#1 ",
		Revision:         7,
		PreviousRevision: 6,
		Size:             3,
		Affected:         1,
		Metadata:         meta,
		OccurredAt:       at,
	}

	event := BuildLayerPushedEvent(input)

	if event.Verb != VerbLayerPushed {
		t.Fatalf("expected verb %s got %s", VerbLayerPushed, event.Verb)
	}
	if event.ObjectType != ObjectLayer || event.ObjectID != "layer/2#1" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.Revision != 7 || event.OccurredAt != at {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["stack_id"] != "stack-1" || event.Metadata["handle"] != "layer/2#1" {
		t.Fatalf("expected stack metadata, got %+v", event.Metadata)
	}
	if event.Metadata["previous_revision"] != int64(6) || event.Metadata["size"] != 3 || event.Metadata["affected"] != 1 {
		t.Fatalf("expected counters in metadata, got %+v", event.Metadata)
	}
	if event.Metadata["reason"] != "speculative block" {
		t.Fatalf("expected caller metadata kept, got %+v", event.Metadata)
	}
	event.Metadata["reason"] = "changed"
	if meta["reason"] != "speculative block" {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildStackCommittedEventRecordsTarget(t *testing.T) {
	event := BuildStackCommittedEvent(StackEventInput{
		StackID:          "stack-1",
		Handle:           "layer/0#1",
		Revision:         5,
		PreviousRevision: 5,
		Target:           3,
		Size:             2,
		Affected:         3,
	})

	if event.Verb != VerbStackCommitted {
		t.Fatalf("expected verb %s got %s", VerbStackCommitted, event.Verb)
	}
	if event.ObjectType != ObjectStack || event.ObjectID != "stack-1" {
		t.Fatalf("expected stack object, got %+v", event)
	}
	if event.Metadata["target"] != int64(3) || event.Metadata["affected"] != 3 {
		t.Fatalf("expected target metadata, got %+v", event.Metadata)
	}
}

func TestStackEventsFallBackToObjectType(t *testing.T) {
	cases := map[string]Event{
		ObjectStack: BuildStackClosedEvent(StackEventInput{}),
		ObjectLayer: BuildLayerUndoneEvent(StackEventInput{}),
	}
	for want, event := range cases {
		if event.ObjectID != want {
			t.Fatalf("expected fallback object ID %q, got %q", want, event.ObjectID)
		}
		if !event.Valid() {
			t.Fatalf("expected fallback event to be valid: %+v", event)
		}
	}
}

func TestLayerEventsFallBackToStackID(t *testing.T) {
	event := BuildLayerSquashedEvent(StackEventInput{StackID: "stack-9"})
	if event.ObjectType != ObjectLayer || event.ObjectID != "stack-9" {
		t.Fatalf("expected stack id as object, got %+v", event)
	}
}

func TestStackEventsFlowThroughEmitter(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true})

	inputs := []Event{
		BuildLayerPushedEvent(StackEventInput{Handle: "layer/0#1", Revision: 1}),
		BuildLayerSquashedEvent(StackEventInput{Handle: "layer/0#1", Revision: 0}),
		BuildStackClosedEvent(StackEventInput{StackID: "stack-1"}),
	}
	for _, event := range inputs {
		if err := emitter.Emit(context.Background(), event); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	verbs := capture.Verbs()
	want := []string{VerbLayerPushed, VerbLayerSquashed, VerbStackClosed}
	if len(verbs) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), verbs)
	}
	for i := range want {
		if verbs[i] != want[i] {
			t.Fatalf("event %d: expected %s got %s", i, want[i], verbs[i])
		}
	}
	for _, event := range capture.Events {
		if event.Channel != DefaultChannel {
			t.Fatalf("expected default channel, got %q", event.Channel)
		}
	}

	capture.Reset()
	if len(capture.Events) != 0 {
		t.Fatalf("expected reset to drop events")
	}
}
