package cdr

import (
	"testing"

	"cdr-pipeline/internal/aggregate"
	"cdr-pipeline/internal/source"
)

// completeSnapshot returns a snapshot where call 100 satisfies every
// requirement for both sinks. Tests knock out one fact at a time.
func completeSnapshot() aggregate.Snapshot {
	return aggregate.Build(source.Data{
		Calls:       []source.Call{{ID: 100, Status: "COMPLETED", UserID: 200}},
		Events:      []source.CallEvent{{ID: 1, CallID: 100, EventType: "start"}},
		Operators:   []source.Operator{{ID: 200, Name: "Alice"}},
		Connections: []source.Connection{{ID: 1, CallID: 100}},
	})
}

func TestEligible_CompleteCallPassesBothSinks(t *testing.T) {
	snap := completeSnapshot()
	for _, kind := range []SinkKind{SinkInternal, SinkExternal} {
		if !Eligible(snap, kind, 100) {
			t.Fatalf("expected call 100 eligible for %s sink", kind)
		}
	}
}

func TestEligible_UnknownCallFailsBothSinks(t *testing.T) {
	snap := completeSnapshot()
	for _, kind := range []SinkKind{SinkInternal, SinkExternal} {
		if Eligible(snap, kind, 999) {
			t.Fatalf("expected unknown call ineligible for %s sink", kind)
		}
	}
}

func TestEligible_NoEventsFailsBothSinks(t *testing.T) {
	snap := completeSnapshot()
	delete(snap.Events, 100)
	for _, kind := range []SinkKind{SinkInternal, SinkExternal} {
		if Eligible(snap, kind, 100) {
			t.Fatalf("expected call without events ineligible for %s sink", kind)
		}
	}
}

func TestEligible_NoOperatorFailsBothSinks(t *testing.T) {
	snap := completeSnapshot()
	delete(snap.Operators, 200)
	for _, kind := range []SinkKind{SinkInternal, SinkExternal} {
		if Eligible(snap, kind, 100) {
			t.Fatalf("expected call without operator ineligible for %s sink", kind)
		}
	}
}

func TestEligible_NoConnectionOnlyFailsExternal(t *testing.T) {
	snap := completeSnapshot()
	delete(snap.Connections, 100)

	// The internal projection reads no connection timestamps.
	if !Eligible(snap, SinkInternal, 100) {
		t.Fatalf("expected call without connection still eligible internally")
	}
	if Eligible(snap, SinkExternal, 100) {
		t.Fatalf("expected call without connection ineligible externally")
	}
}
