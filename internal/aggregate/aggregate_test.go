package aggregate

import (
	"testing"
	"time"

	"cdr-pipeline/internal/source"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuild_IndexesByCorrelationKeys(t *testing.T) {
	data := source.Data{
		Calls: []source.Call{
			{ID: 100, Status: "COMPLETED", UserID: 200},
			{ID: 101, Status: "NO_ANSWER", UserID: 201},
		},
		Events: []source.CallEvent{
			{ID: 1, CallID: 100, EventType: "start"},
			{ID: 2, CallID: 100, EventType: "hangup"},
		},
		Operators: []source.Operator{
			{ID: 200, Name: "Alice"},
		},
		Connections: []source.Connection{
			{ID: 1, CallID: 100, InitiatedAt: ts("2024-06-18T12:00:00Z")},
		},
	}

	snap := Build(data)

	if len(snap.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(snap.Calls))
	}
	if got := len(snap.Events[100]); got != 2 {
		t.Fatalf("expected 2 events for call 100, got %d", got)
	}
	if len(snap.Events[101]) != 0 {
		t.Fatalf("expected no events for call 101")
	}
	if snap.Operators[200].Name != "Alice" {
		t.Fatalf("expected operator 200 indexed by id")
	}
	if _, ok := snap.Connections[101]; ok {
		t.Fatalf("expected no connection for call 101")
	}
}

func TestBuild_LowestConnectionIDWins(t *testing.T) {
	data := source.Data{
		Connections: []source.Connection{
			{ID: 7, CallID: 100, Phone: "later"},
			{ID: 3, CallID: 100, Phone: "earlier"},
			{ID: 9, CallID: 100, Phone: "latest"},
		},
	}

	snap := Build(data)

	conn, ok := snap.Connections[100]
	if !ok {
		t.Fatalf("expected a connection for call 100")
	}
	if conn.ID != 3 || conn.Phone != "earlier" {
		t.Fatalf("expected connection 3 to win the tie-break, got %+v", conn)
	}
}

func TestCallIDs_SortedAscending(t *testing.T) {
	data := source.Data{
		Calls: []source.Call{{ID: 300}, {ID: 100}, {ID: 200}},
	}
	snap := Build(data)

	ids := snap.CallIDs()
	if len(ids) != 3 || ids[0] != 100 || ids[1] != 200 || ids[2] != 300 {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}

func TestBuild_EmptySnapshot(t *testing.T) {
	snap := Build(source.Data{})
	if len(snap.Calls) != 0 || len(snap.CallIDs()) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}
