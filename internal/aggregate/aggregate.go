package aggregate

import (
	"slices"

	"cdr-pipeline/internal/source"
)

// Snapshot holds the joined, call-keyed view of one run's source data.
// Nothing is filtered here; eligibility is decided downstream per sink.
type Snapshot struct {
	Calls     map[int64]source.Call
	Events    map[int64][]source.CallEvent
	Operators map[int64]source.Operator

	// Connections keeps at most one connection per call: the one with the
	// lowest connection identifier. Upstream is expected to supply at most
	// one per call; the tie-break makes the ambiguous case deterministic.
	Connections map[int64]source.Connection
}

// Build indexes the fetched collections by their correlation keys.
func Build(data source.Data) Snapshot {
	snap := Snapshot{
		Calls:       make(map[int64]source.Call, len(data.Calls)),
		Events:      make(map[int64][]source.CallEvent),
		Operators:   make(map[int64]source.Operator, len(data.Operators)),
		Connections: make(map[int64]source.Connection),
	}

	for _, c := range data.Calls {
		snap.Calls[c.ID] = c
	}
	for _, ev := range data.Events {
		snap.Events[ev.CallID] = append(snap.Events[ev.CallID], ev)
	}
	for _, op := range data.Operators {
		snap.Operators[op.ID] = op
	}
	for _, conn := range data.Connections {
		existing, ok := snap.Connections[conn.CallID]
		if !ok || conn.ID < existing.ID {
			snap.Connections[conn.CallID] = conn
		}
	}
	return snap
}

// CallIDs returns the snapshot's call identifiers in ascending order so that
// derived output and batch delivery are deterministic.
func (s Snapshot) CallIDs() []int64 {
	ids := make([]int64, 0, len(s.Calls))
	for id := range s.Calls {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
