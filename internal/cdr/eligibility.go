package cdr

import (
	"cdr-pipeline/internal/aggregate"
)

// Eligible reports whether a call has enough joined data to be output to the
// given sink. Requirements follow each sink's field dependencies:
//
//   - internal: call + at least one event + matching operator. The internal
//     projection reads no connection timestamps, so no connection is required.
//   - external: internal requirements + a connection, because wait/talk
//     derivation reads connection timestamps.
//
// A call failing the gate is silently excluded; partial records are never
// emitted for either sink.
func Eligible(snap aggregate.Snapshot, kind SinkKind, callID int64) bool {
	call, ok := snap.Calls[callID]
	if !ok {
		return false
	}
	if len(snap.Events[callID]) == 0 {
		return false
	}
	if _, ok := snap.Operators[call.UserID]; !ok {
		return false
	}
	if kind == SinkExternal {
		if _, ok := snap.Connections[callID]; !ok {
			return false
		}
	}
	return true
}
