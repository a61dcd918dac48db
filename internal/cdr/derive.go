package cdr

import (
	"slices"
	"strconv"

	"cdr-pipeline/internal/aggregate"
)

// DeriveOptions tunes sink-specific derivation policy.
type DeriveOptions struct {
	// IncludeUnanswered controls whether an external-eligible call whose
	// connection was never answered is emitted with nil wait/talk timing
	// (true) or excluded from the batch outright (false).
	IncludeUnanswered bool
}

// BuildInternal derives the internal CDR batch for all eligible calls,
// ordered by call identifier.
func BuildInternal(snap aggregate.Snapshot) []CDR {
	out := make([]CDR, 0)
	for _, callID := range snap.CallIDs() {
		if !Eligible(snap, SinkInternal, callID) {
			continue
		}
		call := snap.Calls[callID]
		op := snap.Operators[call.UserID]

		dur := int64(call.FinishedAt.Sub(call.StartedAt).Seconds())
		if dur < 0 {
			dur = 0
		}

		out = append(out, CDR{
			CallID:       strconv.FormatInt(call.ID, 10),
			CallerNumber: call.CallerNumber,
			CalleeNumber: call.CalleeNumber,
			DurationSec:  dur,
			CallResult:   call.Status,
			CallEvents:   distinctEventTypes(snap, callID),
			OperatorID:   strconv.FormatInt(op.ID, 10),
		})
	}
	return out
}

// BuildExternal derives the external record batch for all eligible calls,
// ordered by call identifier.
func BuildExternal(snap aggregate.Snapshot, opts DeriveOptions) []ExternalCDR {
	out := make([]ExternalCDR, 0)
	for _, callID := range snap.CallIDs() {
		if !Eligible(snap, SinkExternal, callID) {
			continue
		}
		call := snap.Calls[callID]
		op := snap.Operators[call.UserID]
		conn := snap.Connections[callID]

		rec := ExternalCDR{
			CallID:       strconv.FormatInt(call.ID, 10),
			CallerNumber: call.CallerNumber,
			OperatorID:   strconv.FormatInt(op.ID, 10),
			OperatorName: op.Name,
			AgentStatus:  call.Status,
			EndReason:    call.Status,
		}

		if conn.AnsweredAt != nil {
			rec.AgentStatus = AgentStatusAnswered
			wait := int64(conn.AnsweredAt.Sub(conn.InitiatedAt).Seconds())
			rec.WaitSec = &wait
			if conn.FinishedAt != nil {
				talk := int64(conn.FinishedAt.Sub(*conn.AnsweredAt).Seconds())
				rec.TalkSec = &talk
			}
		} else if !opts.IncludeUnanswered {
			continue
		}

		out = append(out, rec)
	}
	return out
}

// distinctEventTypes returns the sorted de-duplicated event type strings
// recorded for a call.
func distinctEventTypes(snap aggregate.Snapshot, callID int64) []string {
	events := snap.Events[callID]
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	slices.Sort(types)
	return slices.Compact(types)
}
