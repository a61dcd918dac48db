package source

import (
	"encoding/json"
	"time"
)

// Upstream entities as served by the four paginated sources.
//
// Optional upstream fields are pointers, not sentinels: their absence drives
// completeness decisions downstream, so "missing" must be distinguishable
// from a zero value.

// Call is the source of truth for call-level timing and outcome.
// UserID links the call to an Operator (user and operator share one
// identifier namespace).
type Call struct {
	ID           int64           `json:"id"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	CallerNumber string          `json:"caller_number"`
	CalleeNumber string          `json:"callee_number"`
	UserID       int64           `json:"user_id"`
	Context      json.RawMessage `json:"context,omitempty"`
}

// Connection carries wait/talk timing for a call. AnsweredAt is nil when the
// call was never answered; FinishedAt is nil while a leg is still open.
type Connection struct {
	ID          int64      `json:"connection_id"`
	CallID      int64      `json:"call_id"`
	Phone       string     `json:"phone"`
	InitiatedAt time.Time  `json:"initiated_at"`
	AnsweredAt  *time.Time `json:"answered_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// CallEvent is one event observed during a call. Payload is opaque to the
// pipeline; only the distinct set of event types per call is reported.
type CallEvent struct {
	ID        int64           `json:"event_id"`
	CallID    int64           `json:"call_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Operator is looked up by Call.UserID.
type Operator struct {
	ID        int64  `json:"operator_id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Email     string `json:"email"`
}
