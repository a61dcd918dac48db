package cdr

// SinkKind selects which delivery target a run feeds. Completeness rules and
// derived fields differ per kind.
type SinkKind string

const (
	SinkInternal SinkKind = "internal"
	SinkExternal SinkKind = "external"
)

// CDR is the internal-sink projection of a completed call, keyed by CallID.
type CDR struct {
	CallID       string   `json:"call_id"`
	CallerNumber string   `json:"caller_number"`
	CalleeNumber string   `json:"callee_number"`
	DurationSec  int64    `json:"duration_sec"`
	CallResult   string   `json:"call_result"`
	CallEvents   []string `json:"call_events"`
	OperatorID   string   `json:"operator_id"`
}

// ExternalCDR is the external-sink projection delivered as one JSON batch.
// WaitSec/TalkSec are nil for calls that were never answered.
type ExternalCDR struct {
	CallID       string `json:"call_id"`
	CallerNumber string `json:"caller_number"`
	OperatorID   string `json:"operator_id"`
	OperatorName string `json:"operator_name"`
	AgentStatus  string `json:"agent_status"`
	WaitSec      *int64 `json:"wait_sec"`
	TalkSec      *int64 `json:"talk_sec"`
	EndReason    string `json:"end_reason"`
}

// AgentStatusAnswered is reported when the call's connection carries an
// answered timestamp; otherwise the call status code is passed through.
const AgentStatusAnswered = "ANSWERED"
