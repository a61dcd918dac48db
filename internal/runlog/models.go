package runlog

import "time"

// Entry is an immutable, append-only run history record.
//
// Invariants:
// - Entries are never updated or deleted.
// - Every executed run produces exactly one entry, success or failure.
// - Recording is best-effort; a run never fails because its entry could
//   not be written.
type Entry struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`

	// Kind is the sink kind the run targeted ("internal" or "external").
	Kind string `json:"kind"`

	Status Status `json:"status"`

	// Phase names the pipeline stage a failed run died in. Empty on success.
	Phase string `json:"phase,omitempty"`

	Calls     int `json:"calls"`
	Eligible  int `json:"eligible"`
	Delivered int `json:"delivered"`

	// Error is the failure message for internal ops. Empty on success.
	Error string `json:"error,omitempty"`

	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)
