package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/pkg/logger"
)

// PostgresSink persists internal CDRs, one row per call identifier.
// Writes are idempotent upserts: re-running a trigger with unchanged upstream
// data never creates duplicate rows and never fails on an existing row.
type PostgresSink struct {
	db      *pgxpool.Pool
	workers int
}

func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db, workers: 8}
}

const createCDRTable = `
CREATE TABLE IF NOT EXISTS cdrs (
  call_id       TEXT PRIMARY KEY,
  caller_number TEXT NOT NULL,
  callee_number TEXT NOT NULL,
  duration_sec  BIGINT NOT NULL,
  call_result   TEXT NOT NULL,
  call_events   TEXT[] NOT NULL,
  operator_id   TEXT NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL
)
`

// EnsureSchema creates the cdrs table if it does not exist yet.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createCDRTable); err != nil {
		return fmt.Errorf("ensure cdrs schema: %w", err)
	}
	return nil
}

const upsertCDR = `
INSERT INTO cdrs (
  call_id, caller_number, callee_number, duration_sec, call_result, call_events, operator_id, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (call_id)
DO UPDATE SET caller_number = EXCLUDED.caller_number,
              callee_number = EXCLUDED.callee_number,
              duration_sec  = EXCLUDED.duration_sec,
              call_result   = EXCLUDED.call_result,
              call_events   = EXCLUDED.call_events,
              operator_id   = EXCLUDED.operator_id,
              updated_at    = EXCLUDED.updated_at
`

// Deliver upserts the batch. Each upsert is independently keyed, so writes run
// with bounded parallelism; ordering between them is not significant. Any
// failed upsert fails the delivery, but rows already committed stand (a
// re-trigger is safe).
func (s *PostgresSink) Deliver(ctx context.Context, records []cdr.CDR) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			_, err := s.db.Exec(gctx, upsertCDR,
				rec.CallID,
				rec.CallerNumber,
				rec.CalleeNumber,
				rec.DurationSec,
				rec.CallResult,
				rec.CallEvents,
				rec.OperatorID,
				now,
			)
			if err != nil {
				return fmt.Errorf("upsert cdr %s: %w", rec.CallID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.From(ctx).Info("cdr batch persisted", "rows", len(records))
	return nil
}
