package runlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createRunLogTable = `
CREATE TABLE IF NOT EXISTS run_log (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	phase      TEXT NOT NULL DEFAULT '',
	calls      INTEGER NOT NULL DEFAULT 0,
	eligible   INTEGER NOT NULL DEFAULT 0,
	delivered  INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresRepo stores run history in Postgres. The table is insert-only;
// retention is left to external housekeeping.
type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRunLogTable); err != nil {
		return fmt.Errorf("create run_log table: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO run_log (id, run_id, kind, status, phase, calls, eligible, delivered, error, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RunID, e.Kind, string(e.Status), e.Phase,
		e.Calls, e.Eligible, e.Delivered, e.Error, e.ElapsedMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append run_log entry: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, kind, status, phase, calls, eligible, delivered, error, elapsed_ms, created_at
		FROM run_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run_log: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &status, &e.Phase,
			&e.Calls, &e.Eligible, &e.Delivered, &e.Error, &e.ElapsedMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run_log entry: %w", err)
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run_log: %w", err)
	}
	return out, nil
}
