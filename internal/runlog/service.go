package runlog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cdr-pipeline/internal/runner"
)

// Repository is the persistence contract for run history entries.
//
// Append MUST be append-only; no Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Service records pipeline run outcomes and serves recent history.
//
// History is internal-only operator tooling; callers treat recording as
// best-effort.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEntry = errors.New("runlog: invalid entry")

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("runlog: repository not configured")
	}
	if e.RunID == "" || e.Kind == "" {
		return ErrInvalidEntry
	}
	if e.Status == "" {
		return ErrInvalidEntry
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// RecordRun satisfies runner.Recorder. Failures to persist are logged and
// swallowed so history problems never surface as run failures.
func (s *Service) RecordRun(ctx context.Context, report runner.Report, runErr error) {
	e := Entry{
		RunID:     report.RunID,
		Kind:      string(report.Kind),
		Status:    StatusCompleted,
		Calls:     report.Calls,
		Eligible:  report.Eligible,
		Delivered: report.Delivered,
		ElapsedMS: report.ElapsedMS,
	}
	if runErr != nil {
		e.Status = StatusFailed
		e.Error = runErr.Error()
		var phaseErr *runner.PhaseError
		if errors.As(runErr, &phaseErr) {
			e.Phase = string(phaseErr.Phase)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("run history append failed", "run_id", report.RunID, "err", err)
	}
}

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Recent returns the most recent entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("runlog: repository not configured")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.Recent(ctx, limit)
}
