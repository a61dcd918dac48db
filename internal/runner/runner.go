package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cdr-pipeline/internal/aggregate"
	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/internal/source"
	"cdr-pipeline/pkg/logger"
)

var ErrRunInFlight = errors.New("runner: run of this kind already in flight")

// Phase names the pipeline stage a run failed in; trigger callers see it.
type Phase string

const (
	PhaseLock    Phase = "lock"
	PhaseFetch   Phase = "fetch"
	PhaseDeliver Phase = "deliver"
)

// PhaseError tags a run failure with the phase it occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// Fetcher produces one run's complete source snapshot.
type Fetcher interface {
	FetchAll(ctx context.Context) (source.Data, error)
}

// InternalSink persists derived internal CDRs.
type InternalSink interface {
	Deliver(ctx context.Context, records []cdr.CDR) error
}

// ExternalSink delivers derived external records as one batch.
type ExternalSink interface {
	Deliver(ctx context.Context, runID string, records []cdr.ExternalCDR) error
}

// Lock serializes runs of one sink kind across processes. Optional; the
// in-process guard always applies.
type Lock interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// Recorder persists run outcomes to the run history log. Recording is
// best-effort: implementations swallow their own failures and must never
// block or fail a run.
type Recorder interface {
	RecordRun(ctx context.Context, report Report, runErr error)
}

// Config tunes run behavior.
type Config struct {
	RunTimeout        time.Duration
	LockTTL           time.Duration
	IncludeUnanswered bool
}

func (c Config) withDefaults() Config {
	out := c
	if out.RunTimeout <= 0 {
		out.RunTimeout = 60 * time.Second
	}
	if out.LockTTL <= 0 {
		out.LockTTL = 2 * out.RunTimeout
	}
	return out
}

// Report summarizes one completed run.
type Report struct {
	RunID     string       `json:"run_id"`
	Kind      cdr.SinkKind `json:"kind"`
	Calls     int          `json:"calls"`
	Conns     int          `json:"connections"`
	Events    int          `json:"events"`
	Operators int          `json:"operators"`
	Eligible  int          `json:"eligible"`
	Delivered int          `json:"delivered"`
	ElapsedMS int64        `json:"elapsed_ms"`
}

// Runner executes one end-to-end pipeline run per trigger:
// fetch all four sources, aggregate, gate, derive, deliver.
type Runner struct {
	fetcher  Fetcher
	internal InternalSink
	external ExternalSink
	lock     Lock
	recorder Recorder
	cfg      Config
	log      *slog.Logger

	mu       sync.Mutex
	inFlight map[cdr.SinkKind]bool
}

func New(fetcher Fetcher, internal InternalSink, external ExternalSink, lock Lock, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		fetcher:  fetcher,
		internal: internal,
		external: external,
		lock:     lock,
		cfg:      cfg.withDefaults(),
		log:      log,
		inFlight: make(map[cdr.SinkKind]bool),
	}
}

// SetRecorder attaches a run history recorder. Lock denials and in-flight
// rejections are not recorded; only runs that actually execute are.
func (r *Runner) SetRecorder(rec Recorder) { r.recorder = rec }

// Run executes one run for the given sink kind. Concurrent runs of the same
// kind are rejected with ErrRunInFlight; different kinds run independently.
func (r *Runner) Run(ctx context.Context, kind cdr.SinkKind) (Report, error) {
	if !r.tryEnter(kind) {
		return Report{}, ErrRunInFlight
	}
	defer r.leave(kind)

	runID := uuid.NewString()
	log := logger.WithRun(r.log, runID, string(kind))

	if r.lock != nil {
		key := "cdr:run:" + string(kind)
		ok, err := r.lock.Acquire(ctx, key, runID, r.cfg.LockTTL)
		if err != nil {
			return Report{}, &PhaseError{Phase: PhaseLock, Err: fmt.Errorf("acquire run lock: %w", err)}
		}
		if !ok {
			return Report{}, ErrRunInFlight
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), key, runID); err != nil {
				log.Warn("run lock release failed", "err", err)
			}
		}()
	}

	report, err := r.execute(ctx, kind, runID, log)
	if r.recorder != nil {
		r.recorder.RecordRun(context.WithoutCancel(ctx), report, err)
	}
	return report, err
}

func (r *Runner) execute(ctx context.Context, kind cdr.SinkKind, runID string, log *slog.Logger) (Report, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()
	// Sinks log through the context so their messages carry run correlation.
	runCtx = logger.With(runCtx, log)

	start := time.Now()
	log.Info("run started")

	report := Report{RunID: runID, Kind: kind}

	data, err := r.fetcher.FetchAll(runCtx)
	if err != nil {
		log.Error("run failed", "phase", PhaseFetch, "err", err)
		return report, &PhaseError{Phase: PhaseFetch, Err: err}
	}

	snap := aggregate.Build(data)
	report.Calls = len(data.Calls)
	report.Conns = len(data.Connections)
	report.Events = len(data.Events)
	report.Operators = len(data.Operators)

	if err := r.deliver(runCtx, kind, runID, snap, &report); err != nil {
		log.Error("run failed", "phase", PhaseDeliver, "err", err)
		return report, &PhaseError{Phase: PhaseDeliver, Err: err}
	}

	report.ElapsedMS = time.Since(start).Milliseconds()
	log.Info("run completed",
		"calls", report.Calls,
		"eligible", report.Eligible,
		"delivered", report.Delivered,
		"elapsed_ms", report.ElapsedMS,
	)
	return report, nil
}

func (r *Runner) deliver(ctx context.Context, kind cdr.SinkKind, runID string, snap aggregate.Snapshot, report *Report) error {
	switch kind {
	case cdr.SinkInternal:
		records := cdr.BuildInternal(snap)
		report.Eligible = len(records)
		if err := r.internal.Deliver(ctx, records); err != nil {
			return err
		}
		report.Delivered = len(records)
	case cdr.SinkExternal:
		records := cdr.BuildExternal(snap, cdr.DeriveOptions{IncludeUnanswered: r.cfg.IncludeUnanswered})
		report.Eligible = len(records)
		if err := r.external.Deliver(ctx, runID, records); err != nil {
			return err
		}
		report.Delivered = len(records)
	default:
		return fmt.Errorf("unknown sink kind %q", kind)
	}
	return nil
}

func (r *Runner) tryEnter(kind cdr.SinkKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[kind] {
		return false
	}
	r.inFlight[kind] = true
	return true
}

func (r *Runner) leave(kind cdr.SinkKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, kind)
}
