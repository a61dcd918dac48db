package stats

import (
	"context"
	"errors"
	"math"
	"strconv"

	"cdr-pipeline/internal/source"
)

// Provider supplies the call and operator collections statistics are computed
// over. *source.Client satisfies it; tests use an in-memory provider.
type Provider interface {
	FetchCalls(ctx context.Context) ([]source.Call, error)
	FetchOperators(ctx context.Context) ([]source.Operator, error)
}

// CallsSummary aggregates call-level metrics over the current upstream data.
type CallsSummary struct {
	TotalCalls           int64   `json:"total_calls"`
	AnsweredCalls        int64   `json:"answered_calls"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

// OperatorStat reports per-operator call volume and average handling time.
// Operators with no calls are still listed with zero counts.
type OperatorStat struct {
	OperatorID             string  `json:"operator_id"`
	OperatorName           string  `json:"operator_name"`
	CallCount              int64   `json:"call_count"`
	AvgCallDurationSeconds float64 `json:"avg_call_duration_seconds"`
}

type Service struct {
	provider Provider
}

func NewService(provider Provider) *Service { return &Service{provider: provider} }

// statusAnswered marks a call that reached an operator. Upstream status
// vocabulary is mixed: some sources emit lowercase "answered", others
// terminal codes like "COMPLETED"/"NO_ANSWER"; only the former counts here.
const statusAnswered = "answered"

func (s *Service) CallsSummary(ctx context.Context) (CallsSummary, error) {
	if s.provider == nil {
		return CallsSummary{}, errors.New("stats: provider not configured")
	}
	calls, err := s.provider.FetchCalls(ctx)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TotalCalls: int64(len(calls))}
	for _, c := range calls {
		if c.Status == statusAnswered {
			out.AnsweredCalls++
		}
		out.TotalDurationSeconds += c.FinishedAt.Sub(c.StartedAt).Seconds()
	}
	if out.TotalCalls > 0 {
		out.AvgDurationSeconds = math.Round(out.TotalDurationSeconds / float64(out.TotalCalls))
	}
	out.TotalDurationSeconds = math.Round(out.TotalDurationSeconds)
	return out, nil
}

func (s *Service) OperatorStats(ctx context.Context) ([]OperatorStat, error) {
	if s.provider == nil {
		return nil, errors.New("stats: provider not configured")
	}
	calls, err := s.provider.FetchCalls(ctx)
	if err != nil {
		return nil, err
	}
	operators, err := s.provider.FetchOperators(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		count         int64
		totalDuration float64
	}
	byOperator := make(map[int64]*acc, len(operators))
	for _, op := range operators {
		byOperator[op.ID] = &acc{}
	}
	for _, c := range calls {
		a, ok := byOperator[c.UserID]
		if !ok {
			// calls without a known operator are not attributed
			continue
		}
		a.count++
		a.totalDuration += c.FinishedAt.Sub(c.StartedAt).Seconds()
	}

	out := make([]OperatorStat, 0, len(operators))
	for _, op := range operators {
		a := byOperator[op.ID]
		stat := OperatorStat{
			OperatorID:   formatID(op.ID),
			OperatorName: op.Name,
			CallCount:    a.count,
		}
		if a.count > 0 {
			stat.AvgCallDurationSeconds = math.Round(a.totalDuration / float64(a.count))
		}
		out = append(out, stat)
	}
	return out, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
