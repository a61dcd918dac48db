package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/internal/runlog"
	"cdr-pipeline/internal/runner"
	"cdr-pipeline/internal/source"
)

type fakeFetcher struct {
	data  source.Data
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchAll(ctx context.Context) (source.Data, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return source.Data{}, ctx.Err()
		}
	}
	if f.err != nil {
		return source.Data{}, f.err
	}
	return f.data, nil
}

type memSinks struct {
	mu      sync.Mutex
	rows    map[string]cdr.CDR
	batches [][]cdr.ExternalCDR
}

func newMemSinks() *memSinks { return &memSinks{rows: make(map[string]cdr.CDR)} }

func (s *memSinks) Deliver(ctx context.Context, records []cdr.CDR) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.rows[rec.CallID] = rec
	}
	return nil
}

func (s *memSinks) DeliverExternal(ctx context.Context, runID string, records []cdr.ExternalCDR) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

type externalAdapter struct{ s *memSinks }

func (a externalAdapter) Deliver(ctx context.Context, runID string, records []cdr.ExternalCDR) error {
	return a.s.DeliverExternal(ctx, runID, records)
}

func eligibleData() source.Data {
	started, _ := time.Parse(time.RFC3339, "2024-06-18T12:00:00Z")
	finished, _ := time.Parse(time.RFC3339, "2024-06-18T12:05:00Z")
	answered := started.Add(10 * time.Second)
	return source.Data{
		Calls:     []source.Call{{ID: 100, Status: "COMPLETED", UserID: 200, StartedAt: started, FinishedAt: finished}},
		Events:    []source.CallEvent{{ID: 1, CallID: 100, EventType: "start"}},
		Operators: []source.Operator{{ID: 200, Name: "Alice"}},
		Connections: []source.Connection{{
			ID: 1, CallID: 100, InitiatedAt: started, AnsweredAt: &answered, FinishedAt: &finished,
		}},
	}
}

func newTestRouter(f runner.Fetcher, sinks *memSinks) *gin.Engine {
	gin.SetMode(gin.TestMode)
	runs := runner.New(f, sinks, externalAdapter{sinks}, nil, runner.Config{RunTimeout: time.Second, IncludeUnanswered: true}, nil)
	h := Handlers{Runner: runs}

	r := gin.New()
	r.POST("/admin/trigger-cdr-upload", h.TriggerCDRUpload)
	r.POST("/admin/trigger-external-cdr-upload", h.TriggerExternalCDRUpload)
	return r
}

func TestTriggerCDRUpload_Success(t *testing.T) {
	sinks := newMemSinks()
	r := newTestRouter(&fakeFetcher{data: eligibleData()}, sinks)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-cdr-upload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sinks.rows) != 1 {
		t.Fatalf("expected 1 persisted row, got %d", len(sinks.rows))
	}

	var resp struct {
		Status string        `json:"status"`
		Report runner.Report `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Report.Delivered != 1 || resp.Report.RunID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTriggerExternalCDRUpload_Success(t *testing.T) {
	sinks := newMemSinks()
	r := newTestRouter(&fakeFetcher{data: eligibleData()}, sinks)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-external-cdr-upload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sinks.batches) != 1 {
		t.Fatalf("expected 1 delivered batch, got %d", len(sinks.batches))
	}
}

func TestTrigger_FetchFailureReportsPhase(t *testing.T) {
	r := newTestRouter(&fakeFetcher{err: errors.New("upstream down")}, newMemSinks())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-cdr-upload", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["phase"] != "fetch" {
		t.Fatalf("expected fetch phase in response, got %v", resp)
	}
}

func TestRecentRuns_ListsTriggeredRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sinks := newMemSinks()
	runs := runner.New(&fakeFetcher{data: eligibleData()}, sinks, externalAdapter{sinks}, nil,
		runner.Config{RunTimeout: time.Second, IncludeUnanswered: true}, nil)
	history := runlog.NewService(runlog.NewMemoryRepo(), nil)
	runs.SetRecorder(history)
	h := Handlers{Runner: runs, Runs: history}

	r := gin.New()
	r.POST("/admin/trigger-cdr-upload", h.TriggerCDRUpload)
	r.GET("/admin/runs", h.RecentRuns)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-cdr-upload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("trigger failed: %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Runs []runlog.Entry `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Runs) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(resp.Runs))
	}
	if resp.Runs[0].Status != runlog.StatusCompleted || resp.Runs[0].Kind != "internal" {
		t.Fatalf("unexpected entry: %+v", resp.Runs[0])
	}
}

func TestHealth_WithoutPoolReportsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", Handlers{}.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTrigger_ConcurrentSameKindConflicts(t *testing.T) {
	slow := &fakeFetcher{data: eligibleData(), delay: 300 * time.Millisecond}
	r := newTestRouter(slow, newMemSinks())

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-cdr-upload", nil))
		first <- w.Code
	}()

	time.Sleep(50 * time.Millisecond)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/trigger-cdr-upload", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for concurrent trigger, got %d", w.Code)
	}

	if code := <-first; code != http.StatusOK {
		t.Fatalf("expected first trigger to succeed, got %d", code)
	}
}
