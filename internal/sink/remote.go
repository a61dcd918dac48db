package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/pkg/logger"
)

var ErrRemoteDelivery = errors.New("sink: remote delivery failed")

// RemoteSink posts one run's external records as a single JSON array batch.
//
// The batch is atomic from the pipeline's perspective: there is no partial
// retry. A failed delivery fails the run; re-triggering re-sends the whole
// batch, carrying the same duplicate-delivery risk the contract accepts. The
// run identifier travels as an idempotency key so a receiver that wants to
// de-duplicate can.
type RemoteSink struct {
	url  string
	http *http.Client
}

func NewRemoteSink(url string, timeout time.Duration) *RemoteSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSink{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

type deliveryResponse struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
}

// Deliver sends the batch. An empty batch issues no HTTP call at all.
func (s *RemoteSink) Deliver(ctx context.Context, runID string, records []cdr.ExternalCDR) error {
	if len(records) == 0 {
		logger.From(ctx).Info("external batch empty, skipping delivery", "run_id", runID)
		return nil
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode external batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", runID)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d", ErrRemoteDelivery, resp.StatusCode)
	}

	var out deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteDelivery, err)
	}
	if out.Received != len(records) {
		return fmt.Errorf("%w: receiver acknowledged %d of %d records", ErrRemoteDelivery, out.Received, len(records))
	}

	logger.From(ctx).Info("external batch delivered", "run_id", runID, "records", len(records))
	return nil
}
