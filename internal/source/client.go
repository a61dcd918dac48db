package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrSourceUnavailable = errors.New("source: upstream unavailable")

// Client drains the four cursor-paginated source endpoints.
//
// Pagination contract: request carries optional cursor (last-seen identifier)
// and limit; response is {"results": [...], "next_cursor": <id|null>}.
// A null next_cursor means the source is exhausted; zero results with a null
// cursor is a legitimately empty source, not an error.
type Client struct {
	baseURL     string
	http        *http.Client
	limit       int
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// ClientConfig controls fetch behavior. Zero values get safe defaults.
type ClientConfig struct {
	BaseURL     string
	FetchLimit  int
	MaxAttempts int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	Logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		http:        &http.Client{Timeout: cfg.HTTPTimeout},
		limit:       cfg.FetchLimit,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		log:         cfg.Logger,
	}
}

// Data is one run's complete snapshot of all four sources.
type Data struct {
	Calls       []Call
	Connections []Connection
	Events      []CallEvent
	Operators   []Operator
}

// FetchAll drains the four sources concurrently. Any single failure cancels
// the remaining fetches and fails the whole snapshot: completeness decisions
// over partial source data would be wrong.
func (c *Client) FetchAll(ctx context.Context) (Data, error) {
	var data Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Calls, err = c.FetchCalls(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Connections, err = c.FetchConnections(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Events, err = c.FetchEvents(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Operators, err = c.FetchOperators(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return data, nil
}

func (c *Client) FetchCalls(ctx context.Context) ([]Call, error) {
	return drain[Call](ctx, c, "/calls")
}

func (c *Client) FetchConnections(ctx context.Context) ([]Connection, error) {
	return drain[Connection](ctx, c, "/connections")
}

func (c *Client) FetchEvents(ctx context.Context) ([]CallEvent, error) {
	return drain[CallEvent](ctx, c, "/call_events")
}

func (c *Client) FetchOperators(ctx context.Context) ([]Operator, error) {
	return drain[Operator](ctx, c, "/operators")
}

type page struct {
	Results    []json.RawMessage `json:"results"`
	NextCursor *int64            `json:"next_cursor"`
}

// drain walks one endpoint to exhaustion. A record that fails to decode is
// skipped and logged; pagination continues past it.
func drain[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	out := make([]T, 0)
	var cursor *int64
	for {
		pg, err := c.getPage(ctx, path, cursor)
		if err != nil {
			return nil, err
		}
		for _, raw := range pg.Results {
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				c.log.Warn("skipping malformed record", "path", path, "err", err)
				continue
			}
			out = append(out, item)
		}
		if pg.NextCursor == nil {
			return out, nil
		}
		cursor = pg.NextCursor
	}
}

// getPage requests one page, retrying transient failures (network errors and
// 5xx responses) with exponential backoff. 4xx responses are not retried.
func (c *Client) getPage(ctx context.Context, path string, cursor *int64) (page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	if cursor != nil {
		q.Set("cursor", strconv.FormatInt(*cursor, 10))
	}
	reqURL := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	delay := c.retryDelay
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return page{}, ctx.Err()
			}
			delay *= 2
		}

		pg, retryable, err := c.doGet(ctx, reqURL)
		if err == nil {
			return pg, nil
		}
		lastErr = err
		if !retryable {
			return page{}, err
		}
		c.log.Warn("source page fetch failed", "path", path, "attempt", attempt, "err", err)
	}
	return page{}, fmt.Errorf("%w: %s after %d attempts: %v", ErrSourceUnavailable, path, c.maxAttempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, reqURL string) (pg page, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return page{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return page{}, true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return page{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&pg); err != nil {
		// A page that fails to decode as a whole is indistinguishable from a
		// truncated response; treat it as transient.
		return page{}, true, fmt.Errorf("decode page: %w", err)
	}
	return pg, false, nil
}
