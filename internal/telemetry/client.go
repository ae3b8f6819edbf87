package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/goccy/go-json"
)

// Record is one line of the NDJSON telemetry export: a single user action on
// the platform. Records arrive in no guaranteed order.
type Record struct {
	Event      string                 `json:"event"`
	UserID     string                 `json:"user_id,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Cursor     string                 `json:"cursor,omitempty"`
}

// StreamRequest selects which events and time window to export.
type StreamRequest struct {
	EventIDs []string `json:"event_ids"`
	TimeGT   string   `json:"time_gt"`
	TimeLT   string   `json:"time_lt,omitempty"`
}

// Window is an ISO8601 time range for telemetry exports. An empty TimeLT
// means "up to now".
type Window struct {
	TimeGT string
	TimeLT string
}

const timeFormat = "2006-01-02T15:04:05.000Z"

// WindowFromDays builds a lookback window ending now.
func WindowFromDays(days int) Window {
	return Window{
		TimeGT: time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(timeFormat),
	}
}

// APIError is a non-2xx response from the analytics export. It carries the
// upstream status and body so callers can decide whether to retry or skip
// the entity; the client itself never retries.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analytics API HTTP %d: %s", e.Status, e.Body)
}

// StreamStats reports what happened while consuming one export stream.
type StreamStats struct {
	Records      int
	SkippedLines int
	LastCursor   string
}

// Client streams NDJSON telemetry exports from the upstream analytics API.
type Client struct {
	cfg        config.PlatformConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a telemetry export client. The HTTP client carries no
// overall timeout; stream duration is bounded per call via context.
func NewClient(cfg config.PlatformConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// maxLineBytes bounds a single NDJSON line. Oversized lines are skipped, not
// fatal to the stream.
const maxLineBytes = 1 << 20

// Stream opens the telemetry export for the given request and invokes fn for
// every parseable record, in arrival order, without buffering the body.
// Malformed lines are counted in SkippedLines and otherwise ignored. The
// whole stream is bounded by the configured stream timeout.
func (c *Client) Stream(ctx context.Context, req StreamRequest, fn func(Record)) (StreamStats, error) {
	var stats StreamStats

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StreamTimeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return stats, fmt.Errorf("failed to marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AnalyticsURL, bytes.NewReader(payload))
	if err != nil {
		return stats, fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return stats, fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return stats, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	reader := bufio.NewReaderSize(resp.Body, 64*1024)

	for {
		line, err := readLine(reader)
		if errors.Is(err, errLineTooLong) {
			stats.SkippedLines++
			continue
		}
		if err != nil && err != io.EOF {
			return stats, fmt.Errorf("stream read failed after %d records: %w", stats.Records, err)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var rec Record
			if jsonErr := json.Unmarshal(trimmed, &rec); jsonErr != nil {
				stats.SkippedLines++
			} else {
				fn(rec)
				stats.Records++
				if rec.Cursor != "" {
					stats.LastCursor = rec.Cursor
				}

				if stats.Records%25000 == 0 {
					c.logger.Debug("streaming telemetry records",
						"count", stats.Records,
						"skipped", stats.SkippedLines,
					)
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	return stats, nil
}

// errLineTooLong marks a line that exceeded maxLineBytes. The line is fully
// drained so the stream can continue at the next newline.
var errLineTooLong = errors.New("line exceeds size limit")

// readLine returns the next newline-delimited line, accumulating across the
// reader's internal buffer for lines larger than it. A line growing past
// maxLineBytes is consumed and discarded, returning errLineTooLong; the
// final line of the stream may be terminated by EOF instead of a newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte

	for {
		frag, err := r.ReadSlice('\n')
		if err == nil || err == io.EOF {
			if line == nil {
				return frag, err
			}
			return append(line, frag...), err
		}
		if err != bufio.ErrBufferFull {
			return nil, err
		}

		line = append(line, frag...)
		if len(line) > maxLineBytes {
			return nil, drainLine(r)
		}
	}
}

// drainLine discards reader input up to and including the next newline.
func drainLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		switch err {
		case nil, io.EOF:
			return errLineTooLong
		case bufio.ErrBufferFull:
			continue
		default:
			return err
		}
	}
}
