// Package modvolc fetches thermal alert listings from the MODVOLC archive.
package modvolc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// maxPayloadBytes bounds the body read from the archive.
	maxPayloadBytes = 64 << 20
)

var errHTMLBody = errors.New("archive returned an HTML page instead of an alert listing")

// Client implements the pipeline fetcher against the MODVOLC CGI.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. Each request is bounded by timeout;
// failed requests are retried up to retries times.
func NewClient(baseURL string, timeout time.Duration, retries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		metrics: metrics,
		logger:  logger,
	}
}

// QueryURL renders the archive request URL for q.
func QueryURL(baseURL string, q domain.Query) string {
	w := q.Window
	var b strings.Builder
	b.WriteString(baseURL)
	if strings.Contains(baseURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	fmt.Fprintf(&b, "maptype=alerts&jyear=%04d&jday=%03d&jperiod=%d",
		q.End.Year(), q.End.YearDay(), q.PeriodDays())
	fmt.Fprintf(&b, "&lonmin=%s&latmin=%s&lonmax=%s&latmax=%s",
		coord(w.LonMin), coord(w.LatMin), coord(w.LonMax), coord(w.LatMax))
	return b.String()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fetch downloads the alert listing for q. Transport failures and 5xx
// responses are retried with exponential backoff; anything else that is not
// a 200 text listing is returned as a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, q domain.Query) ([]byte, error) {
	u := QueryURL(c.baseURL, q)
	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		body, retryable, err := c.fetchOnce(ctx, u)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues("success").Inc()
			c.metrics.PayloadBytes.Observe(float64(len(body)))
			return body, nil
		}
		if !retryable || attempt >= c.retries || ctx.Err() != nil {
			c.metrics.FetchRequests.WithLabelValues("error").Inc()
			return nil, err
		}

		c.logger.Warn("archive request failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.retries,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			c.metrics.FetchRequests.WithLabelValues("error").Inc()
			return nil, &domain.FetchError{URL: u, Err: ctx.Err()}
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// fetchOnce performs a single request and reports whether a failure is worth
// retrying.
func (c *Client) fetchOnce(ctx context.Context, u string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, &domain.FetchError{URL: u, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, &domain.FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, true, &domain.FetchError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= http.StatusInternalServerError
		return nil, retryable, &domain.FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", snippet(body)),
		}
	}
	if looksLikeHTML(body) {
		return nil, false, &domain.FetchError{URL: u, StatusCode: resp.StatusCode, Err: errHTMLBody}
	}
	return body, false, nil
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<body"))
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
