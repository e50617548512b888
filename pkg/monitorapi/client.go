// Package monitorapi is the client of the monitoring microservice that runs
// the checks and stores the per-region response times.
package monitorapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/timeseries"
)

const (
	defaultTimeout = 30 * time.Second
	// maxMessageRunes bounds the raw body kept as an error message.
	maxMessageRunes = 200
)

// APIError is a non-2xx answer of the microservice.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("monitor api: unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("monitor api: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the microservice.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// UserDetails is the account behind the API key.
type UserDetails struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Plan               string `json:"plan"`
	MinIntervalSeconds int64  `json:"min_interval_seconds"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// Observe, when set, is called after every request with the endpoint
	// path, the elapsed time and the outcome.
	Observe func(endpoint string, elapsed time.Duration, err error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	observe    func(string, time.Duration, error)
}

// NewClient builds a client whose transport answers repeated GETs from an
// in-memory cache when the server sends validators.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		observe: opts.Observe,
	}
}

// Healthcheck runs the given checks against target and returns the raw
// envelope.
func (c *Client) Healthcheck(ctx context.Context, target string, kinds []checks.Kind) (*checks.Envelope, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	q := url.Values{}
	q.Set("url", target)
	q.Set("checks", strings.Join(names, ","))

	body, err := c.get(ctx, "/healthcheck", q)
	if err != nil {
		return nil, err
	}

	env, err := checks.ParseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode healthcheck: %w", err)
	}
	return env, nil
}

// ResponseTime fetches the response time series of one region.
func (c *Client) ResponseTime(ctx context.Context, monitorID, region string, from, to time.Time) (timeseries.Series, error) {
	q := url.Values{}
	q.Set("monitor_id", monitorID)
	q.Set("region", region)
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))

	var series timeseries.Series
	body, err := c.get(ctx, "/response-time", q)
	if err != nil {
		return series, err
	}
	if err := json.Unmarshal(body, &series); err != nil {
		return series, fmt.Errorf("failed to decode response time: %w", err)
	}
	return series, nil
}

// UserDetails fetches the account behind the API key.
func (c *Client) UserDetails(ctx context.Context) (*UserDetails, error) {
	body, err := c.get(ctx, "/user", nil)
	if err != nil {
		return nil, err
	}

	var user UserDetails
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (body []byte, err error) {
	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(path, time.Since(start), err) }()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error
// body and falls back to the trimmed text.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	msg := strings.ToValidUTF8(strings.TrimSpace(string(body)), "")
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		msg = string([]rune(msg)[:maxMessageRunes])
	}
	return msg
}
