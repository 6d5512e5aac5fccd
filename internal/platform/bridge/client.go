// Package bridge talks to the on-device health bridge over JSON/HTTP.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError carries a non-success bridge response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge returned %d: %s", e.StatusCode, e.Body)
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for every bridge call except
// the consent request.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithConsentHTTPClient overrides the transport used by RequestPermissions.
// The default has no timeout; the caller's context bounds the consent flow.
func WithConsentHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.consentClient = doer
		}
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithBackoff overrides the retry delay bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithLogger overrides the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client implements platform.Client against the device bridge.
type Client struct {
	baseURL       string
	httpClient    HTTPDoer
	consentClient HTTPDoer
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	logger        *slog.Logger
}

var _ platform.Client = (*Client)(nil)

// NewClient constructs a Client with sane defaults. timeout bounds each
// availability, permission check, and read attempt.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		consentClient: &http.Client{},
		maxRetries:    3,
		baseDelay:     500 * time.Millisecond,
		maxDelay:      10 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsHealthServiceAvailable asks the bridge whether the platform service is installed and enabled.
func (c *Client) IsHealthServiceAvailable(ctx context.Context) (bool, error) {
	var payload struct {
		Available bool `json:"available"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/availability", nil, &payload); err != nil {
		return false, err
	}
	return payload.Available, nil
}

type permissionsBody struct {
	Permissions []platform.PermissionRequest `json:"permissions"`
}

// CheckPermissions returns the current grant state for the requested types.
func (c *Client) CheckPermissions(ctx context.Context, requests []platform.PermissionRequest) (platform.PermissionResponse, error) {
	var resp platform.PermissionResponse
	err := c.call(ctx, http.MethodPost, "/v1/permissions/check", permissionsBody{Permissions: requests}, &resp)
	return resp, err
}

// RequestPermissions triggers the consent flow on the device. Consent can take
// arbitrarily long, so this call is never retried and only ctx bounds it.
func (c *Client) RequestPermissions(ctx context.Context, requests []platform.PermissionRequest) (platform.PermissionResponse, error) {
	var resp platform.PermissionResponse
	err := c.send(ctx, c.consentClient, http.MethodPost, "/v1/permissions/request", permissionsBody{Permissions: requests}, &resp, 0)
	return resp, err
}

// ReadSteps reads step count records.
func (c *Client) ReadSteps(ctx context.Context, window domain.TimeRange) ([]platform.StepsRecord, error) {
	return readRecords[platform.StepsRecord](ctx, c, domain.RecordTypeSteps, window)
}

// ReadHeartRate reads heart-rate sample series.
func (c *Client) ReadHeartRate(ctx context.Context, window domain.TimeRange) ([]platform.HeartRateRecord, error) {
	return readRecords[platform.HeartRateRecord](ctx, c, domain.RecordTypeHeartRate, window)
}

// ReadDistance reads distance records.
func (c *Client) ReadDistance(ctx context.Context, window domain.TimeRange) ([]platform.DistanceRecord, error) {
	return readRecords[platform.DistanceRecord](ctx, c, domain.RecordTypeDistance, window)
}

// ReadActiveCalories reads active energy records.
func (c *Client) ReadActiveCalories(ctx context.Context, window domain.TimeRange) ([]platform.CaloriesRecord, error) {
	return readRecords[platform.CaloriesRecord](ctx, c, domain.RecordTypeActiveCalories, window)
}

// ReadTotalCalories reads total energy records.
func (c *Client) ReadTotalCalories(ctx context.Context, window domain.TimeRange) ([]platform.CaloriesRecord, error) {
	return readRecords[platform.CaloriesRecord](ctx, c, domain.RecordTypeTotalCalories, window)
}

// ReadExerciseSessions reads workout sessions.
func (c *Client) ReadExerciseSessions(ctx context.Context, window domain.TimeRange) ([]platform.ExerciseSessionRecord, error) {
	return readRecords[platform.ExerciseSessionRecord](ctx, c, domain.RecordTypeExercise, window)
}

// ReadSleepSessions reads sleep sessions.
func (c *Client) ReadSleepSessions(ctx context.Context, window domain.TimeRange) ([]platform.SleepSessionRecord, error) {
	return readRecords[platform.SleepSessionRecord](ctx, c, domain.RecordTypeSleep, window)
}

func readRecords[T any](ctx context.Context, c *Client, recordType domain.RecordType, window domain.TimeRange) ([]T, error) {
	query := url.Values{}
	query.Set("start", window.Start.UTC().Format(time.RFC3339Nano))
	query.Set("end", window.End.UTC().Format(time.RFC3339Nano))
	path := fmt.Sprintf("/v1/records/%s?%s", url.PathEscape(string(recordType)), query.Encode())

	var payload struct {
		Records []T `json:"records"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Records == nil {
		return []T{}, nil
	}
	return payload.Records, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, c.httpClient, method, path, body, out, c.maxRetries)
}

// send retries transient failures (network errors, 429, 5xx) with exponential
// backoff and jitter. Client errors and context cancellation end the loop at once.
func (c *Client) send(ctx context.Context, doer HTTPDoer, method, path string, body, out any, maxRetries int) error {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return err
		}
	}

	var lastErr error
	operation := func() error {
		retryable, err := c.do(ctx, doer, method, path, encoded, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		c.logger.Debug("bridge retry", "attempt", attempt, "max_retries", maxRetries, "method", method, "path", path, "delay", delay, "error", err)
	}

	err := backoff.RetryNotify(operation, c.policy(ctx, maxRetries), notify)
	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		// Cancelled while waiting between attempts.
		return errors.Join(err, lastErr)
	}
	return err
}

func (c *Client) policy(ctx context.Context, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxInterval = c.maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

func (c *Client) do(ctx context.Context, doer HTTPDoer, method, path string, body []byte, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doer.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return false, fmt.Errorf("%w: %v", platform.ErrNotAuthorized, statusErr)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return true, statusErr
		default:
			return false, statusErr
		}
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode bridge response: %w", err)
	}
	return false, nil
}
