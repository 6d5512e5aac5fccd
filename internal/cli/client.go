package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/healthsync/internal/api"
)

// APIError is a non-2xx response decoded from the {"type","detail"} envelope.
type APIError struct {
	StatusCode int
	Type       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Type, e.Detail)
}

// Client calls the healthsync HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client for baseURL authenticating with token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Availability(ctx context.Context) (api.AvailabilityResponse, error) {
	var out api.AvailabilityResponse
	err := c.do(ctx, http.MethodGet, "/v1/health/availability", nil, &out)
	return out, err
}

func (c *Client) Import(ctx context.Context, req api.ImportRequest) (api.ImportResultView, error) {
	var out api.ImportResultView
	err := c.do(ctx, http.MethodPost, "/v1/health/import", req, &out)
	return out, err
}

func (c *Client) ImportStatus(ctx context.Context) (api.StatusView, error) {
	var out api.StatusView
	err := c.do(ctx, http.MethodGet, "/v1/health/import/status", nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var out api.StatsResponse
	err := c.do(ctx, http.MethodGet, "/v1/health/stats", nil, &out)
	return out, err
}

func (c *Client) Permission(ctx context.Context, recordType string) (api.PermissionResponse, error) {
	var out api.PermissionResponse
	err := c.do(ctx, http.MethodGet, "/v1/health/permissions/"+url.PathEscape(recordType), nil, &out)
	return out, err
}

func (c *Client) CheckPermissions(ctx context.Context, types []string) (api.PermissionCheckResponse, error) {
	var out api.PermissionCheckResponse
	err := c.do(ctx, http.MethodPost, "/v1/health/permissions/check", api.PermissionCheckRequest{Types: types}, &out)
	return out, err
}

func (c *Client) Records(ctx context.Context, recordType, cursor string, limit int) (api.ListRecordsResponse, error) {
	q := url.Values{}
	if recordType != "" {
		q.Set("type", recordType)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/health/records"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out api.ListRecordsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Type   string `json:"type"`
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope); err == nil {
			apiErr.Type = envelope.Type
			apiErr.Detail = envelope.Detail
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
