// Package persistence contains helpers shared by store implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/healthsync/internal/domain"
)

// DefaultPageSize and MaxPageSize bound record listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ClampLimit maps a requested page size onto [1, MaxPageSize].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// EncodeCursor serialises the cursor to an opaque token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.StartTime.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields nil.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("cursor time: %w", err)
	}
	return &domain.Cursor{StartTime: ts, ID: parts[1]}, nil
}

// Before reports whether a record at (start, id) sorts after the cursor in
// newest-first order, i.e. belongs to the next page.
func Before(c *domain.Cursor, start time.Time, id string) bool {
	if c == nil {
		return true
	}
	if start.Equal(c.StartTime) {
		return id < c.ID
	}
	return start.Before(c.StartTime)
}
