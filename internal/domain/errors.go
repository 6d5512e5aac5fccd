package domain

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that the device health platform is absent or disabled.
// It is the only error that ends an import before any record type is attempted.
var ErrUnavailable = errors.New("health platform unavailable")

// PermissionError reports that a record type lacks a read grant.
type PermissionError struct {
	Type RecordType
	Err  error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permission denied: %v", e.Err)
	}
	return "permission denied"
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ProviderError reports that the platform failed to return records for a type.
type ProviderError struct {
	Type RecordType
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for %s: %v", e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError reports that a single record could not be written.
type PersistenceError struct {
	Type     RecordType
	RecordID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s record %s: %v", e.Type, e.RecordID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPermission reports whether err carries a PermissionError.
func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// IsProvider reports whether err carries a ProviderError.
func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}
