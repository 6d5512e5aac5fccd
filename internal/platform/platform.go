// Package platform describes the device health platform the pipeline reads from.
package platform

import (
	"context"
	"errors"

	"example.com/healthsync/internal/domain"
)

// AccessRead is the only access level the pipeline asks for.
const AccessRead = "read"

// ErrNotAuthorized is wrapped by clients when the platform rejects a call for
// lack of a grant, e.g. after the user revoked access outside the app.
var ErrNotAuthorized = errors.New("platform: not authorized")

// IsAuthorization reports whether err signals a missing or revoked grant.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// PermissionRequest names one grant to check or request.
type PermissionRequest struct {
	RecordType domain.RecordType `json:"record_type"`
	Access     string            `json:"access"`
}

// PermissionResponse reports grant state as seen by the platform.
type PermissionResponse struct {
	Success bool                `json:"success"`
	Granted []domain.RecordType `json:"granted"`
	Denied  []domain.RecordType `json:"denied"`
}

// ReadRequests builds read permission requests for the given types.
func ReadRequests(types []domain.RecordType) []PermissionRequest {
	out := make([]PermissionRequest, 0, len(types))
	for _, t := range types {
		out = append(out, PermissionRequest{RecordType: t, Access: AccessRead})
	}
	return out
}

// AvailabilityChecker reports whether the health service is installed and enabled.
type AvailabilityChecker interface {
	IsHealthServiceAvailable(ctx context.Context) (bool, error)
}

// PermissionClient exposes the platform's read-permission model.
// RequestPermissions may block until the user answers a consent dialog.
type PermissionClient interface {
	CheckPermissions(ctx context.Context, requests []PermissionRequest) (PermissionResponse, error)
	RequestPermissions(ctx context.Context, requests []PermissionRequest) (PermissionResponse, error)
}

// RecordReader reads raw provider records, one method per record shape.
type RecordReader interface {
	ReadSteps(ctx context.Context, window domain.TimeRange) ([]StepsRecord, error)
	ReadHeartRate(ctx context.Context, window domain.TimeRange) ([]HeartRateRecord, error)
	ReadDistance(ctx context.Context, window domain.TimeRange) ([]DistanceRecord, error)
	ReadActiveCalories(ctx context.Context, window domain.TimeRange) ([]CaloriesRecord, error)
	ReadTotalCalories(ctx context.Context, window domain.TimeRange) ([]CaloriesRecord, error)
	ReadExerciseSessions(ctx context.Context, window domain.TimeRange) ([]ExerciseSessionRecord, error)
	ReadSleepSessions(ctx context.Context, window domain.TimeRange) ([]SleepSessionRecord, error)
}

// Client is the full platform collaborator.
type Client interface {
	AvailabilityChecker
	PermissionClient
	RecordReader
}
