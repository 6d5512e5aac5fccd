package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, WithBackoff(time.Millisecond, 2*time.Millisecond))
}

func TestAvailability(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/availability", r.URL.Path)
		_, _ = w.Write([]byte(`{"available":true}`))
	}))

	ok, err := client.IsHealthServiceAvailable(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReadStepsSendsRangeAndDecodes(t *testing.T) {
	start := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/records/steps", r.URL.Path)
		assert.Equal(t, start.Format(time.RFC3339Nano), r.URL.Query().Get("start"))
		assert.Equal(t, end.Format(time.RFC3339Nano), r.URL.Query().Get("end"))
		_, _ = w.Write([]byte(`{"records":[{"id":"s-1","start_time":"2026-03-03T08:00:00Z","end_time":"2026-03-03T09:00:00Z","count":1200,"metadata":{"device_id":"watch"}}]}`))
	}))

	records, err := client.ReadSteps(context.Background(), domain.TimeRange{Start: start, End: end})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "s-1", records[0].ID)
	require.NotNil(t, records[0].Count)
	require.EqualValues(t, 1200, *records[0].Count)
	require.NotNil(t, records[0].Metadata.DeviceID)
	require.Equal(t, "watch", *records[0].Metadata.DeviceID)
}

func TestReadReturnsEmptySliceWhenNoRecords(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	records, err := client.ReadSleepSessions(context.Background(), domain.TimeRange{})
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))

	_, err := client.ReadDistance(context.Background(), domain.TimeRange{})
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad range", http.StatusBadRequest)
	}))

	_, err := client.ReadTotalCalories(context.Background(), domain.TimeRange{})
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

func TestForbiddenMapsToAuthorizationError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "revoked", http.StatusForbidden)
	}))

	_, err := client.ReadHeartRate(context.Background(), domain.TimeRange{})
	require.Error(t, err)
	require.True(t, platform.IsAuthorization(err))
}

func TestRequestPermissionsIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.RequestPermissions(context.Background(), platform.ReadRequests([]domain.RecordType{domain.RecordTypeSteps}))
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestCheckPermissionsPostsRequests(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/permissions/check", r.URL.Path)

		var body permissionsBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Permissions, 2)
		assert.Equal(t, platform.AccessRead, body.Permissions[0].Access)

		_, _ = w.Write([]byte(`{"granted":["steps"],"denied":["sleep"]}`))
	}))

	resp, err := client.CheckPermissions(context.Background(), platform.ReadRequests([]domain.RecordType{domain.RecordTypeSteps, domain.RecordTypeSleep}))
	require.NoError(t, err)
	require.Equal(t, []domain.RecordType{domain.RecordTypeSteps}, resp.Granted)
	require.Equal(t, []domain.RecordType{domain.RecordTypeSleep}, resp.Denied)
}

func TestRequestPermissionsOutlivesPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(`{"granted":["steps"]}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, 50*time.Millisecond, WithRetries(0))
	requests := platform.ReadRequests([]domain.RecordType{domain.RecordTypeSteps})

	_, err := client.CheckPermissions(context.Background(), requests)
	require.Error(t, err, "checks are bounded by the client timeout")

	resp, err := client.RequestPermissions(context.Background(), requests)
	require.NoError(t, err)
	require.Equal(t, []domain.RecordType{domain.RecordTypeSteps}, resp.Granted)
}

func TestRequestPermissionsStopsAtContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.RequestPermissions(ctx, platform.ReadRequests([]domain.RecordType{domain.RecordTypeSleep}))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNilLoggerKeepsDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"available":true}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, time.Second, WithLogger(nil), WithHTTPClient(nil), WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NotNil(t, client.logger)

	ok, err := client.IsHealthServiceAvailable(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, calls.Load())
}

func TestRetriesGiveUpAfterLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, time.Second, WithRetries(2), WithBackoff(time.Millisecond, 2*time.Millisecond))

	_, err := client.ReadExerciseSessions(context.Background(), domain.TimeRange{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.EqualValues(t, 3, calls.Load())
}

func TestCancelledDuringBackoffKeepsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, time.Second, WithBackoff(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.ReadSteps(ctx, domain.TimeRange{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}
