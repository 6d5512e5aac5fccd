// Package api exposes HTTP handlers for the health import service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/health"
	"example.com/healthsync/internal/persistence"
)

// HealthService is the subset of health.Service the handlers depend on.
type HealthService interface {
	IsAvailable(ctx context.Context) bool
	ImportHealthData(ctx context.Context, window domain.TimeRange, types []domain.RecordType) domain.ImportResult
	GetHealthStats(ctx context.Context) (domain.HealthStats, error)
	HasPermission(t domain.RecordType) bool
	CheckPermissions(ctx context.Context, types []domain.RecordType) ([]domain.PermissionGrant, error)
	ListRecords(ctx context.Context, t domain.RecordType, cursor *domain.Cursor, limit int) ([]domain.HealthRecord, *domain.Cursor, error)
	Status() health.Status
}

// Handler coordinates HTTP requests with the health service.
type Handler struct {
	service HealthService
	logger  *slog.Logger
}

// NewHandler builds a Handler. A nil logger falls back to slog.Default.
func NewHandler(service HealthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Router mounts every endpoint. Extra middleware (CORS, for example) runs
// before request logging and authentication.
func (h *Handler) Router(authn auth.Middleware, extra ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(extra...)
	r.Use(RequestLogger(h.logger))

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/health", func(r chi.Router) {
		r.Use(authn.Wrap)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeHealthRead))
			r.Get("/availability", h.availability)
			r.Get("/import/status", h.importStatus)
			r.Get("/stats", h.stats)
			r.Get("/permissions/{type}", h.permission)
			r.Post("/permissions/check", h.checkPermissions)
			r.Get("/records", h.listRecords)
		})

		r.With(auth.RequireScope(auth.ScopeHealthWrite)).Post("/import", h.importHealthData)
	})
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AvailabilityResponse{Available: h.service.IsAvailable(r.Context())})
}

func (h *Handler) importHealthData(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	window, types, err := req.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result := h.service.ImportHealthData(r.Context(), window, types)
	writeJSON(w, http.StatusOK, toImportResultView(result))
}

func (h *Handler) importStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatusView(h.service.Status()))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetHealthStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "health stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Daily:  toRollupView(stats.Daily),
		Weekly: toRollupView(stats.Weekly),
	})
}

// permission answers from the grants resolved by the last import or check.
func (h *Handler) permission(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseRecordType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PermissionResponse{RecordType: string(t), Granted: h.service.HasPermission(t)})
}

func (h *Handler) checkPermissions(w http.ResponseWriter, r *http.Request) {
	var req PermissionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	types, err := req.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	grants, err := h.service.CheckPermissions(r.Context(), types)
	if err != nil {
		h.logger.WarnContext(r.Context(), "permission check failed", "error", err)
		writeError(w, http.StatusBadGateway, "platform_error", err.Error())
		return
	}
	resp := PermissionCheckResponse{Permissions: make([]PermissionView, 0, len(grants))}
	for _, g := range grants {
		resp.Permissions = append(resp.Permissions, PermissionView{RecordType: string(g.RecordType), Granted: g.Granted})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var recordType domain.RecordType
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		parsed, err := domain.ParseRecordType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		recordType = parsed
	}

	limit := persistence.DefaultPageSize
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = persistence.ClampLimit(parsed)
	}

	cursor, err := persistence.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListRecords(r.Context(), recordType, cursor, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownRecordType) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RecordView, 0, len(records))
	for _, rec := range records {
		items = append(items, toRecordView(rec))
	}
	writeJSON(w, http.StatusOK, ListRecordsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
