/*
handlers.go - HTTP API handlers for the extra-hours ledger

PURPOSE:
  Exposes overtime.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the service.

ENDPOINTS:
  Work sessions:
    GET    /api/work-sessions            List (?date=YYYY-MM-DD&description=)
    POST   /api/work-sessions            Create
    PUT    /api/work-sessions/{id}       Update
    DELETE /api/work-sessions/{id}       Delete

  Extra hours:
    GET    /api/extra-hours/available    Derived ledger
    GET    /api/extra-hours/usage        List usage (?date=&description=)
    POST   /api/extra-hours/usage        Record usage
    PUT    /api/extra-hours/usage/{id}   Update usage
    DELETE /api/extra-hours/usage/{id}   Delete usage

  Dashboard:
    GET    /api/stats                    Totals and averages

  Maintenance:
    GET    /api/cron                     Run the recalculation job
    GET    /healthz                      Liveness
    GET    /readyz                       Database reachable (503 otherwise)

REQUEST FLOW:
  1. Principal is already in the context (auth.Middleware)
  2. Decode body / query
  3. Call overtime.Service
  4. Serialize response
  5. Map errors (writeServiceError)

ERROR HANDLING:
  - 400: generic.ErrValidation (missing fields, bad hours, insufficient balance)
  - 401: generic.ErrAuthentication
  - 404: generic.ErrNotFound (also for records owned by someone else)
  - 500: anything else; details are logged, not returned

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/extrahours/auth"
	"github.com/warp/extrahours/generic"
	"github.com/warp/extrahours/overtime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service *overtime.Service
	Logger  *slog.Logger

	// CronSecret, when set, must be presented as a bearer token on /api/cron.
	CronSecret string

	// DB backs the readiness probe; nil reports ready.
	DB Pinger
}

// Pinger is satisfied by *sqlite.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler.
func NewHandler(svc *overtime.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// parseFilter reads ?date= and ?description= into a Filter.
func parseFilter(r *http.Request) (overtime.Filter, error) {
	var f overtime.Filter
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			return f, generic.NewValidationError("date", "%v", err)
		}
		f.Date = &d
	}
	f.Description = strings.TrimSpace(r.URL.Query().Get("description"))
	return f, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return generic.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

// =============================================================================
// WORK SESSION ENDPOINTS
// =============================================================================

// ListWorkSessions returns the caller's sessions, newest first.
func (h *Handler) ListWorkSessions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sessions, err := h.Service.ListWorkSessions(r.Context(), principal(r), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkSessionDTOs(sessions))
}

// CreateWorkSession logs a new session.
func (h *Handler) CreateWorkSession(w http.ResponseWriter, r *http.Request) {
	var req WorkSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	s, err := h.Service.CreateWorkSession(r.Context(), principal(r), sessionInput(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkSessionDTO(s))
}

// UpdateWorkSession replaces a session's date, times and description.
func (h *Handler) UpdateWorkSession(w http.ResponseWriter, r *http.Request) {
	var req WorkSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	s, err := h.Service.UpdateWorkSession(r.Context(), principal(r), chi.URLParam(r, "id"), sessionInput(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkSessionDTO(s))
}

// DeleteWorkSession removes a session.
func (h *Handler) DeleteWorkSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteWorkSession(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "work session deleted"})
}

func sessionInput(req WorkSessionRequest) overtime.SessionInput {
	return overtime.SessionInput{
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
	}
}

// =============================================================================
// EXTRA HOURS ENDPOINTS
// =============================================================================

// GetAvailable returns the derived ledger.
func (h *Handler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.AvailableExtraHours(r.Context(), principal(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// ListUsage returns the caller's usage records, newest first.
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	usages, err := h.Service.ListUsageRecords(r.Context(), principal(r), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTOs(usages))
}

// CreateUsage spends extra hours.
func (h *Handler) CreateUsage(w http.ResponseWriter, r *http.Request) {
	in, err := usageInput(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Service.CreateUsageRecord(r.Context(), principal(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUsageDTO(res.Record, res.AvailableBefore))
}

// UpdateUsage edits a usage record; its own hours don't count against it.
func (h *Handler) UpdateUsage(w http.ResponseWriter, r *http.Request) {
	in, err := usageInput(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Service.UpdateUsageRecord(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTO(res.Record, res.AvailableBefore))
}

// DeleteUsage removes a usage record, returning its hours to the pool.
func (h *Handler) DeleteUsage(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteUsageRecord(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "extra hours usage deleted"})
}

func usageInput(r *http.Request) (overtime.UsageInput, error) {
	var req UsageRequest
	if err := decodeBody(r, &req); err != nil {
		return overtime.UsageInput{}, err
	}
	hours, err := decodeHours(req.HoursUsed)
	if err != nil {
		return overtime.UsageInput{}, err
	}
	return overtime.UsageInput{
		Date:        req.Date,
		HoursUsed:   hours,
		Description: req.Description,
	}, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetStats returns dashboard totals.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.DashboardStats(r.Context(), principal(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// RunCron executes the recalculation job on demand. Responses are never cached.
func (h *Handler) RunCron(w http.ResponseWriter, r *http.Request) {
	noCache(w)

	if h.CronSecret != "" {
		raw, _ := auth.BearerToken(r)
		if subtle.ConstantTimeCompare([]byte(raw), []byte(h.CronSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, CronResponse{OK: false, Error: "unauthorized"})
			return
		}
	}

	res, err := h.Service.Recalculate(r.Context(), overtime.HealthCheckClientID)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "cron run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, CronResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toCronResponse(res))
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Surrogate-Control", "no-store")
}

// Healthz is the liveness probe.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the database answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.Logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// writeServiceError maps a service error to its HTTP status.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *overtime.InsufficientHoursError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest, err.Error(), InsufficientDetails{
			Available:          insufficient.Available.Float64(),
			AvailableFormatted: overtime.FormatHours(insufficient.Available),
			Requested:          insufficient.Requested.Float64(),
		})
	case errors.Is(err, generic.ErrValidation):
		var ve *generic.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			writeError(w, http.StatusBadRequest, ve.Message, map[string]string{"field": ve.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, generic.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, generic.ErrAuthentication.Error(), nil)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		h.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// unauthorized is the auth.Middleware error callback.
func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, http.StatusUnauthorized, generic.ErrAuthentication.Error(), nil)
}
