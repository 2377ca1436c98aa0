package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/session"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
	"github.com/kjstillabower/weather-lookup/internal/validation"
)

// SessionCookie names the cookie carrying the visitor's session ID.
const SessionCookie = "wl_session"

// HealthConfig holds the thresholds the health handler evaluates.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions      *session.Store
	healthConfig  *HealthConfig
	logger        *zap.Logger
	maxQueryRunes int

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(sessions *session.Store, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:      sessions,
		healthConfig:  healthConfig,
		logger:        logger,
		maxQueryRunes: validation.DefaultMaxQueryRunes,
	}
}

// controller resolves the caller's session, issuing a cookie when a new one is created.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *lookup.Controller {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	newID, ctrl := h.sessions.Get(id)
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return ctrl
}

// GetPage handles GET /.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := pageData{Title: lookup.Title, Placeholder: lookup.InputPlaceholder, View: ctrl.View()}
	if err := pageTemplate.Execute(w, data); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render page", zap.Error(err))
	}
}

// PostPage handles POST / from the HTML form: type the city, press the button,
// wait for the lookup and redirect back to the page.
func (h *Handler) PostPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FORM", "malformed form body")
		return
	}
	city := r.PostFormValue("city")
	if err := validation.ValidateQuery(city, h.maxQueryRunes); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	ctrl := h.controller(w, r)
	ctrl.UpdateQuery(city)
	h.submit(r, ctrl, true)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GetView handles GET /api/view.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller(w, r).View())
}

type queryRequest struct {
	Query *string `json:"query"`
}

// PutQuery handles PUT /api/query. The text is stored verbatim.
func (h *Handler) PutQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil || body.Query == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", `body must be {"query": "<text>"}`)
		return
	}
	if err := validation.ValidateQuery(*body.Query, h.maxQueryRunes); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	ctrl := h.controller(w, r)
	ctrl.UpdateQuery(*body.Query)
	writeJSON(w, http.StatusOK, ctrl.View())
}

// PostSubmit handles POST /api/submit. Without ?wait=true it answers 202 with
// the Loading view; with it, 200 with the settled view. An empty query is a
// no-op and answers 200 with the unchanged view.
func (h *Handler) PostSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	wait := r.URL.Query().Get("wait") == "true"
	switch h.submit(r, ctrl, wait) {
	case submitIgnored, submitSettled:
		writeJSON(w, http.StatusOK, ctrl.View())
	default:
		writeJSON(w, http.StatusAccepted, ctrl.View())
	}
}

type submitResult int

const (
	submitIgnored submitResult = iota
	submitPending
	submitSettled
)

// submit starts a lookup detached from the request's cancellation so a
// client hanging up never turns into a Failure, then optionally waits on the
// request context for it to settle.
func (h *Handler) submit(r *http.Request, ctrl *lookup.Controller, wait bool) submitResult {
	req := ctrl.Submit(context.WithoutCancel(r.Context()))
	if req == nil {
		return submitIgnored
	}
	if !wait {
		return submitPending
	}
	if _, err := req.Wait(r.Context()); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Debug("stopped waiting for lookup",
			zap.String("query", req.Query()), zap.Error(err))
		return submitPending
	}
	return submitSettled
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	resp := map[string]interface{}{
		"status":         result.status,
		"service":        "weather-lookup",
		"version":        "dev",
		"checks":         checks,
		"activeSessions": h.sessions.Len(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if since, ok := lifecycle.ShutdownSince(); ok {
		resp["drainingSeconds"] = int(time.Since(since).Seconds())
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int(time.Since(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates shutting-down, then degraded, then healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 &&
		traffic.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": {"code", "message", "requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationIDFromContext(r.Context()),
		},
	})
}

// notFound answers unknown paths with the standard error envelope.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
}
