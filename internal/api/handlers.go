package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/validation"
	"handoff-workers/internal/recommendation"
	"handoff-workers/pkg/registry"

	"github.com/go-chi/chi/v5/middleware"
)

const generateFailedMessage = "Failed to generate recommendations"

// Checker is a dependency probed by /ready.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	Service        *recommendation.Service
	Registry       *registry.ActivityRegistry
	Checkers       []Checker
	Logger         logger.Logger
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	ServiceName    string
	Version        string
}

// Handler serves the HTTP API.
type Handler struct {
	service        *recommendation.Service
	registry       *registry.ActivityRegistry
	checkers       []Checker
	logger         logger.Logger
	maxBodyBytes   int64
	requestTimeout time.Duration
	serviceName    string
	version        string
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		service:        opts.Service,
		registry:       opts.Registry,
		checkers:       opts.Checkers,
		logger:         opts.Logger,
		maxBodyBytes:   opts.MaxBodyBytes,
		requestTimeout: opts.RequestTimeout,
		serviceName:    opts.ServiceName,
		version:        opts.Version,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 10 << 20
	}
	if h.requestTimeout <= 0 {
		h.requestTimeout = 30 * time.Second
	}
	if h.registry == nil {
		h.registry = &registry.ActivityRegistry{}
	}
	return h
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  string                       `json:"error"`
	Fields []validation.ValidationError `json:"fields,omitempty"`
}

// GenerateRecommendations runs the engine over the request body.
//
// A body that is not a valid request gets a generic 500; one that parses but violates the
// schema gets 422 with the offending fields. A run that outlives the request timeout gets 503.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		h.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, generateFailedMessage, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	result, err := h.service.Generate(ctx, recommendation.SourceAPI, body)
	if err != nil {
		h.logFailure(r, err)
		if stdErr, ok := errors.AsStandardError(err); ok {
			if stdErr.Code == errors.ErrCodeTimeout {
				writeError(w, http.StatusServiceUnavailable, "Recommendation request timed out", nil)
				return
			}
			if fields, ok := stdErr.Metadata[recommendation.FieldErrorsKey].([]validation.ValidationError); ok {
				writeError(w, http.StatusUnprocessableEntity, "Invalid recommendation request", fields)
				return
			}
		}
		writeError(w, http.StatusInternalServerError, generateFailedMessage, nil)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) logFailure(r *http.Request, err error) {
	fields := map[string]interface{}{
		"requestId": middleware.GetReqID(r.Context()),
		"error":     err.Error(),
	}
	if stdErr, ok := errors.AsStandardError(err); ok {
		fields["errorCode"] = string(stdErr.Code)
		fields["details"] = stdErr.Details
	}
	h.logger.Warn("recommendation request rejected", fields)
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities := h.registry.Activities
	if activities == nil {
		activities = []registry.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    h.registry.Version,
		"activities": activities,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.version,
		"time":    time.Now().UTC(),
	})
}

// Ready pings every dependency; any failure makes the whole response 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			checks[c.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name()] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, fields []validation.ValidationError) {
	writeJSON(w, status, ErrorResponse{Error: message, Fields: fields})
}
