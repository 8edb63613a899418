// Package webapi exposes the evaluation pipeline over HTTP. All responses,
// success and error alike, use the same envelope shape.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/scoring"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// EvaluationService is the slice of the orchestrator the handlers need.
type EvaluationService interface {
	Evaluate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error)
	Validate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error)
	Registry() *registry.Registry
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	service EvaluationService
	model   string
}

// NewHandlers creates a new Handlers backed by the given service. model is
// reported by the health endpoint.
func NewHandlers(service EvaluationService, model string) *Handlers {
	return &Handlers{service: service, model: model}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "service healthy", HealthBody{
		Status:  "ok",
		Version: Version,
		Model:   h.model,
	})
}

// HandleEvaluate runs a comprehensive evaluation of the posted content.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Evaluate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scoring.ErrAggregationFailed) {
			status = http.StatusBadGateway
		}
		slog.ErrorContext(r.Context(), "evaluation failed", "session_id", req.SessionID, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, "evaluation complete", result)
}

// HandleValidate runs the binary template-compliance check.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Validate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scoring.ErrAggregationFailed) {
			status = http.StatusBadGateway
		}
		slog.ErrorContext(r.Context(), "validation failed", "session_id", req.SessionID, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, "validation complete", result)
}

// HandleMetrics returns the active metric catalog.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	defs := h.service.Registry().Definitions()
	body := MetricCatalogBody{Metrics: make([]MetricInfo, 0, len(defs))}
	for _, def := range defs {
		body.Metrics = append(body.Metrics, MetricInfo{
			ID:          def.ID,
			Weight:      def.Weight,
			Threshold:   def.Threshold,
			Kind:        string(def.Kind),
			Description: def.Description,
		})
	}
	writeJSON(w, http.StatusOK, "metric catalog", body)
}

// decodeRequest parses and validates the request body, writing the error
// response itself when the payload is unusable.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*models.EvaluationRequest, bool) {
	var req models.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	if req.UserPrompt == "" {
		writeError(w, http.StatusBadRequest, "user_prompt is required")
		return nil, false
	}
	if req.GeneratedContent.FormattedOutput == "" {
		writeError(w, http.StatusBadRequest, "generated_content.formatted_output is required")
		return nil, false
	}
	if req.BacklogType != "" {
		parsed, ok := models.ParseBacklogType(string(req.BacklogType))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown backlog_type "+string(req.BacklogType))
			return nil, false
		}
		req.BacklogType = parsed
	} else {
		req.BacklogType = models.BacklogUserStory
	}

	return &req, true
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, service EvaluationService, model string) {
	h := NewHandlers(service, model)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/v1/metrics", h.HandleMetrics)
	mux.HandleFunc("POST /api/v1/evaluate", h.HandleEvaluate)
	mux.HandleFunc("POST /api/v1/validate", h.HandleValidate)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, message string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	envelope := Envelope{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Message:   message,
		Body:      body,
	}
	if status >= http.StatusBadRequest {
		envelope.Status = "error"
	}
	json.NewEncoder(w).Encode(envelope) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, msg, nil)
}
