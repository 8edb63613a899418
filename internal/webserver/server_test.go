package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/webapi"
)

type noopService struct{}

func (noopService) Evaluate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error) {
	return &models.EvaluationResult{SessionID: req.SessionID}, nil
}

func (noopService) Validate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error) {
	return &models.EvaluationResult{SessionID: req.SessionID}, nil
}

func (noopService) Registry() *registry.Registry {
	return registry.Comprehensive()
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	srv, err := New(Config{
		Service: noopService{},
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)
	return srv.Handler()
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "evaluation service is required")
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env webapi.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
}

func TestMetricsEndpointRegistered(t *testing.T) {
	handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefaultPort(t *testing.T) {
	srv, err := New(Config{Service: noopService{}})
	require.NoError(t, err)
	assert.Equal(t, ":8040", srv.srv.Addr)
}
