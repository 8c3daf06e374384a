package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amsf/internal/platform/metrics"
	"amsf/pkg/platform/httputil"
	"amsf/pkg/platform/middleware/identity"
	"amsf/pkg/requestcontext"
)

type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":      requestcontext.UserID(ctx).String(),
			"request_id":   requestcontext.RequestID(ctx),
			"has_req_time": !requestcontext.Now(ctx).IsZero(),
		})
	})
}

func newRouter(checks map[string]Check) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewRouter(Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		CORSOrigins: []string{"https://declarations.example.mc"},
		Checks:      checks,
	}, whoami{}), reg
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus string
		wantChecks map[string]string
	}{
		{name: "no checks", wantStatus: "ok"},
		{
			name:       "healthy dependency",
			checks:     map[string]Check{"remote_validation": func(context.Context) error { return nil }},
			wantStatus: "ok",
			wantChecks: map[string]string{"remote_validation": "ok"},
		},
		{
			name:       "degraded dependency",
			checks:     map[string]Check{"remote_validation": func(context.Context) error { return errors.New("down") }},
			wantStatus: "degraded",
			wantChecks: map[string]string{"remote_validation": "unavailable"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newRouter(tt.checks)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			var body healthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestAPIRequiresUser(t *testing.T) {
	router, _ := newRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(identity.HeaderUserID, user.String())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, user.String(), body["user_id"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, body["request_id"], w.Header().Get("X-Request-ID"))
	assert.Equal(t, true, body["has_req_time"])
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `amsf_http_requests_total{method="GET",route="/health",status="200"} 1`))
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newRouter(nil)
	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://declarations.example.mc")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://declarations.example.mc", w.Header().Get("Access-Control-Allow-Origin"))
}
