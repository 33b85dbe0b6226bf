package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/internal/faq/handler"
	"github.com/kart-io/sentinel-faq/internal/faq/metrics"
	httpserver "github.com/kart-io/sentinel-faq/pkg/infra/server/http"
	"github.com/kart-io/sentinel-faq/pkg/llm"
	options "github.com/kart-io/sentinel-faq/pkg/options/http"
	apierrors "github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/json"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
)

type stubService struct{}

func (stubService) Ask(context.Context, string) (*biz.AnswerPackage, error) {
	return &biz.AnswerPackage{Answer: "ok", Sources: []biz.Source{}}, nil
}
func (stubService) Ingest(context.Context, string, string) (int, error) { return 1, nil }
func (stubService) History(context.Context, int) ([]*biz.QueryRecord, error) {
	return []*biz.QueryRecord{}, nil
}
func (stubService) Stats(context.Context) *biz.ServiceStats { return &biz.ServiceStats{} }
func (stubService) Health(context.Context) *biz.HealthReport {
	return &biz.HealthReport{Status: biz.StatusHealthy, Services: map[string]string{}}
}
func (stubService) ClearCache(context.Context) int64    { return 0 }
func (stubService) Providers() []llm.ProviderDescriptor { return nil }
func (stubService) SelectProvider(string) error         { return nil }

func newTestServer(t *testing.T) (*httpserver.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("test")
	s := httpserver.NewServer(options.NewOptions(options.WithMode(gin.TestMode)), m)
	Register(s.Engine(), handler.NewFAQHandler(stubService{}), m.Handler())
	return s, m
}

func TestRegister_Routes(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/health", ""},
		{http.MethodPost, "/api/ask", `{"question":"hi"}`},
		{http.MethodGet, "/api/history", ""},
		{http.MethodGet, "/api/stats", ""},
		{http.MethodDelete, "/api/cache", ""},
		{http.MethodGet, "/api/providers", ""},
		{http.MethodPut, "/api/providers/active", `{"provider":"anthropic"}`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Engine().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Zero(t, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestRegister_ValidatorInstalled(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_MetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `smarttask_faq_requests_total{endpoint="/api/health",method="GET",status="200"} 1`)
}

func TestRegister_UnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrRouteNotFound.Code, body.Code)
}
