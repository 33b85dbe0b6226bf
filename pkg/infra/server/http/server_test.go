package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/infra/middleware/requestid"
	options "github.com/kart-io/sentinel-faq/pkg/options/http"
	apierrors "github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/json"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
)

type countingRecorder struct{ n int }

func (c *countingRecorder) ObserveRequest(string, string, string, time.Duration) { c.n++ }

func TestServer_NoRouteEnvelope(t *testing.T) {
	rec := &countingRecorder{}
	s := NewServer(options.NewOptions(options.WithMode(gin.TestMode)), rec)

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrRouteNotFound.Code, body.Code)
	assert.Equal(t, w.Header().Get(requestid.Header), body.RequestID)
	assert.Equal(t, 1, rec.n)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(options.NewOptions(
		options.WithAddr("127.0.0.1:0"),
		options.WithMode(gin.TestMode),
	), nil)
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestServer_StartBindError(t *testing.T) {
	first := NewServer(options.NewOptions(options.WithAddr("127.0.0.1:0"), options.WithMode(gin.TestMode)), nil)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	second := NewServer(options.NewOptions(options.WithAddr(first.Addr()), options.WithMode(gin.TestMode)), nil)
	assert.Error(t, second.Start(context.Background()))
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(nil, nil)
	assert.NoError(t, s.Stop(context.Background()))
}
