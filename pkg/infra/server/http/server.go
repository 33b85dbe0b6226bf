// Package http provides the gin-backed HTTP server.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/infra/middleware"
	"github.com/kart-io/sentinel-faq/pkg/infra/middleware/requestid"
	"github.com/kart-io/sentinel-faq/pkg/infra/server"
	options "github.com/kart-io/sentinel-faq/pkg/options/http"
	apierrors "github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
)

// metricsPath is excluded from the access log to keep scrapes quiet.
const metricsPath = "/metrics"

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

var _ server.Runnable = (*Server)(nil)

// NewServer creates a gin engine with the middleware chain
// recovery → request id → tracing → access log → metrics → CORS.
// recorder may be nil, in which case HTTP metrics are not collected.
func NewServer(opts *options.Options, recorder middleware.RequestRecorder) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}

	gin.SetMode(opts.Mode)
	engine := gin.New()

	// 中间件必须在注册路由之前挂载，子路由组才会继承
	engine.Use(
		middleware.Recovery(),
		requestid.New(),
		middleware.Tracing(),
		middleware.AccessLog(metricsPath),
	)
	if recorder != nil {
		engine.Use(middleware.Metrics(recorder))
	}
	engine.Use(middleware.CORS(opts.CORSAllowOrigins))

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &Server{
		opts:   opts,
		engine: engine,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "addr", ln.Addr().String(), "error", err.Error())
		}
	}()

	logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
