// Package http provides the buildscout HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
	"github.com/fyrsmithlabs/buildscout/internal/services"
)

// DefaultAddr is used when Config.Addr is empty.
const DefaultAddr = "localhost:9102"

// maxBodySize bounds request bodies; a build order is a few KB.
const maxBodySize = "4M"

// Server provides HTTP endpoints for learning and matching.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
	metrics  *HTTPMetrics
	version  string
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// Option configures a Server.
type Option func(*Server)

// WithMeter records request metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Server) {
		s.metrics = newHTTPMetrics(meter, s.logger)
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new HTTP server over reg.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("service registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewHTTPMetrics(logger)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(middleware.BodyLimit(maxBodySize))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
	v1.POST("/match", s.handleMatch)
	v1.POST("/learn", s.handleLearn)
	v1.GET("/patterns/unverified", s.handleUnverified)
	v1.POST("/patterns/edit", s.handleEdit)
	v1.GET("/patterns/:id", s.handleGetPattern)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Patterns: s.services.Store().Len(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.services.Store().Stats())
}

func (s *Server) handleMatch(c echo.Context) error {
	var req MatchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid match request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r := race.Parse(req.Race)
	if !r.IsKnown() {
		return echo.NewHTTPError(http.StatusBadRequest, "race must be protoss, terran or zerg")
	}
	if req.Limit < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be >= 0")
	}

	var opts []matcher.MatchOption
	if req.MinSimilarity != nil {
		if *req.MinSimilarity < 0 || *req.MinSimilarity > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "min_similarity must be in [0,1]")
		}
		opts = append(opts, matcher.WithThreshold(*req.MinSimilarity))
	}

	buildorder.LogSkipped(s.logger, req.BuildOrder.Skipped)
	results, err := s.services.Matcher().Match(c.Request().Context(), req.BuildOrder.Steps, r, opts...)
	if err != nil {
		return s.internalError("match failed", err)
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return c.JSON(http.StatusOK, MatchResponse{
		Race:    r.String(),
		Matches: NewMatchItems(results, req.Explain),
	})
}

func (s *Server) handleLearn(c echo.Context) error {
	var req LearnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid learn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var opts []learning.LearnOption
	if req.MachineGuess {
		opts = append(opts, learning.AsMachineGuess())
	}
	buildorder.LogSkipped(s.logger, req.Game.Skipped)
	res, err := s.services.Ingest().Learn(c.Request().Context(), req.Comment, req.Game.GameMetadata, opts...)
	switch {
	case errors.Is(err, learning.ErrEmptyComment), errors.Is(err, learning.ErrNoBuildOrder):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrQueueClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
	case err != nil:
		return s.internalError("learn failed", err)
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, NewLearnResponse(res))
}

func (s *Server) handleEdit(c echo.Context) error {
	var req EditRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid edit request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key field is required")
	}

	res, err := s.services.Ingest().Edit(c.Request().Context(), req.Key, req.Comment)
	switch {
	case errors.Is(err, patternstore.ErrPatternNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, learning.ErrEmptyComment):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrQueueClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
	case err != nil:
		return s.internalError("edit failed", err)
	}

	return c.JSON(http.StatusOK, NewEditResponse(res))
}

func (s *Server) handleUnverified(c echo.Context) error {
	limit := 0
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}
	patterns := s.services.Learning().ListUnverified(limit)
	return c.JSON(http.StatusOK, NewPatternViews(patterns))
}

func (s *Server) handleGetPattern(c echo.Context) error {
	id := patternstore.PatternID(c.Param("id"))
	p, ok := s.services.Store().Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "pattern not found")
	}
	return c.JSON(http.StatusOK, PatternView{ID: string(p.ID), Pattern: p})
}

func (s *Server) internalError(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
