// Package server provides the thin HTTP surface over projectd's flow
// coordinator and event log.
//
// The server is a convenience wrapper: core correctness never depends on
// it. It exposes health, a read endpoint that re-derives flow state on
// demand, and decision endpoints delegating to the coordinator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/flow"
)

// Server is the HTTP server.
type Server struct {
	config      *config.Config
	echo        *echo.Echo
	log         events.Log
	coordinator *flow.Coordinator
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StartRequest is the body for POST /flows.
type StartRequest struct {
	Request     string `json:"request"`
	ProjectName string `json:"projectName"`
	Framework   string `json:"framework"`
	TargetDir   string `json:"targetDir"`
}

// ActionRequest is the body for POST /flows/:id/action.
type ActionRequest struct {
	Action string `json:"action"`
}

// StyleRequest is the body for POST /flows/:id/style.
type StyleRequest struct {
	Style string `json:"style"`
}

// NewServer creates the HTTP server with routes registered.
func NewServer(cfg *config.Config, log events.Log, coordinator *flow.Coordinator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config:      cfg,
		echo:        e,
		log:         log,
		coordinator: coordinator,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/flows/:id", s.handleGetFlow)
	s.echo.POST("/flows", s.handleStart)
	s.echo.POST("/flows/:id/action", s.handleAction)
	s.echo.POST("/flows/:id/style", s.handleStyleChange)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.config.Observability.ServiceName,
	})
}

// handleGetFlow re-derives the flow state from the log on every request.
// There is no cached representation to get stale.
func (s *Server) handleGetFlow(c echo.Context) error {
	flowID := c.Param("id")
	evs, err := s.log.Events(c.Request().Context(), flowID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	st := flow.Derive(flowID, evs)
	if st == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("flow %s not found", flowID))
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleStart(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st, err := s.coordinator.Start(c.Request().Context(), flow.Context{
		ProjectName: req.ProjectName,
		Framework:   req.Framework,
		TargetDir:   req.TargetDir,
	}, req.Request)
	if err != nil {
		return guardAwareError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (s *Server) handleAction(c echo.Context) error {
	if err := s.requireActiveFlow(c.Param("id")); err != nil {
		return err
	}
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st, err := s.coordinator.HandleUserAction(c.Request().Context(), flow.UserAction(req.Action))
	if err != nil {
		return guardAwareError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleStyleChange(c echo.Context) error {
	if err := s.requireActiveFlow(c.Param("id")); err != nil {
		return err
	}
	var req StyleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var (
		st  *flow.State
		err error
	)
	if req.Style == "" {
		st, err = s.coordinator.HandleStyleChange(c.Request().Context())
	} else {
		st, err = s.coordinator.HandleStyleSelected(c.Request().Context(), req.Style)
	}
	if err != nil {
		return guardAwareError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) requireActiveFlow(flowID string) error {
	if s.coordinator.FlowID() != flowID {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("flow %s is not active", flowID))
	}
	return nil
}

// guardAwareError maps guard violations to 409 so clients can distinguish
// caller errors from server breakage.
func guardAwareError(err error) error {
	var gv *flow.GuardViolation
	if errors.As(err, &gv) {
		return echo.NewHTTPError(http.StatusConflict, gv.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.Server.ShutdownTimeout,
		)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
