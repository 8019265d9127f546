// Package server is the HTTP control surface. It is transport only:
// handlers bind requests, call into the service layer, and translate
// structured error codes into HTTP statuses.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/awa-io/awa/internal/scheduler"
	"github.com/awa-io/awa/internal/service"
	"github.com/awa-io/awa/pkg/schema"
)

// Server mounts the REST and websocket routes onto an echo instance.
type Server struct {
	svc     *service.Service
	sch     *scheduler.Scheduler
	version string
	log     *slog.Logger
	echo    *echo.Echo
}

// New builds the server and registers all routes.
func New(svc *service.Service, sch *scheduler.Scheduler, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, sch: sch, version: version, log: log, echo: echo.New()}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.describe)
	e.GET("/health", s.health)

	e.POST("/workflows/run", s.runWorkflow)
	e.POST("/workflows/validate", s.validateWorkflow)

	e.GET("/runs", s.listRuns)
	e.GET("/runs/:id", s.getRun)
	e.GET("/runs/:id/contexts", s.runContexts)

	e.GET("/tasks", s.listTasks)
	e.GET("/tasks/:id", s.getTask)
	e.POST("/tasks/:id/complete", s.completeTask)

	e.POST("/schedules", s.addSchedule)
	e.GET("/schedules", s.listSchedules)
	e.DELETE("/schedules/:id", s.removeSchedule)

	e.GET("/events/ws", s.streamEvents)
}

// requestLogger emits one slog line per request.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.log.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// httpError translates structured error codes into HTTP statuses. The
// body keeps the code and details so clients can branch without parsing
// messages.
func httpError(err error) *echo.HTTPError {
	ae, ok := err.(*schema.Error)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusInternalServerError
	switch ae.Code {
	case schema.ErrCodeValidation, schema.ErrCodeConfiguration:
		status = http.StatusBadRequest
	case schema.ErrCodeNotFound:
		status = http.StatusNotFound
	case schema.ErrCodeConflict:
		status = http.StatusConflict
	case schema.ErrCodeCancelled:
		status = http.StatusServiceUnavailable
	}

	body := map[string]any{"code": ae.Code, "message": ae.Message}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	if ae.NodeID != "" {
		body["node_id"] = ae.NodeID
	}
	return echo.NewHTTPError(status, body)
}
