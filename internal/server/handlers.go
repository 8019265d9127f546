package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/awa-io/awa/internal/store"
	"github.com/awa-io/awa/pkg/schema"
)

type runRequest struct {
	WorkflowData json.RawMessage `json:"workflow_data"`
	InitialData  map[string]any  `json:"initial_data,omitempty"`
}

type validateRequest struct {
	WorkflowData json.RawMessage `json:"workflow_data"`
}

type completeTaskRequest struct {
	Data map[string]any `json:"data,omitempty"`
}

type scheduleRequest struct {
	Name         string          `json:"name"`
	CronExpr     string          `json:"cron_expr"`
	WorkflowData json.RawMessage `json:"workflow_data"`
	InitialData  map[string]any  `json:"initial_data,omitempty"`
}

func (s *Server) describe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":     "awa",
		"description": "agentic workflow execution engine",
		"version":     s.version,
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) runWorkflow(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.WorkflowData) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow_data is required")
	}

	workflow, err := schema.ParseWorkflow(req.WorkflowData)
	if err != nil {
		return httpError(err)
	}

	result, err := s.svc.RunWorkflow(c.Request().Context(), workflow, req.InitialData)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, store.NewRunRecord(workflow.Name, result))
}

func (s *Server) validateWorkflow(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.WorkflowData) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow_data is required")
	}

	workflow, err := schema.ParseWorkflow(req.WorkflowData)
	if err != nil {
		return httpError(err)
	}

	result := s.svc.ValidateWorkflow(workflow)
	return c.JSON(http.StatusOK, map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

func (s *Server) listRuns(c echo.Context) error {
	filter := store.RunFilter{
		WorkflowID: c.QueryParam("workflow_id"),
		Status:     c.QueryParam("status"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if offset := c.QueryParam("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}

	runs, err := s.svc.ListRuns(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c echo.Context) error {
	rec, err := s.svc.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) runContexts(c echo.Context) error {
	contexts, err := s.svc.RunContexts(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"run_id":   c.Param("id"),
		"contexts": contexts,
	})
}

func (s *Server) listTasks(c echo.Context) error {
	list, err := s.svc.ListTasks(c.Request().Context(), c.QueryParam("assignee_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": list, "count": len(list)})
}

func (s *Server) getTask(c echo.Context) error {
	task, err := s.svc.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) completeTask(c echo.Context) error {
	var req completeTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	task, run, err := s.svc.CompleteTask(c.Request().Context(), c.Param("id"), req.Data)
	if err != nil {
		return httpError(err)
	}

	resp := map[string]any{"task": task}
	if run != nil {
		resp["run"] = run
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) addSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.CronExpr == "" || len(req.WorkflowData) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name, cron_expr and workflow_data are required")
	}

	workflow, err := schema.ParseWorkflow(req.WorkflowData)
	if err != nil {
		return httpError(err)
	}

	// Reject documents that would fail on every firing.
	if result := s.svc.ValidateWorkflow(workflow); !result.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"code":    schema.ErrCodeValidation,
			"message": "workflow failed validation",
			"details": map[string]any{"errors": result.Errors, "warnings": result.Warnings},
		})
	}

	sched, err := s.sch.Add(req.Name, req.CronExpr, workflow, req.InitialData)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

func (s *Server) listSchedules(c echo.Context) error {
	list := s.sch.List()
	return c.JSON(http.StatusOK, map[string]any{"schedules": list, "count": len(list)})
}

func (s *Server) removeSchedule(c echo.Context) error {
	if err := s.sch.Remove(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
