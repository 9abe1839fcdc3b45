// Package handlers implements the HTTP and websocket endpoints.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/common/repository"
)

// WorkflowHandler serves workflow definition CRUD.
type WorkflowHandler struct {
	c *container.Container
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(c *container.Container) *WorkflowHandler {
	return &WorkflowHandler{c: c}
}

// workflowSummary is the list-view projection.
type workflowSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateWorkflow stores a workflow, upserting when the body carries an
// id that already exists.
// POST /workflows
func (h *WorkflowHandler) CreateWorkflow(c echo.Context) error {
	var body repository.Workflow
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow payload")
	}

	ctx := c.Request().Context()

	if body.ID != "" {
		if _, err := h.c.Workflows.Get(ctx, body.ID); err == nil {
			wf, err := h.c.Workflows.Update(ctx, body.ID, body.Name, body.Data)
			if err != nil {
				return err
			}
			return c.JSON(http.StatusOK, wf)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	wf, err := h.c.Workflows.Create(ctx, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf)
}

// ListWorkflows returns workflow summaries.
// GET /workflows
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	workflows, err := h.c.Workflows.List(c.Request().Context())
	if err != nil {
		return err
	}

	summaries := make([]workflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, workflowSummary{ID: wf.ID, Name: wf.Name})
	}
	return c.JSON(http.StatusOK, summaries)
}

// GetWorkflow returns the full workflow record.
// GET /workflows/:id
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	wf, err := h.c.Workflows.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// PatchWorkflow applies an RFC 6902 JSON patch to the stored document.
// PATCH /workflows/:id
func (h *WorkflowHandler) PatchWorkflow(c echo.Context) error {
	patch, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable patch body")
	}

	wf, err := h.c.Workflows.Patch(c.Request().Context(), c.Param("id"), patch)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	if errors.Is(err, repository.ErrInvalidPatch) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow removes a workflow.
// DELETE /workflows/:id
func (h *WorkflowHandler) DeleteWorkflow(c echo.Context) error {
	err := h.c.Workflows.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted", "id": c.Param("id")})
}
