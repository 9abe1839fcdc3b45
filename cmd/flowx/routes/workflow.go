// Package routes registers the HTTP surface against the service
// container.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/cmd/flowx/handlers"
)

// RegisterWorkflowRoutes registers workflow CRUD routes.
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c)

	e.POST("/workflows", h.CreateWorkflow)
	e.GET("/workflows", h.ListWorkflows)
	e.GET("/workflows/:id", h.GetWorkflow)
	e.PATCH("/workflows/:id", h.PatchWorkflow)
	e.DELETE("/workflows/:id", h.DeleteWorkflow)
}
