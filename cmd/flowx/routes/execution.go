package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/cmd/flowx/handlers"
)

// RegisterExecutionRoutes registers run admission, cancel and resume.
func RegisterExecutionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewExecutionHandler(c)

	e.POST("/workflow/validate", h.Validate)

	api := e.Group("/api/v1/workflow")
	{
		api.POST("/execute", h.Execute)
		api.POST("/cancel/:thread_id", h.Cancel)
		api.POST("/resume/:thread_id", h.Resume)
	}
}
