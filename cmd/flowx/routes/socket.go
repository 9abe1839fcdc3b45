package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/cmd/flowx/handlers"
)

// RegisterSocketRoutes registers the websocket endpoints.
func RegisterSocketRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSocketHandler(c)

	e.GET("/ws", h.KeepAlive)
	e.GET("/ws/workflow", h.WorkflowSocket)
	e.GET("/ws/terminal", h.TerminalSocket)
}
