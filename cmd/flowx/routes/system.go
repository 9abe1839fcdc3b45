package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/cmd/flowx/handlers"
)

// RegisterSystemRoutes registers the host fingerprint endpoint.
func RegisterSystemRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSystemHandler(c)

	e.GET("/system-info", h.SystemInfo)
}
