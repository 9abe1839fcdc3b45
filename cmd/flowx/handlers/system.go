package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
)

// SystemHandler serves the host fingerprint.
type SystemHandler struct {
	c *container.Container
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(c *container.Container) *SystemHandler {
	return &SystemHandler{c: c}
}

// SystemInfo returns the host fingerprint captured at startup.
// GET /system-info
func (h *SystemHandler) SystemInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.c.Fingerprint)
}
