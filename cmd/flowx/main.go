package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/cmd/flowx/handlers"
	"github.com/flowx-dev/flowx/cmd/flowx/routes"
	"github.com/flowx-dev/flowx/common/bootstrap"
	"github.com/flowx-dev/flowx/engine/nodes"
	"github.com/flowx-dev/flowx/engine/plugins"
	"github.com/flowx-dev/flowx/engine/pty"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, logger, optional redis)
	components, err := bootstrap.Setup(ctx, "flowx")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap flowx: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Discover plugins and collect their route mounts
	mounts, err := loadPlugins(serviceContainer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load plugins: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e)

	// Register all routes
	registerRoutes(e, serviceContainer, mounts)

	// Start server
	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "flowx",
		})
	})
}

// loadPlugins scans the plugins directory against the compiled-in
// backend catalog.
func loadPlugins(c *container.Container) ([]plugins.RouteMount, error) {
	commandGen := handlers.NewCommandGenHandler(c)

	catalog := plugins.Catalog{
		"CommandNode": {
			Factory: nodes.CommandFactory(pty.Run),
			Mount: func(g *echo.Group) {
				g.POST("/generate-command", commandGen.GenerateCommand)
			},
		},
	}

	loader := plugins.NewLoader(c.Components.Config.Plugins.Dir, catalog, c.Components.Logger)
	return loader.Load(c.Registry)
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container, mounts []plugins.RouteMount) {
	routes.RegisterWorkflowRoutes(e, serviceContainer)
	routes.RegisterExecutionRoutes(e, serviceContainer)
	routes.RegisterSocketRoutes(e, serviceContainer)
	routes.RegisterSystemRoutes(e, serviceContainer)

	for _, mount := range mounts {
		mount.Register(e.Group(""))
	}
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting flowx", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
