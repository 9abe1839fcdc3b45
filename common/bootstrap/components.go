package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/flowx-dev/flowx/common/config"
	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/common/mongo"
)

// Components holds all initialized service dependencies
type Components struct {
	Config *config.Config
	Logger *logger.Logger
	Mongo  *mongo.Client
	Redis  *redis.Client

	// Internal
	cleanupFuncs []func(ctx context.Context) error
}

// addCleanup registers a cleanup function to run on shutdown
func (c *Components) addCleanup(fn func(ctx context.Context) error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown runs all cleanup functions in reverse order
func (c *Components) Shutdown(ctx context.Context) {
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](ctx); err != nil {
			c.Logger.Warn("cleanup failed", "error", err)
		}
	}
}
