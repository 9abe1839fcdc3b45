package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flowx-dev/flowx/common/config"
	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/common/mongo"
)

// Setup initializes all service components.
// This is the main entry point for the service binary.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func(ctx context.Context) error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize document store (if not skipped)
	if !options.skipMongo {
		components.Logger.Info("connecting to document store")
		components.Mongo, err = mongo.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}

		components.addCleanup(func(ctx context.Context) error {
			return components.Mongo.Close(ctx)
		})
	}

	// 4. Initialize the Redis event mirror (optional)
	if !options.skipRedis && components.Config.Redis.Addr != "" {
		components.Logger.Info("connecting to redis", "addr", components.Config.Redis.Addr)
		components.Redis = redis.NewClient(&redis.Options{
			Addr:     components.Config.Redis.Addr,
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})
		if err := components.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}

		components.addCleanup(func(ctx context.Context) error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"mongo", components.Mongo != nil,
		"redis", components.Redis != nil,
	)

	return components, nil
}
