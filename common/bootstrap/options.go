package bootstrap

import (
	"github.com/flowx-dev/flowx/common/config"
	"github.com/flowx-dev/flowx/common/logger"
)

// Option customizes bootstrap behavior
type Option func(*setupOptions)

type setupOptions struct {
	customConfig *config.Config
	customLogger *logger.Logger
	skipMongo    bool
	skipRedis    bool
}

func defaultOptions() *setupOptions {
	return &setupOptions{}
}

// WithConfig supplies a pre-built configuration instead of loading from env
func WithConfig(cfg *config.Config) Option {
	return func(o *setupOptions) { o.customConfig = cfg }
}

// WithLogger supplies a pre-built logger
func WithLogger(log *logger.Logger) Option {
	return func(o *setupOptions) { o.customLogger = log }
}

// SkipMongo skips document store initialization (tests, tooling)
func SkipMongo() Option {
	return func(o *setupOptions) { o.skipMongo = true }
}

// SkipRedis skips the Redis event mirror even when REDIS_ADDR is set
func SkipRedis() Option {
	return func(o *setupOptions) { o.skipRedis = true }
}
