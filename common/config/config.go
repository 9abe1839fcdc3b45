package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service ServiceConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Engine  EngineConfig
	LLM     LLMConfig
	Plugins PluginsConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// MongoConfig holds the document store connection settings
type MongoConfig struct {
	URL      string
	Database string
	Timeout  time.Duration
}

// RedisConfig holds the optional event-mirror settings.
// An empty Addr disables the mirror entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// EngineConfig holds graph-executor tunables
type EngineConfig struct {
	MaxWorkflowRestarts int
	ReactMaxSteps       int
	AgentMemoryTTL      time.Duration
}

// LLMConfig holds model API settings for the ReAct agent and the
// command generation plugin. BaseURL defaults to the Groq
// OpenAI-compatible endpoint.
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	ReactModel    string
}

// PluginsConfig holds plugin discovery settings
type PluginsConfig struct {
	Dir string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8000),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Mongo: MongoConfig{
			URL:      getEnv("MONGO_URL", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "flowx"),
			Timeout:  getEnvDuration("MONGO_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_EVENT_CHANNEL", "flowx:events"),
		},
		Engine: EngineConfig{
			MaxWorkflowRestarts: getEnvInt("MAX_WORKFLOW_RESTARTS", 3),
			ReactMaxSteps:       getEnvInt("REACT_AGENT_MAX_STEPS", 5),
			AgentMemoryTTL:      time.Duration(getEnvInt("AGENT_MEMORY_TTL_SECONDS", 86400)) * time.Second,
		},
		LLM: LLMConfig{
			APIKey:        getEnv("GROQ_API_KEY", ""),
			BaseURL:       getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:         getEnv("FLOWX_MODEL", "meta-llama/llama-4-maverick-17b-128e-instruct"),
			FallbackModel: getEnv("FLOWX_MODEL_FALLBACK", "meta-llama/llama-3.3-70b-versatile"),
			ReactModel:    getEnv("REACT_AGENT_MODEL", "llama-3.3-70b-versatile"),
		},
		Plugins: PluginsConfig{
			Dir: getEnv("PLUGINS_DIR", "plugins"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Mongo.URL == "" {
		return fmt.Errorf("mongo url is required")
	}

	if c.Engine.MaxWorkflowRestarts < 0 {
		return fmt.Errorf("max_workflow_restarts must be >= 0")
	}

	if c.Engine.ReactMaxSteps < 1 {
		return fmt.Errorf("react_agent_max_steps must be >= 1")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
