// Package container wires the service dependency graph once at startup.
package container

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowx-dev/flowx/common/bootstrap"
	"github.com/flowx-dev/flowx/common/repository"
	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/executor"
	"github.com/flowx-dev/flowx/engine/node"
	"github.com/flowx-dev/flowx/engine/nodes"
	"github.com/flowx-dev/flowx/engine/sysinfo"
)

// Container holds all singleton services.
type Container struct {
	Components *bootstrap.Components

	Workflows *repository.WorkflowRepo
	Runs      *repository.RunRepo
	Memories  *repository.MemoryRepo

	Hub         *events.Hub
	Registry    *node.Registry
	Runner      *executor.Runner
	Fingerprint sysinfo.Fingerprint
	LLM         *openai.Client
}

// NewContainer builds the service container from bootstrapped components.
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	c := &Container{
		Components:  components,
		Hub:         events.NewHub(log),
		Registry:    node.NewRegistry(),
		Fingerprint: sysinfo.Collect(),
	}

	if components.Mongo != nil {
		c.Workflows = repository.NewWorkflowRepo(components.Mongo)
		c.Runs = repository.NewRunRepo(components.Mongo)
		c.Memories = repository.NewMemoryRepo(components.Mongo)
	}

	if components.Redis != nil {
		c.Hub.SetMirror(events.NewRedisMirror(components.Redis, cfg.Redis.Channel, log))
	}

	if cfg.LLM.APIKey != "" {
		llmConfig := openai.DefaultConfig(cfg.LLM.APIKey)
		llmConfig.BaseURL = cfg.LLM.BaseURL
		c.LLM = openai.NewClientWithConfig(llmConfig)
	}

	deps := nodes.Deps{
		ReactModel:    cfg.LLM.ReactModel,
		ReactMaxSteps: cfg.Engine.ReactMaxSteps,
		Logger:        log,
	}
	if c.LLM != nil {
		deps.Chat = c.LLM
	}
	if c.Memories != nil {
		deps.Memory = c.Memories
	}
	if err := nodes.RegisterBuiltins(c.Registry, deps); err != nil {
		return nil, fmt.Errorf("register builtin nodes: %w", err)
	}

	var store executor.RunStore
	if c.Runs != nil {
		store = c.Runs
	}
	c.Runner = executor.NewRunner(executor.RunnerOptions{
		Registry:          c.Registry,
		Store:             store,
		Hub:               c.Hub,
		SystemFingerprint: c.Fingerprint.Map(),
		MaxRestarts:       cfg.Engine.MaxWorkflowRestarts,
		Logger:            log,
	})

	return c, nil
}
