// Package nodes provides the built-in node types: start, command,
// or-merge, the ReAct agent and its tool-provider nodes.
package nodes

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/node"
	"github.com/flowx-dev/flowx/engine/pty"
)

// Node type keys.
const (
	TypeStart       = "startNode"
	TypeCommand     = "commandNode"
	TypeORMerge     = "orMergeNode"
	TypeReActAgent  = "reactAgentNode"
	TypeShellTool   = "shellToolNode"
	TypeStopTool    = "stopToolNode"
	TypeRestartTool = "restartToolNode"
)

// ToolFunc is a capability implementation granted to an agent by a
// tool-provider node. It travels inside the in-process result payload
// and is stripped before persistence.
type ToolFunc func(ctx context.Context, args string) (string, error)

// MemoryEntry is one persisted agent memory record.
type MemoryEntry struct {
	Summary   string    `bson:"summary" json:"summary"`
	Outcome   string    `bson:"outcome" json:"outcome"`
	Steps     int       `bson:"steps" json:"steps"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// MemoryStore persists per-(thread, node) agent memory with TTL.
type MemoryStore interface {
	Fetch(ctx context.Context, threadID, nodeID string, limit int) ([]MemoryEntry, error)
	Append(ctx context.Context, threadID, nodeID string, entry MemoryEntry) error
}

// ChatClient captures the subset of the OpenAI-compatible client used
// by the agent, injectable for tests.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Deps bundles the services built-in nodes need.
type Deps struct {
	RunPTY        pty.RunFunc
	Chat          ChatClient
	Memory        MemoryStore
	ReactModel    string
	ReactMaxSteps int
	Logger        *logger.Logger
}

// RegisterBuiltins wires all built-in node types into a registry.
func RegisterBuiltins(reg *node.Registry, deps Deps) error {
	if deps.RunPTY == nil {
		deps.RunPTY = pty.Run
	}
	if deps.ReactMaxSteps < 1 {
		deps.ReactMaxSteps = 5
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	builtins := []struct {
		key     string
		factory node.Factory
	}{
		{TypeStart, NewStartNode},
		{TypeCommand, CommandFactory(deps.RunPTY)},
		{TypeORMerge, NewORMergeNode},
		{TypeReActAgent, ReActFactory(deps)},
		{TypeShellTool, NewShellToolNode},
		{TypeStopTool, NewStopToolNode},
		{TypeRestartTool, NewRestartToolNode},
	}

	for _, b := range builtins {
		if err := reg.Register(b.key, b.factory); err != nil {
			return err
		}
	}
	return nil
}
