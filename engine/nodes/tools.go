package nodes

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/flowx-dev/flowx/engine/executor"
	"github.com/flowx-dev/flowx/engine/node"
)

// ToolDefType marks a result output as a tool grant for a downstream
// agent.
const ToolDefType = "TOOL_DEF"

// shellToolTimeout bounds agent-issued shell commands.
const shellToolTimeout = 15 * time.Second

// ToolDef is the declarative half of a tool grant: the schema the
// agent's model sees.
type ToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Args        string `json:"args"`
}

// toolProvider is the shared shape of the tool nodes: each emits a
// TOOL_DEF payload carrying a definition and an in-process
// implementation. The implementation never leaves the process; the run
// store receives only the definition.
type toolProvider struct {
	def  ToolDef
	impl ToolFunc
}

func (t *toolProvider) Validate(data map[string]any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}

func (t *toolProvider) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	return node.Result{
		"status": node.StatusSuccess,
		"output": map[string]any{
			"type":           ToolDefType,
			"definition":     t.def,
			"implementation": t.impl,
		},
	}, nil
}

func (t *toolProvider) ExecutionMode() node.ExecutionMode {
	return node.ExecutionMode{}
}

func (t *toolProvider) WaitStrategy() node.WaitStrategy {
	return node.WaitAll
}

// NewShellToolNode grants run_shell: bounded, non-interactive shell
// execution for diagnostic commands.
func NewShellToolNode(data map[string]any) node.Node {
	return &toolProvider{
		def: ToolDef{
			Name:        "run_shell",
			Description: "Execute a non-interactive shell command and return its output. Use for diagnostics and inspection, not long-running processes.",
			Args:        "the shell command to run",
		},
		impl: runShell,
	}
}

// NewStopToolNode grants stop_workflow: hard-stops the run with a
// reason.
func NewStopToolNode(data map[string]any) node.Node {
	return &toolProvider{
		def: ToolDef{
			Name:        "stop_workflow",
			Description: "Abort the entire workflow immediately. Pass the reason for stopping as the argument.",
			Args:        "reason for stopping",
		},
		impl: func(ctx context.Context, args string) (string, error) {
			reason := strings.TrimSpace(args)
			if reason == "" {
				reason = "Stopped by Agent"
			}
			return executor.SignalStop + ":" + reason, nil
		},
	}
}

// NewRestartToolNode grants restart_workflow: re-runs the workflow from
// the start node.
func NewRestartToolNode(data map[string]any) node.Node {
	return &toolProvider{
		def: ToolDef{
			Name:        "restart_workflow",
			Description: "Restart the whole workflow from the beginning. Use after applying a fix that earlier steps need to pick up.",
			Args:        "ignored",
		},
		impl: func(ctx context.Context, args string) (string, error) {
			return executor.SignalRestart, nil
		},
	}
}

// runShell executes a command with a hard timeout and returns combined
// stdout, or an "Error:" string so the agent can observe the failure
// instead of crashing the step.
func runShell(ctx context.Context, args string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, shellToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", args)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "Error: command timed out after 15s", nil
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "Error: " + msg, nil
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	return out, nil
}
