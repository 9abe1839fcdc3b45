package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/node"
	"github.com/flowx-dev/flowx/engine/pty"
)

// placeholderRe matches unresolved template placeholders like
// "<package-name>" left over from generated commands.
var placeholderRe = regexp.MustCompile(`<[^>]+>`)

// CommandNode runs a shell command on a PTY, streaming output to the
// event bus. A locked node refuses to run; a sudo-locked node requires
// a sudo password in the runtime context.
type CommandNode struct {
	data map[string]any
	run  pty.RunFunc
}

// CommandFactory binds a PTY runner into command node construction.
func CommandFactory(run pty.RunFunc) node.Factory {
	return func(data map[string]any) node.Node {
		return &CommandNode{data: data, run: run}
	}
}

func (c *CommandNode) command() string {
	s, _ := c.data["command"].(string)
	return strings.TrimSpace(s)
}

func (c *CommandNode) flag(key string) bool {
	b, _ := c.data[key].(bool)
	return b
}

func (c *CommandNode) Validate(data map[string]any) node.ValidationResult {
	id, _ := data["id"].(string)
	cfg, _ := data["data"].(map[string]any)
	if cfg == nil {
		cfg = data
	}

	var errs []node.ValidationError
	cmd, _ := cfg["command"].(string)
	cmd = strings.TrimSpace(cmd)

	if cmd == "" {
		errs = append(errs, node.ValidationError{
			NodeID:  id,
			Message: "Command is empty.",
			Level:   node.LevelCritical,
		})
	} else if placeholderRe.MatchString(cmd) {
		errs = append(errs, node.ValidationError{
			NodeID:  id,
			Message: fmt.Sprintf("Command contains unresolved placeholder: %s", placeholderRe.FindString(cmd)),
			Level:   node.LevelCritical,
		})
	}

	if locked, _ := cfg["locked"].(bool); locked {
		errs = append(errs, node.ValidationError{
			NodeID:  id,
			Message: "Node is locked and will not execute.",
			Level:   node.LevelCritical,
		})
	}

	return node.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (c *CommandNode) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	nodeID, _ := c.data["id"].(string)
	command := c.command()

	emit := func(chunk, stream string) {
		rc.EmitEvent(events.TypeNodeLog, map[string]any{
			"nodeId": nodeID,
			"log":    chunk,
			"type":   stream,
		})
	}

	if c.flag("locked") {
		msg := "\r\n\x1b[31m[FlowX Error] Node is intentionally LOCKED. Unlock it to allow execution.\x1b[0m\r\n"
		emit(msg, "stderr")
		return node.Result{
			"status":    node.StatusError,
			"stdout":    "",
			"stderr":    "[FlowX Error] Node is intentionally LOCKED. Unlock it to allow execution.",
			"exit_code": 126,
		}, nil
	}

	sudoPassword := ""
	if c.flag("sudoLock") {
		if rc == nil || rc.SudoPassword == "" {
			msg := "[FlowX Error] Node requires sudo but no password was provided."
			emit("\r\n\x1b[31m"+msg+"\x1b[0m\r\n", "stderr")
			return node.Result{
				"status":    node.StatusError,
				"stdout":    "",
				"stderr":    msg,
				"exit_code": 1,
			}, nil
		}
		sudoPassword = rc.SudoPassword
	}

	// Banner echoes the user's command text, never the wrapper script.
	emit(fmt.Sprintf("\r\n\x1b[36m> %s\x1b[0m\r\n", command), "stdout")

	exitCode, stdout, stderr := c.run(ctx, command, sudoPassword, emit)

	status := node.StatusSuccess
	if exitCode != 0 {
		status = node.StatusError
	}

	result := node.Result{
		"status":    status,
		"stdout":    stdout,
		"exit_code": exitCode,
	}
	if exitCode != 0 {
		if stderr == "" {
			stderr = stdout
		}
		result["stderr"] = stderr
	}
	return result, nil
}

func (c *CommandNode) ExecutionMode() node.ExecutionMode {
	return node.ExecutionMode{RequiresPTY: true, IsInteractive: true}
}

func (c *CommandNode) WaitStrategy() node.WaitStrategy {
	return node.WaitAll
}
