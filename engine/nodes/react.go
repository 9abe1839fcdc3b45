package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/executor"
	"github.com/flowx-dev/flowx/engine/node"
)

// reactStep is one JSON step emitted by the model.
type reactStep struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Args    string `json:"args"`
}

// finalAnswerAction terminates the loop with the args as the answer.
const finalAnswerAction = "final_answer"

// memoryWindow is how many prior session summaries the agent recalls.
const memoryWindow = 5

// toolGrant pairs a tool schema with its in-process implementation.
type toolGrant struct {
	def  ToolDef
	impl ToolFunc
}

// ReActNode drives a bounded reason-act loop against an
// OpenAI-compatible chat model. Tools arrive exclusively through
// connected tool-provider nodes; anything else the model asks for is
// denied.
type ReActNode struct {
	data map[string]any
	deps Deps
}

// ReActFactory binds agent dependencies into node construction.
func ReActFactory(deps Deps) node.Factory {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.ReactMaxSteps < 1 {
		deps.ReactMaxSteps = 5
	}
	return func(data map[string]any) node.Node {
		return &ReActNode{data: data, deps: deps}
	}
}

func (a *ReActNode) objective() string {
	for _, key := range []string{"objective", "prompt"} {
		if s, _ := a.data[key].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (a *ReActNode) Validate(data map[string]any) node.ValidationResult {
	id, _ := data["id"].(string)
	cfg, _ := data["data"].(map[string]any)
	if cfg == nil {
		cfg = data
	}

	objective, _ := cfg["objective"].(string)
	if strings.TrimSpace(objective) == "" {
		if p, _ := cfg["prompt"].(string); strings.TrimSpace(p) != "" {
			objective = p
		}
	}
	if strings.TrimSpace(objective) == "" {
		return node.ValidationResult{
			Valid: false,
			Errors: []node.ValidationError{{
				NodeID:  id,
				Message: "Agent objective is empty.",
				Level:   node.LevelCritical,
			}},
		}
	}
	return node.ValidationResult{Valid: true}
}

func (a *ReActNode) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	nodeID, _ := a.data["id"].(string)
	objective := a.objective()
	if objective == "" {
		return node.Result{"status": node.StatusError, "stderr": "agent objective is empty"}, nil
	}
	if a.deps.Chat == nil {
		return node.Result{"status": node.StatusError, "stderr": "no LLM client configured"}, nil
	}

	log := a.deps.Logger.WithNodeID(nodeID)
	tools := collectTools(payload)

	emitLog := func(text string) {
		rc.EmitEvent(events.TypeNodeLog, map[string]any{
			"nodeId": nodeID,
			"log":    text,
			"type":   "stdout",
		})
	}

	memories := a.recall(ctx, rc, nodeID)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt(rc, tools, memories)},
		{Role: openai.ChatMessageRoleUser, Content: "Objective: " + objective},
	}

	var history []map[string]any
	steps := 0

	for steps < a.deps.ReactMaxSteps {
		steps++

		step, raw, err := a.nextStep(ctx, messages)
		if err != nil {
			a.remember(rc, nodeID, "LLM call failed: "+err.Error(), "failed", steps)
			return node.Result{"status": node.StatusError, "stderr": err.Error()}, nil
		}

		emitLog(fmt.Sprintf("\r\n\x1b[33m[Agent] Thought: %s\x1b[0m\r\n", step.Thought))
		entry := map[string]any{
			"step":    steps,
			"thought": step.Thought,
			"action":  step.Action,
			"args":    step.Args,
		}

		if step.Action == finalAnswerAction {
			history = append(history, entry)
			emitLog(fmt.Sprintf("\r\n\x1b[32m[Agent] %s\x1b[0m\r\n", step.Args))
			a.remember(rc, nodeID, step.Args, "success", steps)
			return node.Result{
				"status": node.StatusSuccess,
				"output": map[string]any{
					"response": step.Args,
					"history":  history,
					"steps":    steps,
				},
			}, nil
		}

		observation := a.act(ctx, tools, step)
		entry["observation"] = observation
		history = append(history, entry)

		if strings.HasPrefix(observation, executor.SignalPrefix) {
			log.Info("agent triggered control signal", "signal", observation)
			a.remember(rc, nodeID, "Triggered control signal: "+step.Thought, "signal", steps)
			return node.Result{
				"status": node.StatusSuccess,
				"output": map[string]any{
					"response": "Control Signal Triggered",
					"signal":   observation,
					"history":  history,
				},
			}, nil
		}

		emitLog(fmt.Sprintf("[Agent] Observation: %s\r\n", truncate(observation, 500)))

		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: raw},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Observation: " + observation},
		)
	}

	log.Warn("agent exhausted step budget", "steps", steps)
	a.remember(rc, nodeID, "Exhausted step budget without a final answer.", "failed", steps)
	return node.Result{
		"status": node.StatusError,
		"stderr": fmt.Sprintf("agent reached the %d-step limit without a final answer", a.deps.ReactMaxSteps),
		"output": map[string]any{"history": history, "steps": steps},
	}, nil
}

func (a *ReActNode) ExecutionMode() node.ExecutionMode {
	return node.ExecutionMode{}
}

func (a *ReActNode) WaitStrategy() node.WaitStrategy {
	return node.WaitAll
}

// nextStep asks the model for one JSON step, enforcing json_object
// response format.
func (a *ReActNode) nextStep(ctx context.Context, messages []openai.ChatCompletionMessage) (reactStep, string, error) {
	resp, err := a.deps.Chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.deps.ReactModel,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return reactStep{}, "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return reactStep{}, "", fmt.Errorf("chat completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	var step reactStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return reactStep{}, "", fmt.Errorf("malformed agent step: %w", err)
	}
	if step.Action == "" {
		return reactStep{}, "", fmt.Errorf("agent step has no action")
	}
	return step, raw, nil
}

// act dispatches a step to its granted tool. Ungranted tools produce a
// permission-denied observation rather than an error, so the model can
// recover.
func (a *ReActNode) act(ctx context.Context, tools map[string]toolGrant, step reactStep) string {
	grant, ok := tools[step.Action]
	if !ok {
		return fmt.Sprintf("Error: Permission Denied. Tool '%s' is not connected.", step.Action)
	}
	out, err := grant.impl(ctx, step.Args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

func (a *ReActNode) systemPrompt(rc *node.RuntimeContext, tools map[string]toolGrant, memories []MemoryEntry) string {
	var b strings.Builder
	b.WriteString("You are FlowX, an autonomous DevOps agent embedded in a workflow engine.\n")
	b.WriteString("You reason step by step and act through the tools you have been granted.\n\n")

	if rc != nil && len(rc.SystemFingerprint) > 0 {
		if fp, err := json.Marshal(rc.SystemFingerprint); err == nil {
			b.WriteString("Host system: ")
			b.Write(fp)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Available tools:\n")
	if len(tools) == 0 {
		b.WriteString("- (none connected)\n")
	}
	for name, grant := range tools {
		fmt.Fprintf(&b, "- %s: %s (args: %s)\n", name, grant.def.Description, grant.def.Args)
	}
	fmt.Fprintf(&b, "- %s: finish with your answer as the args\n\n", finalAnswerAction)

	if len(memories) > 0 {
		b.WriteString("Relevant past sessions on this node:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Outcome, m.Summary)
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with exactly one JSON object per turn: ")
	b.WriteString(`{"thought": "<your reasoning>", "action": "<tool name>", "args": "<tool arguments>"}.`)
	b.WriteString(" Never use a tool that is not listed.")
	return b.String()
}

// recall loads the most recent memory window; a cold store is not an
// error.
func (a *ReActNode) recall(ctx context.Context, rc *node.RuntimeContext, nodeID string) []MemoryEntry {
	if a.deps.Memory == nil || rc == nil {
		return nil
	}
	entries, err := a.deps.Memory.Fetch(ctx, rc.ThreadID, nodeID, memoryWindow)
	if err != nil {
		a.deps.Logger.Warn("agent memory fetch failed", "node_id", nodeID, "error", err)
		return nil
	}
	return entries
}

// remember appends a session summary; persistence failures are logged,
// never fatal. The write uses its own context so it survives run
// cancellation.
func (a *ReActNode) remember(rc *node.RuntimeContext, nodeID, summary, outcome string, steps int) {
	if a.deps.Memory == nil || rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.deps.Memory.Append(ctx, rc.ThreadID, nodeID, MemoryEntry{
		Summary:   truncate(summary, 500),
		Outcome:   outcome,
		Steps:     steps,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		a.deps.Logger.Warn("agent memory append failed", "node_id", nodeID, "error", err)
	}
}

// collectTools harvests TOOL_DEF grants from live parent payloads.
func collectTools(payload map[string]any) map[string]toolGrant {
	tools := make(map[string]toolGrant)
	inputs, _ := payload["inputs"].(map[string]any)
	for _, v := range inputs {
		res, _ := v.(map[string]any)
		out, _ := res["output"].(map[string]any)
		if out == nil {
			continue
		}
		if t, _ := out["type"].(string); t != ToolDefType {
			continue
		}
		impl, _ := out["implementation"].(ToolFunc)
		if impl == nil {
			continue
		}
		def := parseToolDef(out["definition"])
		if def.Name == "" {
			continue
		}
		tools[def.Name] = toolGrant{def: def, impl: impl}
	}
	return tools
}

// parseToolDef accepts either the typed struct (in-process) or a plain
// map (rehydrated from the run store).
func parseToolDef(v any) ToolDef {
	switch d := v.(type) {
	case ToolDef:
		return d
	case map[string]any:
		name, _ := d["name"].(string)
		desc, _ := d["description"].(string)
		args, _ := d["args"].(string)
		return ToolDef{Name: name, Description: desc, Args: args}
	default:
		return ToolDef{}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
