package nodes

import (
	"context"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowx-dev/flowx/engine/executor"
	"github.com/flowx-dev/flowx/engine/node"
)

// scriptedChat returns canned completions in order and records every
// request it saw.
type scriptedChat struct {
	replies  []string
	requests []openai.ChatCompletionRequest
}

func (s *scriptedChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}},
		},
	}, nil
}

// memoryFake is an in-memory MemoryStore.
type memoryFake struct {
	entries []MemoryEntry
}

func (m *memoryFake) Fetch(ctx context.Context, threadID, nodeID string, limit int) ([]MemoryEntry, error) {
	if len(m.entries) > limit {
		return m.entries[len(m.entries)-limit:], nil
	}
	return m.entries, nil
}

func (m *memoryFake) Append(ctx context.Context, threadID, nodeID string, entry MemoryEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func agentNode(chat ChatClient, memory MemoryStore, maxSteps int) node.Node {
	return ReActFactory(Deps{
		Chat:          chat,
		Memory:        memory,
		ReactModel:    "test-model",
		ReactMaxSteps: maxSteps,
	})(map[string]any{
		"id":        "agent-1",
		"objective": "check disk space",
	})
}

func shellGrant(impl ToolFunc) map[string]any {
	return map[string]any{
		"status": "success",
		"output": map[string]any{
			"type":           ToolDefType,
			"definition":     ToolDef{Name: "run_shell", Description: "run a shell command", Args: "command"},
			"implementation": impl,
		},
	}
}

func TestAgentFinalAnswer(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"thought": "nothing to do", "action": "final_answer", "args": "all good"}`,
	}}
	memory := &memoryFake{}

	res, err := agentNode(chat, memory, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"}, map[string]any{})
	require.NoError(t, err)

	assert.True(t, res.Success())
	out := res.Output()
	assert.Equal(t, "all good", out["response"])

	require.Len(t, memory.entries, 1)
	assert.Equal(t, "success", memory.entries[0].Outcome)
	assert.Equal(t, 1, memory.entries[0].Steps)
}

func TestAgentUsesGrantedTool(t *testing.T) {
	var gotArgs string
	grant := shellGrant(func(ctx context.Context, args string) (string, error) {
		gotArgs = args
		return "disk is 40% full", nil
	})

	chat := &scriptedChat{replies: []string{
		`{"thought": "check it", "action": "run_shell", "args": "df -h"}`,
		`{"thought": "done", "action": "final_answer", "args": "40% used"}`,
	}}

	res, err := agentNode(chat, &memoryFake{}, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"},
		map[string]any{"inputs": map[string]any{"tool-1": grant}})
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, "df -h", gotArgs)

	// The observation must feed the next turn.
	require.Len(t, chat.requests, 2)
	last := chat.requests[1].Messages[len(chat.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "disk is 40% full")
}

func TestAgentPermissionDenied(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"thought": "let me hack", "action": "delete_everything", "args": ""}`,
		`{"thought": "ok then", "action": "final_answer", "args": "could not"}`,
	}}

	res, err := agentNode(chat, &memoryFake{}, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"}, map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.Success())

	require.Len(t, chat.requests, 2)
	last := chat.requests[1].Messages[len(chat.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "Error: Permission Denied. Tool 'delete_everything' is not connected.")
}

func TestAgentSignalShortCircuit(t *testing.T) {
	grant := map[string]any{
		"status": "success",
		"output": map[string]any{
			"type":           ToolDefType,
			"definition":     ToolDef{Name: "restart_workflow", Description: "restart", Args: "ignored"},
			"implementation": ToolFunc(func(ctx context.Context, args string) (string, error) {
				return executor.SignalRestart, nil
			}),
		},
	}

	chat := &scriptedChat{replies: []string{
		`{"thought": "fix applied, restart", "action": "restart_workflow", "args": ""}`,
	}}
	memory := &memoryFake{}

	res, err := agentNode(chat, memory, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"},
		map[string]any{"inputs": map[string]any{"tool-1": grant}})
	require.NoError(t, err)

	assert.True(t, res.Success())
	out := res.Output()
	assert.Equal(t, "Control Signal Triggered", out["response"])
	assert.Equal(t, executor.SignalRestart, out["signal"])

	require.Len(t, memory.entries, 1)
	assert.Equal(t, "signal", memory.entries[0].Outcome)
}

func TestAgentStepCap(t *testing.T) {
	grant := shellGrant(func(ctx context.Context, args string) (string, error) {
		return "still looking", nil
	})
	chat := &scriptedChat{replies: []string{
		`{"thought": "hmm", "action": "run_shell", "args": "ls"}`,
		`{"thought": "hmm", "action": "run_shell", "args": "ls"}`,
		`{"thought": "hmm", "action": "run_shell", "args": "ls"}`,
	}}
	memory := &memoryFake{}

	res, err := agentNode(chat, memory, 2).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"},
		map[string]any{"inputs": map[string]any{"tool-1": grant}})
	require.NoError(t, err)

	assert.Equal(t, node.StatusError, res.Status())
	assert.Contains(t, res["stderr"], "2-step limit")
	require.Len(t, memory.entries, 1)
	assert.Equal(t, "failed", memory.entries[0].Outcome)
}

func TestAgentMalformedStepFails(t *testing.T) {
	chat := &scriptedChat{replies: []string{`this is not json`}}

	res, err := agentNode(chat, &memoryFake{}, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, node.StatusError, res.Status())
}

func TestAgentRecallsMemory(t *testing.T) {
	memory := &memoryFake{entries: []MemoryEntry{
		{Summary: "previously fixed nginx config", Outcome: "success", Steps: 3},
	}}
	chat := &scriptedChat{replies: []string{
		`{"thought": "recall", "action": "final_answer", "args": "done"}`,
	}}

	_, err := agentNode(chat, memory, 5).Execute(context.Background(),
		&node.RuntimeContext{ThreadID: "t-1"}, map[string]any{})
	require.NoError(t, err)

	require.NotEmpty(t, chat.requests)
	system := chat.requests[0].Messages[0]
	assert.Equal(t, openai.ChatMessageRoleSystem, system.Role)
	assert.Contains(t, system.Content, "previously fixed nginx config")
}

func TestAgentValidate(t *testing.T) {
	factory := ReActFactory(Deps{})

	res := factory(nil).Validate(map[string]any{"id": "a", "data": map[string]any{"objective": "do a thing"}})
	assert.True(t, res.Valid)

	res = factory(nil).Validate(map[string]any{"id": "a", "data": map[string]any{}})
	assert.False(t, res.Valid)
	assert.True(t, res.Critical())
}
