package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
)

// checkStub validates according to its "bad" data flag.
type checkStub struct {
	data map[string]any
}

func (s *checkStub) Validate(data map[string]any) node.ValidationResult {
	id, _ := data["id"].(string)
	cfg, _ := data["data"].(map[string]any)
	if bad, _ := cfg["bad"].(bool); bad {
		return node.ValidationResult{
			Valid: false,
			Errors: []node.ValidationError{{
				NodeID: id, Message: "bad config", Level: node.LevelCritical,
			}},
		}
	}
	return node.ValidationResult{Valid: true}
}

func (s *checkStub) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	return node.Result{"status": node.StatusSuccess}, nil
}

func (s *checkStub) ExecutionMode() node.ExecutionMode { return node.ExecutionMode{} }
func (s *checkStub) WaitStrategy() node.WaitStrategy   { return node.WaitAll }

func stubRegistry(t *testing.T) *node.Registry {
	t.Helper()
	reg := node.NewRegistry()
	for _, key := range []string{"startNode", "testNode"} {
		require.NoError(t, reg.Register(key, func(data map[string]any) node.Node {
			return &checkStub{data: data}
		}))
	}
	return reg
}

func TestValidGraph(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "A", Type: "testNode"},
		},
		Edges: []graph.Edge{{Source: "start", Target: "A"}},
	}

	report := Graph(g, stubRegistry(t))

	assert.True(t, report.Valid)
	assert.Equal(t, VerdictReady, report.ValidationMap["start"])
	assert.Equal(t, VerdictReady, report.ValidationMap["A"])
	assert.Empty(t, report.Errors)
}

func TestNoStartNode(t *testing.T) {
	g := graph.Graph{Nodes: []graph.Node{{ID: "A", Type: "testNode"}}}

	report := Graph(g, stubRegistry(t))

	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, node.LevelCritical, report.Errors[0].Level)
}

func TestMultipleStartNodes(t *testing.T) {
	g := graph.Graph{Nodes: []graph.Node{
		{ID: "s1", Type: "startNode"},
		{ID: "s2", Type: "startNode"},
	}}

	report := Graph(g, stubRegistry(t))

	assert.False(t, report.Valid)
}

func TestUnknownNodeType(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "X", Type: "mysteryNode"},
		},
		Edges: []graph.Edge{{Source: "start", Target: "X"}},
	}

	report := Graph(g, stubRegistry(t))

	assert.False(t, report.Valid)
	assert.Equal(t, VerdictFailed, report.ValidationMap["X"])
}

func TestUnreachableNodeIsOmittedNotFailed(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "A", Type: "testNode"},
			{ID: "orphan", Type: "testNode", Data: map[string]any{"bad": true}},
		},
		Edges: []graph.Edge{{Source: "start", Target: "A"}},
	}

	report := Graph(g, stubRegistry(t))

	// The orphan would fail validation, but unreachable nodes are not
	// admitted to the map at all; they only warn.
	assert.True(t, report.Valid)
	assert.NotContains(t, report.ValidationMap, "orphan")
	hasWarning := false
	for _, e := range report.Errors {
		if e.NodeID == "orphan" && e.Level == node.LevelWarning {
			hasWarning = true
		}
	}
	assert.True(t, hasWarning)
}

func TestCriticalNodeFailsGraph(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "A", Type: "testNode", Data: map[string]any{"bad": true}},
		},
		Edges: []graph.Edge{{Source: "start", Target: "A"}},
	}

	report := Graph(g, stubRegistry(t))

	assert.False(t, report.Valid)
	assert.Equal(t, VerdictFailed, report.ValidationMap["A"])
	assert.Equal(t, VerdictReady, report.ValidationMap["start"])
}

func TestCycleRejected(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "A", Type: "testNode"},
			{ID: "B", Type: "testNode"},
		},
		Edges: []graph.Edge{
			{Source: "start", Target: "A"},
			{Source: "A", Target: "B"},
			{Source: "B", Target: "A"},
		},
	}

	report := Graph(g, stubRegistry(t))

	assert.False(t, report.Valid)
}

func TestValidationIsPure(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "A", Type: "testNode"},
		},
		Edges: []graph.Edge{{Source: "start", Target: "A"}},
	}
	reg := stubRegistry(t)

	first := Graph(g, reg)
	second := Graph(g, reg)

	assert.Equal(t, first.Valid, second.Valid)
	assert.Equal(t, first.ValidationMap, second.ValidationMap)
	assert.Equal(t, first.Errors, second.Errors)
}
