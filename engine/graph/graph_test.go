package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterExecutable(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "start", Type: "startNode"},
			{ID: "cmd", Type: "commandNode"},
			{ID: "vault", Type: "vaultNode"},
			{ID: "api", Type: "apiConfig"},
		},
		Edges: []Edge{
			{Source: "start", Target: "cmd"},
			{Source: "vault", Target: "cmd", SourceHandle: "api-handle"},
			{Source: "api", Target: "cmd", SourceHandle: "tool-handle"},
		},
	}

	nodes, edges := g.FilterExecutable()

	assert.Len(t, nodes, 2)
	assert.Len(t, edges, 1)
	assert.Equal(t, "start", edges[0].Source)
}

func TestEdgeAccessors(t *testing.T) {
	e := Edge{Data: map[string]any{"behavior": "failure", "condition": `output.ok`}}
	assert.Equal(t, "failure", e.Behavior())
	assert.Equal(t, "output.ok", e.Condition())

	empty := Edge{}
	assert.Empty(t, empty.Behavior())
	assert.Empty(t, empty.Condition())

	wrongType := Edge{Data: map[string]any{"behavior": 7}}
	assert.Empty(t, wrongType.Behavior())
}

func TestTriggerAndConfigSets(t *testing.T) {
	assert.True(t, TriggerTypes["startNode"])
	assert.True(t, TriggerTypes["webhookNode"])
	assert.True(t, TriggerTypes["cronNode"])
	assert.False(t, TriggerTypes["commandNode"])

	assert.True(t, ConfigNodeTypes["vaultNode"])
	assert.True(t, ConfigHandles["tool-handle"])
}
