package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowx-dev/flowx/common/repository"
)

func TestGraphFromDocument(t *testing.T) {
	wf := repository.Workflow{
		ID:   "wf-1",
		Name: "deploy",
		Data: map[string]any{
			"nodes": []any{
				map[string]any{"id": "start", "type": "startNode"},
				map[string]any{"id": "cmd", "type": "commandNode", "data": map[string]any{"command": "ls"}},
			},
			"edges": []any{
				map[string]any{"source": "start", "target": "cmd"},
			},
		},
	}

	g, err := graphFromDocument(wf)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", g.ID)
	assert.Equal(t, "deploy", g.Name)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "commandNode", g.Nodes[1].Type)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "start", g.Edges[0].Source)
}

func TestGraphFromDocumentRejectsBadShape(t *testing.T) {
	wf := repository.Workflow{
		Data: map[string]any{"nodes": "not a list"},
	}
	_, err := graphFromDocument(wf)
	assert.Error(t, err)
}

func TestParseDim(t *testing.T) {
	assert.Equal(t, uint16(24), parseDim("", 24))
	assert.Equal(t, uint16(24), parseDim("abc", 24))
	assert.Equal(t, uint16(24), parseDim("0", 24))
	assert.Equal(t, uint16(24), parseDim("5000", 24))
	assert.Equal(t, uint16(40), parseDim("40", 24))
}

func TestRiskBadges(t *testing.T) {
	assert.Equal(t, "green", riskBadges["low"])
	assert.Equal(t, "yellow", riskBadges["medium"])
	assert.Equal(t, "red", riskBadges["high"])
}
