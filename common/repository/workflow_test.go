package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWorkflowPatch(t *testing.T) {
	wf := Workflow{
		Name: "deploy",
		Data: map[string]any{"nodes": []any{}, "edges": []any{}},
	}

	patch := []byte(`[{"op":"replace","path":"/name","value":"deploy-v2"}]`)
	name, data, err := applyWorkflowPatch(wf, patch)
	require.NoError(t, err)
	assert.Equal(t, "deploy-v2", name)
	assert.Contains(t, data, "nodes")
}

func TestApplyWorkflowPatchRejectsMalformedPatch(t *testing.T) {
	wf := Workflow{Name: "deploy", Data: map[string]any{}}

	_, _, err := applyWorkflowPatch(wf, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPatch)
}

func TestApplyWorkflowPatchRejectsInapplicableOp(t *testing.T) {
	wf := Workflow{Name: "deploy", Data: map[string]any{}}

	patch := []byte(`[{"op":"replace","path":"/missing/field","value":1}]`)
	_, _, err := applyWorkflowPatch(wf, patch)
	assert.ErrorIs(t, err, ErrInvalidPatch)
}
