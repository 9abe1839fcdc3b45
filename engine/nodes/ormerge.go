package nodes

import (
	"context"

	"github.com/flowx-dev/flowx/engine/node"
)

// ORMergeNode is the discriminator: it fires on the first incoming
// branch that delivers a live payload. The gating itself lives in the
// executor via the ANY wait strategy; by the time Execute runs the
// winning branch has already been selected.
type ORMergeNode struct {
	data map[string]any
}

// NewORMergeNode is the or-merge factory.
func NewORMergeNode(data map[string]any) node.Node {
	return &ORMergeNode{data: data}
}

func (m *ORMergeNode) Validate(data map[string]any) node.ValidationResult {
	// Pure flow control, nothing to configure.
	return node.ValidationResult{Valid: true}
}

func (m *ORMergeNode) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	inputs, _ := payload["inputs"].(map[string]any)

	winnerID := "unknown"
	var winner any = map[string]any{}
	for parentID, data := range inputs {
		winnerID = parentID
		winner = data
		break
	}

	// The merge itself succeeded, which "cleans" the pipeline so
	// standard conditional edges work downstream; the wrapped payload
	// still carries the original branch status.
	return node.Result{
		"status":       node.StatusSuccess,
		"output":       winner,
		"_merged_from": winnerID,
	}, nil
}

func (m *ORMergeNode) ExecutionMode() node.ExecutionMode {
	return node.ExecutionMode{}
}

func (m *ORMergeNode) WaitStrategy() node.WaitStrategy {
	return node.WaitAny
}
