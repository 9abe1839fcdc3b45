package nodes

import (
	"context"

	"github.com/flowx-dev/flowx/engine/node"
)

// StartNode is the conventional trigger: it passes through and always
// succeeds.
type StartNode struct {
	data map[string]any
}

// NewStartNode is the start node factory.
func NewStartNode(data map[string]any) node.Node {
	return &StartNode{data: data}
}

func (s *StartNode) Validate(data map[string]any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}

func (s *StartNode) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	return node.Result{
		"status": node.StatusSuccess,
		"output": map[string]any{"data": "start"},
	}, nil
}

func (s *StartNode) ExecutionMode() node.ExecutionMode {
	return node.ExecutionMode{}
}

func (s *StartNode) WaitStrategy() node.WaitStrategy {
	return node.WaitAll
}
