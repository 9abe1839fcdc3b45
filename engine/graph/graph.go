// Package graph holds the wire model for user-authored workflow graphs.
package graph

// Config-only wiring: these handles and node types carry static
// capability wiring in the editor and never participate in execution.
var (
	ConfigHandles = map[string]bool{
		"api-handle":  true,
		"tool-handle": true,
	}
	ConfigNodeTypes = map[string]bool{
		"apiConfig":  true,
		"toolCircle": true,
		"vaultNode":  true,
	}
)

// TriggerTypes are node types that may seed a run when they have no
// incoming edges.
var TriggerTypes = map[string]bool{
	"startNode":   true,
	"webhookNode": true,
	"cronNode":    true,
}

// Node is a single unit of work in the graph.
type Node struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Edge connects a source node to a target node. Data may carry a
// "behavior" routing label and an optional "condition" CEL expression.
type Edge struct {
	ID           string         `json:"id,omitempty"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Behavior returns the explicit behavior label, or "" when absent.
func (e Edge) Behavior() string {
	if b, ok := e.Data["behavior"].(string); ok {
		return b
	}
	return ""
}

// Condition returns the optional CEL condition source, or "".
func (e Edge) Condition() string {
	if c, ok := e.Data["condition"].(string); ok {
		return c
	}
	return ""
}

// Graph is a run input: nodes, edges and an optional secrets bag.
type Graph struct {
	ID      string            `json:"id,omitempty"`
	Name    string            `json:"name,omitempty"`
	Nodes   []Node            `json:"nodes"`
	Edges   []Edge            `json:"edges"`
	Secrets map[string]string `json:"secrets,omitempty"`
}

// FilterExecutable strips configuration-only nodes and edges, returning
// the subgraph that actually participates in execution.
func (g Graph) FilterExecutable() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !ConfigNodeTypes[n.Type] {
			nodes = append(nodes, n)
		}
	}
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if !ConfigHandles[e.SourceHandle] {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}
