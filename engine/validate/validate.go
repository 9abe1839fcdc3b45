// Package validate runs the pre-flight checks a graph must pass before
// execution.
package validate

import (
	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
)

// Per-node verdicts in the validation map.
const (
	VerdictReady  = "READY"
	VerdictFailed = "VALIDATION_FAILED"
)

// Report is the outcome of a pre-flight validation pass.
type Report struct {
	Valid         bool                   `json:"valid"`
	ValidationMap map[string]string      `json:"validation_map"`
	Errors        []node.ValidationError `json:"errors"`
}

// Graph validates structure (exactly one start node, reachability) and
// per-node configuration. Critical findings fail the graph; orphan
// nodes only warn.
func Graph(g graph.Graph, reg *node.Registry) Report {
	nodes, edges := g.FilterExecutable()

	report := Report{
		Valid:         true,
		ValidationMap: make(map[string]string, len(nodes)),
	}

	var triggers []graph.Node
	for _, n := range nodes {
		if graph.TriggerTypes[n.Type] {
			triggers = append(triggers, n)
		}
	}
	switch {
	case len(triggers) == 0:
		report.Valid = false
		report.Errors = append(report.Errors, node.ValidationError{
			Message: "No valid start node found.",
			Level:   node.LevelCritical,
		})
	case len(triggers) > 1:
		report.Valid = false
		report.Errors = append(report.Errors, node.ValidationError{
			Message: "Multiple start nodes found; a workflow must have exactly one.",
			Level:   node.LevelCritical,
		})
	}

	if hasCycle(nodes, edges) {
		report.Valid = false
		report.Errors = append(report.Errors, node.ValidationError{
			Message: "Workflow graph contains a cycle; loops are only possible via the restart signal.",
			Level:   node.LevelCritical,
		})
	}

	reachable := reach(triggers, edges)

	for _, n := range nodes {
		// Unreachable nodes are omitted from the map, not failed; they
		// only produce a warning.
		if len(triggers) == 1 && !reachable[n.ID] {
			report.Errors = append(report.Errors, node.ValidationError{
				NodeID:  n.ID,
				Message: "Node is not reachable from the start node.",
				Level:   node.LevelWarning,
			})
			continue
		}

		verdict := VerdictReady

		factory, err := reg.Get(n.Type)
		if err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, node.ValidationError{
				NodeID:  n.ID,
				Message: "Unknown node type: " + n.Type,
				Level:   node.LevelCritical,
			})
			report.ValidationMap[n.ID] = VerdictFailed
			continue
		}

		instance := factory(n.Data)
		res := instance.Validate(map[string]any{"id": n.ID, "data": n.Data})
		report.Errors = append(report.Errors, res.Errors...)
		if res.Critical() {
			report.Valid = false
			verdict = VerdictFailed
		}

		report.ValidationMap[n.ID] = verdict
	}

	return report
}

// hasCycle runs Kahn's algorithm over the executable subgraph.
func hasCycle(nodes []graph.Node, edges []graph.Edge) bool {
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = 0
	}
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		indegree[e.Target]++
	}

	var queue []string
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited != len(nodes)
}

// reach does a forward BFS from the trigger nodes over executable edges.
func reach(triggers []graph.Node, edges []graph.Edge) map[string]bool {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	seen := make(map[string]bool)
	var queue []string
	for _, t := range triggers {
		seen[t.ID] = true
		queue = append(queue, t.ID)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}
