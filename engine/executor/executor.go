// Package executor implements the push-based DAG scheduler: inbox-per-
// node dataflow, wait strategies, edge-behavior routing, skip
// propagation, crash rehydration, cancellation and bounded restart.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/condition"
	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
)

// Run outcome statuses.
const (
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
	RunCancelled = "CANCELLED"
)

// Internal node statuses.
const (
	statePending   = "pending"
	stateRunning   = "running"
	stateCompleted = "completed"
	stateSkipped   = "skipped"
	stateFailed    = "failed"
)

// Edge behaviors.
const (
	behaviorConditional = "conditional"
	behaviorFailure     = "failure"
	behaviorAlways      = "always"
)

const storeWriteTimeout = 5 * time.Second

// RunStore persists per-node results under a run identifier. Writes
// are advisory: the executor fires them in detached goroutines and
// swallows failures.
type RunStore interface {
	SaveNodeResult(ctx context.Context, threadID, nodeID, status string, result any) error
}

// NodeError records a single node failure.
type NodeError struct {
	NodeID string `json:"nodeId,omitempty"`
	Error  string `json:"error"`
}

// Outcome is the terminal state of a single executor pass.
type Outcome struct {
	ThreadID string                 `json:"thread_id"`
	Status   string                 `json:"status"`
	Results  map[string]node.Result `json:"results"`
	Errors   []NodeError            `json:"errors"`
}

// Signal returns the control signal found in any node result, or "".
// Results-map order is not deterministic, so a stop signal always wins
// over a restart when a run carries both.
func (o *Outcome) Signal() string {
	found := ""
	for _, res := range o.Results {
		out := res.Output()
		if out == nil {
			continue
		}
		sig, ok := out["signal"].(string)
		if !ok || !strings.HasPrefix(sig, SignalPrefix) {
			continue
		}
		if strings.HasPrefix(sig, SignalStop) {
			return sig
		}
		found = sig
	}
	return found
}

// Options configures a single executor pass.
type Options struct {
	ThreadID          string
	Registry          *node.Registry
	Store             RunStore
	Emit              node.EmitFunc
	Secrets           map[string]string
	SystemFingerprint map[string]any
	InitialState      map[string]node.Result
	Logger            *logger.Logger
}

// completion is what a finished node task reports back.
type completion struct {
	nodeID string
	result node.Result
	skip   bool
	failed bool
	errMsg string
}

// Executor runs one pass over a filtered graph. It is not shared
// across runs; shared maps are touched only from the harvest loop.
type Executor struct {
	threadID    string
	nodes       []graph.Node
	edges       []graph.Edge
	nodeMap     map[string]graph.Node
	status      map[string]string
	inboxes     map[string]map[string]node.Delivery
	results     map[string]node.Result
	errs        []NodeError
	initial     map[string]node.Result
	registry    *node.Registry
	store       RunStore
	emit        node.EmitFunc
	secrets     map[string]string
	fingerprint map[string]any
	cond        *condition.Evaluator
	log         *logger.Logger
	completions chan completion
	active      int
}

// New builds an executor for a graph, filtering configuration-only
// nodes and edges before any state is initialized.
func New(g graph.Graph, opts Options) *Executor {
	nodes, edges := g.FilterExecutable()

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	e := &Executor{
		threadID:    opts.ThreadID,
		nodes:       nodes,
		edges:       edges,
		nodeMap:     make(map[string]graph.Node, len(nodes)),
		status:      make(map[string]string, len(nodes)),
		inboxes:     make(map[string]map[string]node.Delivery, len(nodes)),
		results:     make(map[string]node.Result, len(nodes)),
		initial:     opts.InitialState,
		registry:    opts.Registry,
		store:       opts.Store,
		emit:        opts.Emit,
		secrets:     opts.Secrets,
		fingerprint: opts.SystemFingerprint,
		cond:        condition.NewEvaluator(),
		log:         log.WithThreadID(opts.ThreadID),
		completions: make(chan completion, len(nodes)+1),
	}

	for _, n := range nodes {
		e.nodeMap[n.ID] = n
		e.status[n.ID] = statePending
		e.inboxes[n.ID] = make(map[string]node.Delivery)
	}

	return e
}

// Execute runs the graph to quiescence and returns the outcome.
func (e *Executor) Execute(ctx context.Context) *Outcome {
	// Rehydrate previously completed nodes: they count as their single
	// execution and their saved results flow into child inboxes.
	for id, saved := range e.initial {
		n, known := e.nodeMap[id]
		if !known || e.isTrigger(n) {
			continue
		}
		e.status[id] = stateCompleted
		e.results[id] = saved
		e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": id, "status": events.StatusCompleted})
		for _, edge := range e.outgoing(id) {
			if _, known := e.nodeMap[edge.Target]; known {
				e.inboxes[edge.Target][id] = node.Deliver(saved)
			}
		}
	}

	// Seed trigger nodes.
	seeded := 0
	for _, n := range e.nodes {
		if e.isTrigger(n) && len(e.incoming(n.ID)) == 0 {
			e.status[n.ID] = stateRunning
			e.spawn(ctx, n)
			seeded++
		}
	}

	if seeded == 0 {
		e.errs = append(e.errs, NodeError{Error: "No valid start node found."})
		return e.outcome()
	}

	// Second-seed for recovery: children whose inboxes were filled by
	// rehydration and are already ready.
	for _, n := range e.nodes {
		if e.status[n.ID] == statePending && len(e.inboxes[n.ID]) > 0 && e.ready(n) {
			e.status[n.ID] = stateRunning
			e.spawn(ctx, n)
		}
	}

	// Harvest loop: first-completed wins.
	for e.active > 0 {
		select {
		case <-ctx.Done():
			return &Outcome{
				ThreadID: e.threadID,
				Status:   RunCancelled,
				Results:  e.results,
				Errors:   e.errs,
			}
		case c := <-e.completions:
			e.active--
			e.harvest(ctx, c)
		}
	}

	return e.outcome()
}

func (e *Executor) outcome() *Outcome {
	status := RunCompleted
	if len(e.errs) > 0 {
		status = RunFailed
	}
	return &Outcome{
		ThreadID: e.threadID,
		Status:   status,
		Results:  e.results,
		Errors:   e.errs,
	}
}

// harvest records a completion and pushes deliveries to children.
func (e *Executor) harvest(ctx context.Context, c completion) {
	switch {
	case c.skip:
		e.status[c.nodeID] = stateSkipped
	case c.failed:
		e.status[c.nodeID] = stateFailed
		e.results[c.nodeID] = c.result
		e.errs = append(e.errs, NodeError{NodeID: c.nodeID, Error: c.errMsg})
	default:
		e.status[c.nodeID] = stateCompleted
		e.results[c.nodeID] = c.result
	}

	for _, edge := range e.outgoing(c.nodeID) {
		target, known := e.nodeMap[edge.Target]
		if !known {
			continue
		}

		passes := e.edgePasses(edge, c)
		if passes {
			e.inboxes[edge.Target][c.nodeID] = node.Deliver(c.result)
		} else {
			e.inboxes[edge.Target][c.nodeID] = node.Skipped
		}

		if e.status[edge.Target] == statePending && e.ready(target) {
			e.status[edge.Target] = stateRunning
			e.spawn(ctx, target)
		}
	}
}

// edgePasses applies the behavior gate, then the optional CEL
// condition. A skipped source never passes.
func (e *Executor) edgePasses(edge graph.Edge, c completion) bool {
	if c.skip {
		return false
	}

	behavior := resolveBehavior(edge)
	status := c.result.Status()

	passes := false
	if status == node.StatusSuccess && behavior != behaviorFailure {
		passes = true
	}
	if status != node.StatusSuccess && behavior != behaviorConditional {
		passes = true
	}
	if !passes {
		return false
	}

	if expr := edge.Condition(); expr != "" {
		resultsCtx := make(map[string]any, len(e.results))
		for id, res := range e.results {
			resultsCtx[id] = map[string]any(res)
		}
		ok, err := e.cond.Evaluate(expr, map[string]any(c.result), resultsCtx)
		if err != nil {
			e.log.Warn("edge condition failed, delivering skip",
				"source", edge.Source, "target", edge.Target, "error", err)
			return false
		}
		return ok
	}

	return true
}

// resolveBehavior applies the priority: explicit label, then handle
// name heuristic, then conditional.
func resolveBehavior(edge graph.Edge) string {
	switch edge.Behavior() {
	case behaviorConditional:
		return behaviorConditional
	case behaviorFailure:
		return behaviorFailure
	case behaviorAlways, "force":
		return behaviorAlways
	}

	handle := strings.ToLower(edge.SourceHandle)
	if strings.Contains(handle, "fail") || strings.Contains(handle, "error") {
		return behaviorFailure
	}
	if strings.Contains(handle, "always") || strings.Contains(handle, "force") || strings.Contains(handle, "fallback") {
		return behaviorAlways
	}

	return behaviorConditional
}

// ready evaluates the target's wait strategy against its inbox.
// Callers ensure the node is still pending.
func (e *Executor) ready(n graph.Node) bool {
	inbox := e.inboxes[n.ID]
	indegree := len(e.incoming(n.ID))

	if e.waitStrategy(n) == node.WaitAny {
		// OR-merge: fire on any live delivery; if every parent skipped,
		// fire anyway so the node can skip itself cleanly.
		for _, d := range inbox {
			if !d.Skip {
				return true
			}
		}
		return len(inbox) == indegree
	}

	// AND-join: every incoming edge must have delivered, even SKIP.
	return len(inbox) == indegree
}

func (e *Executor) waitStrategy(n graph.Node) node.WaitStrategy {
	factory, err := e.registry.Get(n.Type)
	if err != nil {
		return node.WaitAll
	}
	return factory(n.Data).WaitStrategy()
}

// spawn launches a node task with a snapshot of its inbox.
func (e *Executor) spawn(ctx context.Context, n graph.Node) {
	inputs := make(map[string]node.Delivery, len(e.inboxes[n.ID]))
	for parent, d := range e.inboxes[n.ID] {
		inputs[parent] = d
	}
	resultsSnapshot := make(map[string]node.Result, len(e.results))
	for id, res := range e.results {
		resultsSnapshot[id] = res
	}

	e.active++
	go func() {
		e.completions <- e.runNode(ctx, n, inputs, resultsSnapshot)
	}()
}

// runNode is the execution wrapper: skip handling, instantiation,
// context assembly, result classification, events and the durable
// snapshot write.
func (e *Executor) runNode(ctx context.Context, n graph.Node, inputs map[string]node.Delivery, resultsSnapshot map[string]node.Result) completion {
	// Total skip: every delivered input is SKIP. Trigger nodes have an
	// empty inbox and always run.
	if len(inputs) > 0 && allSkipped(inputs) {
		e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": n.ID, "status": events.StatusSkipped})
		return completion{nodeID: n.ID, skip: true}
	}

	e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": n.ID, "status": events.StatusRunning})

	result, err := e.executeNode(ctx, n, inputs, resultsSnapshot)
	if err != nil {
		failure := node.Result{"status": node.StatusFailed, "error": err.Error()}
		e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": n.ID, "status": events.StatusFailed})
		e.emitEvent(events.TypeNodeLog, map[string]any{"nodeId": n.ID, "log": err.Error(), "type": "stderr"})
		e.snapshot(n.ID, stateFailed, failure)
		return completion{nodeID: n.ID, result: failure, failed: true, errMsg: err.Error()}
	}

	// A non-success result is a node failure: the run collects the
	// error while failure/always edges still see the result payload.
	if !result.Success() {
		e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": n.ID, "status": events.StatusFailed})
		e.snapshot(n.ID, stateFailed, result)
		return completion{nodeID: n.ID, result: result, failed: true, errMsg: failureMessage(result)}
	}

	e.emitEvent(events.TypeNodeStatus, map[string]any{"nodeId": n.ID, "status": events.StatusCompleted})
	e.snapshot(n.ID, stateCompleted, result)

	return completion{nodeID: n.ID, result: result}
}

// failureMessage extracts the most specific error text a failed result
// carries.
func failureMessage(result node.Result) string {
	for _, key := range []string{"error", "stderr", "stdout"} {
		if s, ok := result[key].(string); ok && s != "" {
			return s
		}
	}
	return "node finished with status " + result.Status()
}

// executeNode instantiates the node and runs it, converting panics
// into errors so a bad node body can never take down the run.
func (e *Executor) executeNode(ctx context.Context, n graph.Node, inputs map[string]node.Delivery, resultsSnapshot map[string]node.Result) (result node.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node panic: %v", r)
		}
	}()

	factory, err := e.registry.Get(n.Type)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["id"] = n.ID

	instance := factory(data)

	rc := &node.RuntimeContext{
		ThreadID:          e.threadID,
		Emit:              e.emit,
		SudoPassword:      e.secrets["sudo_password"],
		SystemFingerprint: e.fingerprint,
		Results:           resultsSnapshot,
	}

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["inputs"] = cleanInputs(inputs)

	result, err = instance.Execute(ctx, rc, payload)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("node returned no result")
	}
	return result, nil
}

// snapshot fires a best-effort durable write of the node result.
func (e *Executor) snapshot(nodeID, status string, result node.Result) {
	if e.store == nil || e.threadID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := e.store.SaveNodeResult(ctx, e.threadID, nodeID, status, jsonSafe(result)); err != nil {
			e.log.Warn("run store write failed", "node_id", nodeID, "error", err)
		}
	}()
}

func (e *Executor) emitEvent(eventType string, data map[string]any) {
	if e.emit != nil {
		e.emit(eventType, data)
	}
}

func (e *Executor) outgoing(nodeID string) []graph.Edge {
	var out []graph.Edge
	for _, edge := range e.edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}
	return out
}

func (e *Executor) incoming(nodeID string) []graph.Edge {
	var in []graph.Edge
	for _, edge := range e.edges {
		if edge.Target == nodeID {
			in = append(in, edge)
		}
	}
	return in
}

func (e *Executor) isTrigger(n graph.Node) bool {
	return graph.TriggerTypes[n.Type]
}

func allSkipped(inputs map[string]node.Delivery) bool {
	for _, d := range inputs {
		if !d.Skip {
			return false
		}
	}
	return true
}

// cleanInputs strips SKIP deliveries, leaving only live parent payloads.
func cleanInputs(inputs map[string]node.Delivery) map[string]any {
	clean := make(map[string]any)
	for parent, d := range inputs {
		if !d.Skip {
			clean[parent] = map[string]any(d.Payload)
		}
	}
	return clean
}

// jsonSafe renders a result for persistence, falling back to a string
// when the payload contains non-serializable values (tool callables).
func jsonSafe(result node.Result) any {
	if _, err := json.Marshal(result); err == nil {
		return map[string]any(result)
	}
	safe := make(map[string]any, len(result))
	for k, v := range result {
		if _, err := json.Marshal(v); err == nil {
			safe[k] = v
		} else {
			safe[k] = fmt.Sprintf("%v", v)
		}
	}
	return safe
}
