package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
)

// signalStub always returns the configured control signal.
type signalStub struct {
	data map[string]any
	runs *atomic.Int64
}

func (s *signalStub) Validate(data map[string]any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}

func (s *signalStub) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	s.runs.Add(1)
	sig, _ := s.data["signal"].(string)
	return node.Result{
		"status": node.StatusSuccess,
		"output": map[string]any{"signal": sig},
	}, nil
}

func (s *signalStub) ExecutionMode() node.ExecutionMode { return node.ExecutionMode{} }
func (s *signalStub) WaitStrategy() node.WaitStrategy   { return node.WaitAll }

func signalRegistry(t *testing.T, runs *atomic.Int64) *node.Registry {
	t.Helper()
	reg := node.NewRegistry()
	require.NoError(t, reg.Register("startNode", func(data map[string]any) node.Node {
		return &stubNode{data: data, wait: node.WaitAll}
	}))
	require.NoError(t, reg.Register("signalNode", func(data map[string]any) node.Node {
		return &signalStub{data: data, runs: runs}
	}))
	require.NoError(t, reg.Register("blockNode", func(data map[string]any) node.Node {
		return &stubNode{data: map[string]any{"block": true}, wait: node.WaitAll}
	}))
	return reg
}

func signalGraph(signal string) graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "agent", Type: "signalNode", Data: map[string]any{"signal": signal}},
		},
		Edges: []graph.Edge{{Source: "start", Target: "agent"}},
	}
}

func TestRestartSignalIsBounded(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(RunnerOptions{
		Registry:    signalRegistry(t, &runs),
		MaxRestarts: 3,
	})

	outcome := r.Execute(context.Background(), "t-restart", signalGraph(SignalRestart), nil, nil)

	assert.Equal(t, RunFailed, outcome.Status)
	require.NotEmpty(t, outcome.Errors)
	assert.Equal(t, "Restart Limit Reached", outcome.Errors[len(outcome.Errors)-1].Error)
	// Initial pass plus exactly MaxRestarts re-runs.
	assert.Equal(t, int64(4), runs.Load())
}

func TestStopSignalCarriesReason(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(RunnerOptions{
		Registry:    signalRegistry(t, &runs),
		MaxRestarts: 3,
	})

	outcome := r.Execute(context.Background(), "t-stop", signalGraph(SignalStop+":Disk is full"), nil, nil)

	assert.Equal(t, RunFailed, outcome.Status)
	require.NotEmpty(t, outcome.Errors)
	assert.Equal(t, "Disk is full", outcome.Errors[len(outcome.Errors)-1].Error)
	assert.Equal(t, int64(1), runs.Load(), "stop must not re-run")
}

func TestStopSignalDefaultReason(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(RunnerOptions{
		Registry:    signalRegistry(t, &runs),
		MaxRestarts: 3,
	})

	outcome := r.Execute(context.Background(), "t-stop-default", signalGraph(SignalStop), nil, nil)

	assert.Equal(t, RunFailed, outcome.Status)
	require.NotEmpty(t, outcome.Errors)
	assert.Equal(t, "Stopped by Agent", outcome.Errors[len(outcome.Errors)-1].Error)
}

func TestCancelActiveRun(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(RunnerOptions{
		Registry:    signalRegistry(t, &runs),
		MaxRestarts: 3,
	})

	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "start", Type: "startNode"},
			{ID: "slow", Type: "blockNode"},
		},
		Edges: []graph.Edge{{Source: "start", Target: "slow"}},
	}

	var outcome *Outcome
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcome = r.Execute(context.Background(), "t-cancel", g, nil, nil)
	}()

	// Wait for the run to register.
	require.Eventually(t, func() bool { return r.ActiveRuns() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, r.Cancel("t-cancel"))
	wg.Wait()

	assert.Equal(t, RunCancelled, outcome.Status)
	assert.Equal(t, 0, r.ActiveRuns())
	assert.False(t, r.Cancel("t-cancel"), "cancel after completion is ignored")
}

func TestCancelUnknownThreadIgnored(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(RunnerOptions{Registry: signalRegistry(t, &runs)})
	assert.False(t, r.Cancel("nope"))
}

func TestOutcomeSignalScan(t *testing.T) {
	o := &Outcome{Results: map[string]node.Result{
		"a": {"status": "success", "output": map[string]any{"data": "x"}},
		"b": {"status": "success", "output": map[string]any{"signal": SignalRestart}},
	}}
	assert.Equal(t, SignalRestart, o.Signal())

	o = &Outcome{Results: map[string]node.Result{
		"a": {"status": "success", "output": map[string]any{"signal": "not-a-signal"}},
	}}
	assert.Empty(t, o.Signal())
}

func TestOutcomeSignalStopWinsOverRestart(t *testing.T) {
	o := &Outcome{Results: map[string]node.Result{
		"a": {"status": "success", "output": map[string]any{"signal": SignalRestart}},
		"b": {"status": "success", "output": map[string]any{"signal": SignalStop + ":done"}},
	}}
	assert.Equal(t, SignalStop+":done", o.Signal())
}

func TestRunnerWithoutHubEmitsSafely(t *testing.T) {
	r := NewRunner(RunnerOptions{})
	emit := r.emitter("t-nohub")
	require.NotNil(t, emit)
	emit("node_status", map[string]any{"nodeId": "system"})
}
