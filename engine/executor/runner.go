package executor

import (
	"context"
	"strings"
	"sync"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
)

// Control signals returned by agent tools.
const (
	SignalPrefix  = "__FLOWX_SIGNAL__"
	SignalRestart = SignalPrefix + "RESTART"
	SignalStop    = SignalPrefix + "STOP"
)

// systemNodeID tags synthetic run-level status events.
const systemNodeID = "system"

// Runner owns the active-run registry and wraps executor passes with
// bounded restart handling and cancellation.
type Runner struct {
	registry    *node.Registry
	store       RunStore
	hub         *events.Hub
	fingerprint map[string]any
	maxRestarts int
	log         *logger.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Registry          *node.Registry
	Store             RunStore
	Hub               *events.Hub
	SystemFingerprint map[string]any
	MaxRestarts       int
	Logger            *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(opts RunnerOptions) *Runner {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		registry:    opts.Registry,
		store:       opts.Store,
		hub:         opts.Hub,
		fingerprint: opts.SystemFingerprint,
		maxRestarts: opts.MaxRestarts,
		log:         log,
		active:      make(map[string]context.CancelFunc),
	}
}

// Execute runs a graph to completion under the given thread id,
// re-constructing the executor on restart signals up to the cap.
// InitialState applies to the first pass only.
func (r *Runner) Execute(ctx context.Context, threadID string, g graph.Graph, secrets map[string]string, initial map[string]node.Result) *Outcome {
	runCtx, cancel := context.WithCancel(ctx)
	r.register(threadID, cancel)
	defer r.unregister(threadID)

	emit := r.emitter(threadID)
	log := r.log.WithThreadID(threadID)

	restarts := 0
	for {
		exec := New(g, Options{
			ThreadID:          threadID,
			Registry:          r.registry,
			Store:             r.store,
			Emit:              emit,
			Secrets:           secrets,
			SystemFingerprint: r.fingerprint,
			InitialState:      initial,
			Logger:            r.log,
		})

		outcome := exec.Execute(runCtx)

		if runCtx.Err() != nil {
			log.Info("run cancelled")
			emit(events.TypeNodeStatus, map[string]any{"nodeId": systemNodeID, "status": events.StatusCancelled})
			outcome.Status = RunCancelled
			return outcome
		}

		switch sig := outcome.Signal(); {
		case sig == SignalRestart:
			if restarts >= r.maxRestarts {
				log.Warn("restart limit reached", "restarts", restarts)
				outcome.Status = RunFailed
				outcome.Errors = append(outcome.Errors, NodeError{Error: "Restart Limit Reached"})
				return outcome
			}
			restarts++
			log.Info("restart signal received, re-running workflow", "attempt", restarts)
			emit(events.TypeNodeStatus, map[string]any{"nodeId": systemNodeID, "status": events.StatusRestarting})
			initial = nil
			continue

		case strings.HasPrefix(sig, SignalStop):
			reason := "Stopped by Agent"
			if idx := strings.Index(sig, ":"); idx >= 0 && idx+1 < len(sig) {
				reason = sig[idx+1:]
			}
			log.Info("stop signal received", "reason", reason)
			outcome.Status = RunFailed
			outcome.Errors = append(outcome.Errors, NodeError{Error: reason})
			return outcome

		default:
			return outcome
		}
	}
}

// Cancel signals cancellation for a run. It reports whether a matching
// active run existed; repeated calls are idempotent.
func (r *Runner) Cancel(threadID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[threadID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// ActiveRuns returns the number of currently registered runs.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runner) register(threadID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[threadID] = cancel
}

func (r *Runner) unregister(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[threadID]; ok {
		cancel()
		delete(r.active, threadID)
	}
}

// emitter never returns nil: the cancellation and restart paths call
// it unguarded.
func (r *Runner) emitter(threadID string) node.EmitFunc {
	if r.hub == nil {
		return func(string, map[string]any) {}
	}
	return node.EmitFunc(r.hub.Emitter(threadID))
}
