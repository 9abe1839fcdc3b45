package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/common/repository"
	"github.com/flowx-dev/flowx/engine/events"
	"github.com/flowx-dev/flowx/engine/graph"
	"github.com/flowx-dev/flowx/engine/node"
	"github.com/flowx-dev/flowx/engine/validate"
)

// ExecutionHandler serves run admission, cancellation and resume.
type ExecutionHandler struct {
	c *container.Container
}

// NewExecutionHandler creates an execution handler.
func NewExecutionHandler(c *container.Container) *ExecutionHandler {
	return &ExecutionHandler{c: c}
}

// executeRequest is the run admission body: the graph plus optional
// credentials.
type executeRequest struct {
	graph.Graph
	SudoPassword string `json:"sudo_password,omitempty"`
}

// runResponse is the terminal run report.
type runResponse struct {
	ThreadID string                 `json:"thread_id"`
	Status   string                 `json:"status"`
	Logs     []events.Event         `json:"logs"`
	Results  map[string]node.Result `json:"results"`
	Errors   []executorError        `json:"errors"`
}

type executorError struct {
	NodeID string `json:"nodeId,omitempty"`
	Error  string `json:"error"`
}

// Validate runs pre-flight validation without executing.
// POST /workflow/validate
func (h *ExecutionHandler) Validate(c echo.Context) error {
	var g graph.Graph
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid graph payload")
	}

	report := validate.Graph(g, h.c.Registry)
	return c.JSON(http.StatusOK, report)
}

// Execute validates strictly, runs the graph to completion and returns
// the terminal report.
// POST /api/v1/workflow/execute
func (h *ExecutionHandler) Execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid graph payload")
	}

	report := validate.Graph(req.Graph, h.c.Registry)
	if !report.Valid {
		return c.JSON(http.StatusBadRequest, report)
	}

	secrets := make(map[string]string, len(req.Secrets)+1)
	for k, v := range req.Secrets {
		secrets[k] = v
	}
	if req.SudoPassword != "" {
		secrets["sudo_password"] = req.SudoPassword
	}

	threadID := uuid.NewString()
	return h.run(c, threadID, req.Graph, secrets, nil)
}

// Cancel signals cancellation for an active run. Idempotent.
// POST /api/v1/workflow/cancel/:thread_id
func (h *ExecutionHandler) Cancel(c echo.Context) error {
	status := "ignored"
	if h.c.Runner.Cancel(c.Param("thread_id")) {
		status = "success"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

// resumeRequest identifies the stored workflow to resume against.
type resumeRequest struct {
	WorkflowID string            `json:"workflowId"`
	Secrets    map[string]string `json:"secrets,omitempty"`
}

// Resume rehydrates a crashed run from its completed-only snapshot and
// re-executes the remainder of the graph.
// POST /api/v1/workflow/resume/:thread_id
func (h *ExecutionHandler) Resume(c echo.Context) error {
	threadID := c.Param("thread_id")

	var req resumeRequest
	if err := c.Bind(&req); err != nil || req.WorkflowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflowId is required")
	}

	ctx := c.Request().Context()

	wf, err := h.c.Workflows.Get(ctx, req.WorkflowID)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	if err != nil {
		return err
	}

	g, err := graphFromDocument(wf)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	initial, err := h.c.Runs.LoadCompletedResults(ctx, threadID)
	if err != nil {
		return err
	}

	h.c.Hub.Emitter(threadID)(events.TypeNodeStatus, map[string]any{
		"nodeId": "system",
		"status": events.StatusResuming,
	})

	return h.run(c, threadID, g, req.Secrets, initial)
}

// run executes synchronously while capturing the run's log events.
func (h *ExecutionHandler) run(c echo.Context, threadID string, g graph.Graph, secrets map[string]string, initial map[string]node.Result) error {
	sub := h.c.Hub.Subscribe()
	done := make(chan struct{})
	var logs []events.Event
	go func() {
		defer close(done)
		for frame := range sub.Frames() {
			var ev events.Event
			if json.Unmarshal(frame, &ev) == nil && ev.ThreadID == threadID {
				logs = append(logs, ev)
			}
		}
	}()

	outcome := h.c.Runner.Execute(c.Request().Context(), threadID, g, secrets, initial)

	h.c.Hub.Unsubscribe(sub)
	<-done

	resp := runResponse{
		ThreadID: threadID,
		Status:   outcome.Status,
		Logs:     logs,
		Results:  outcome.Results,
		Errors:   make([]executorError, 0, len(outcome.Errors)),
	}
	for _, e := range outcome.Errors {
		resp.Errors = append(resp.Errors, executorError{NodeID: e.NodeID, Error: e.Error})
	}
	return c.JSON(http.StatusOK, resp)
}

// graphFromDocument decodes the stored {nodes, edges} document into a
// runnable graph.
func graphFromDocument(wf repository.Workflow) (graph.Graph, error) {
	raw, err := json.Marshal(wf.Data)
	if err != nil {
		return graph.Graph{}, errors.New("workflow data is not serializable")
	}
	var g graph.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return graph.Graph{}, errors.New("workflow data is not a valid graph")
	}
	g.ID = wf.ID
	g.Name = wf.Name
	return g, nil
}
