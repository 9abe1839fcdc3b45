package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
)

// riskBadges maps a generated command's risk level to its UI badge
// color.
var riskBadges = map[string]string{
	"low":    "green",
	"medium": "yellow",
	"high":   "red",
}

// generateBashTool is the strict function schema the model must fill.
var generateBashTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "generate_bash",
		Description: "Generate a single bash command for the user's request.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The bash command, ready to execute.",
				},
				"explanation": map[string]any{
					"type":        "string",
					"description": "One-sentence explanation of what the command does.",
				},
				"risk_level": map[string]any{
					"type": "string",
					"enum": []string{"low", "medium", "high"},
				},
			},
			"required": []string{"command", "explanation", "risk_level"},
		},
	},
}

// CommandGenHandler serves the command-generation plugin route.
type CommandGenHandler struct {
	c *container.Container
}

// NewCommandGenHandler creates a command generation handler.
func NewCommandGenHandler(c *container.Container) *CommandGenHandler {
	return &CommandGenHandler{c: c}
}

type commandGenRequest struct {
	Prompt string `json:"prompt"`
	Query  string `json:"query"`
}

type commandGenResponse struct {
	Type        string `json:"type"`
	Command     string `json:"command"`
	Explanation string `json:"explanation"`
	RiskLevel   string `json:"risk_level"`
	BadgeColor  string `json:"badge_color"`
}

// GenerateCommand turns a natural-language request into a bash command
// envelope for the editor. The primary model is tried first; a rate
// limit or transient failure falls through to the fallback model, and
// an upstream quota exhaustion maps to HTTP 429.
// POST /generate-command
func (h *CommandGenHandler) GenerateCommand(c echo.Context) error {
	if h.c.LLM == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no LLM API key configured")
	}

	var req commandGenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(req.Query)
	}
	if prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	cfg := h.c.Components.Config.LLM
	log := h.c.Components.Logger

	result, err := h.generate(c, cfg.Model, prompt)
	if err != nil {
		log.Warn("primary model failed, trying fallback",
			"model", cfg.Model, "fallback", cfg.FallbackModel, "error", err)
		result, err = h.generate(c, cfg.FallbackModel, prompt)
	}
	if err != nil {
		if isRateLimited(err) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "LLM quota exhausted, try again later")
		}
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("command generation failed: %v", err))
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CommandGenHandler) generate(c echo.Context, model, prompt string) (commandGenResponse, error) {
	fp := h.c.Fingerprint
	system := fmt.Sprintf(
		"You generate bash commands for a %s host (%s, package managers: %s). "+
			"Always respond by calling generate_bash exactly once.",
		fp.Distro, fp.Arch, strings.Join(fp.PackageManagers, ", "))

	resp, err := h.c.LLM.CreateChatCompletion(c.Request().Context(), openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Tools:      []openai.Tool{generateBashTool},
		ToolChoice: openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: "generate_bash"}},
	})
	if err != nil {
		return commandGenResponse{}, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return commandGenResponse{}, fmt.Errorf("model did not call generate_bash")
	}

	var args struct {
		Command     string `json:"command"`
		Explanation string `json:"explanation"`
		RiskLevel   string `json:"risk_level"`
	}
	raw := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return commandGenResponse{}, fmt.Errorf("malformed tool arguments: %w", err)
	}

	badge, ok := riskBadges[args.RiskLevel]
	if !ok {
		args.RiskLevel = "high"
		badge = riskBadges["high"]
	}

	return commandGenResponse{
		Type:        "command_block",
		Command:     args.Command,
		Explanation: args.Explanation,
		RiskLevel:   args.RiskLevel,
		BadgeColor:  badge,
	}, nil
}

// isRateLimited detects upstream 429s from the OpenAI-compatible API.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
