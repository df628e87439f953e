package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foodscan/matcher/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// MatchFoodTool is the name of the food matching tool
const MatchFoodTool = "match_food"

// Matcher is the matching use case exposed as an MCP tool
type Matcher interface {
	Match(ctx context.Context, query string, limit int, threshold float64) ([]domain.MatchResult, error)
}

// Defaults holds the argument defaults for match_food
type Defaults struct {
	Limit     int
	Threshold float64
}

// Handlers contains the handler functions for the MCP tools
type Handlers struct {
	matcher  Matcher
	defaults Defaults
}

// NewHandlers creates MCP tool handlers
func NewHandlers(matcher Matcher, defaults Defaults) *Handlers {
	if defaults.Limit <= 0 {
		defaults.Limit = 5
	}
	return &Handlers{matcher: matcher, defaults: defaults}
}

// RegisterTools registers the food matching tools with the server
func RegisterTools(server *mcpserver.MCPServer, handlers *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        MatchFoodTool,
		Description: "Match free-form food text (for example a dish name read from a photo or menu) to reference foods in the nutrition catalog. Returns the best matches with similarity scores and nutrient values.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Food text to match",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Maximum number of matches to return (default: %d)", handlers.defaults.Limit),
					"default":     handlers.defaults.Limit,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Minimum cosine similarity between 0 and 1 (default: %.2f)", handlers.defaults.Threshold),
					"default":     handlers.defaults.Threshold,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.MatchFood)
}

// MatchFood handles the match_food tool
func (h *Handlers) MatchFood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	limit := request.GetInt("limit", h.defaults.Limit)
	threshold := request.GetFloat("threshold", h.defaults.Threshold)

	matches, err := h.matcher.Match(ctx, query, limit, threshold)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return mcp.NewToolResultError(err.Error()), nil
		case errors.Is(err, domain.ErrNotReady):
			return mcp.NewToolResultError("food index is not loaded yet, run the indexer and reload"), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("match failed: %v", err)), nil
		}
	}

	if matches == nil {
		matches = []domain.MatchResult{}
	}
	responseJSON, err := json.MarshalIndent(domain.MatchResponse{Matches: matches}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}
