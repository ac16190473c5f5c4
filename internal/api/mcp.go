package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rybalko/askfirm/internal/session"
)

// MCPDeps holds dependencies for the MCP server. Log is optional; without
// it the history tool and resource report unavailability.
type MCPDeps struct {
	Answerer Answerer
	Sessions *session.Store
	Log      InteractionReader
}

// NewMCPServer creates an MCP server exposing the question-answering
// pipeline and the interaction log as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"askfirm",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("askfirm — answers questions about companies' services, grounded in live web search results."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_company",
			mcp.WithDescription("Ask a question about a company's services. The answer is grounded in web search results retrieved for this question."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Optional session ID to continue a prior conversation")),
		),
		mcpAskCompany(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_interactions",
			mcp.WithDescription("List recent question-answering interactions from the local log."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 10)")),
		),
		mcpRecentInteractions(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"askfirm://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 answered questions (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAskCompany(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		sess := deps.Sessions.GetOrCreate(req.GetString("session_id", ""))
		reply := deps.Answerer.Answer(ctx, sess, question)

		b, err := json.Marshal(chatResponse{
			SessionID: sess.ID(),
			Reply:     reply.Text,
			Sources:   reply.Sources,
			Status:    reply.Status,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecentInteractions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Log == nil {
			return mcpError("interaction log not available"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		interactions, err := deps.Log.GetRecentInteractions(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("reading interactions failed: %v", err)), nil
		}

		views := make([]interactionView, len(interactions))
		for i, ix := range interactions {
			views[i] = viewInteraction(ix)
		}
		b, err := json.Marshal(views)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal interactions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Log == nil {
			return nil, fmt.Errorf("interaction log not available")
		}

		interactions, err := deps.Log.GetRecentInteractions(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Status    string `json:"status"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			query := ix.UserQuery
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Query:     query,
				Status:    ix.Status,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
