package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/murmur/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. MCP clients are local
// single-user processes, so all tools operate on the default user.
type MCPDeps struct {
	Store    *storage.Store
	Pipeline VoicePipeline
	Embedder QueryEmbedder
}

// NewMCPServer creates an MCP server with all capture and recall tools
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"murmur",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("murmur: voice and text capture with intent classification, notes recall, and user context."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture_text",
			mcp.WithDescription("Classify a text utterance as NOTE, REMINDER, or QUERY. Notes are persisted for later recall."),
			mcp.WithString("text", mcp.Description("The utterance to process"), mcp.Required()),
		),
		mcpCaptureText(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search stored notes and return the most relevant entries."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("set_context",
			mcp.WithDescription("Store a user context variable made available to the classifier (e.g. home_address)."),
			mcp.WithString("key", mcp.Description("Context variable name"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Optional human-readable description")),
		),
		mcpSetContext(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://context",
			"User Context",
			mcp.WithResourceDescription("All context variables for the current user as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceContext(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://recent",
			"Recent Notes",
			mcp.WithResourceDescription("Last 10 stored notes (truncated content)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpCaptureText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || text == "" {
			return mcpError("text is required"), nil
		}

		contextVars, err := deps.Store.AllContextValues(defaultUserID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading user context: %v", err)), nil
		}

		outcome, err := deps.Pipeline.ProcessText(ctx, defaultUserID, text, nil, contextVars)
		if err != nil {
			return mcpError(fmt.Sprintf("processing failed: %v", err)), nil
		}

		b, err := json.Marshal(outcome)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		vec := deps.Embedder.Embed(ctx, query)
		if len(vec) == 0 {
			return mcpError("recall failed: could not embed query"), nil
		}

		scored, err := deps.Store.SearchSimilar(defaultUserID, vec, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(scored) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]recallResult, len(scored))
		for i, s := range scored {
			results[i] = recallResult{
				ID:        s.ID,
				Content:   truncateRunes(s.Content, 500),
				Category:  s.Category,
				Score:     s.Score,
				CreatedAt: s.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		description := req.GetString("description", "")

		if err := deps.Store.SetContextValue(defaultUserID, key, value, description); err != nil {
			return mcpError(fmt.Sprintf("failed to set context: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpResourceContext(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		values, err := deps.Store.AllContextValues(defaultUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load context: %w", err)
		}

		b, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal context: %w", err)
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

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListEntries(defaultUserID, "NOTE", 10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent notes: %w", err)
		}

		type recentEntry struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Category  string `json:"category"`
			Content   string `json:"content"`
		}

		recent := make([]recentEntry, len(entries))
		for i, e := range entries {
			recent[i] = recentEntry{
				ID:        e.ID,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
				Category:  e.Category,
				Content:   truncateRunes(e.Content, 200),
			}
		}

		b, err := json.Marshal(recent)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recent notes: %w", err)
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

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
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
