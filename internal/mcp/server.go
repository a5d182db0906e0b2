// Package mcp exposes the capture and search workflows to MCP clients
// over an SSE transport on its own listen address.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"synapse/internal/core/item"
	"synapse/internal/core/queue"
	"synapse/internal/core/save"
	"synapse/internal/core/search"
	"synapse/internal/logger"
)

// Saver captures content.
type Saver interface {
	Save(ctx context.Context, content, url, imageData string, async bool) (*save.Outcome, error)
}

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, items []item.Item, useAI bool) search.Result
}

// ItemLister supplies the search corpus.
type ItemLister interface {
	List(ctx context.Context, typeFilter string) ([]item.Item, error)
}

// JobTracker reports on queued jobs.
type JobTracker interface {
	GetStatus(id string) (queue.Job, bool)
	Stats() queue.Stats
}

// Deps holds the services the MCP tools delegate to.
type Deps struct {
	Save   Saver
	Search Searcher
	Items  ItemLister
	Jobs   JobTracker
}

// NewServer creates an MCP server with the capture tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"synapse",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Synapse second brain: capture content, search saved items, and track enrichment jobs."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("save_content",
			mcp.WithDescription("Capture text or a URL into the second brain. Classification runs asynchronously; the returned job id can be polled with job_status."),
			mcp.WithString("content", mcp.Description("The text content to save"), mcp.Required()),
			mcp.WithString("url", mcp.Description("Optional source URL")),
		),
		mcpSaveContent(deps),
	)

	s.AddTool(
		mcp.NewTool("search_items",
			mcp.WithDescription("Search saved items with natural language. Supports type, date, price, and author filters."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchItems(deps),
	)

	s.AddTool(
		mcp.NewTool("job_status",
			mcp.WithDescription("Check the status of an enrichment job, or the queue's aggregate stats when no id is given."),
			mcp.WithString("jobId", mcp.Description("Job id returned by save_content")),
		),
		mcpJobStatus(deps),
	)

	return s
}

// Serve runs the server over SSE on addr until ctx is done.
func Serve(ctx context.Context, s *server.MCPServer, addr string) error {
	log := logger.New("MCP")
	sse := server.NewSSEServer(s)

	errCh := make(chan error, 1)
	go func() {
		log.LogInfof("MCP server listening on %s", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case <-ctx.Done():
		return sse.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func mcpSaveContent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		url := req.GetString("url", "")

		out, err := deps.Save.Save(ctx, content, url, "", true)
		if err != nil {
			return mcpError(fmt.Sprintf("save failed: %v", err)), nil
		}
		b, err := json.Marshal(map[string]string{
			"itemId":        out.Item.ID,
			"classifyJobId": out.ClassifyJobID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchItems(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		items, err := deps.Items.List(ctx, "")
		if err != nil {
			return mcpError(fmt.Sprintf("loading items failed: %v", err)), nil
		}

		res := deps.Search.Search(ctx, query, items, true)
		results := res.Results
		if len(results) > limit {
			results = results[:limit]
		}

		type searchHit struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Title   string `json:"title"`
			Summary string `json:"summary,omitempty"`
			URL     string `json:"url,omitempty"`
		}
		hits := make([]searchHit, len(results))
		for i, it := range results {
			hits[i] = searchHit{
				ID:      it.ID,
				Type:    it.Type,
				Title:   it.Metadata.Title,
				Summary: it.Metadata.Summary,
				URL:     it.URL,
			}
		}
		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpJobStatus(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("jobId", "")
		if id == "" {
			b, err := json.Marshal(deps.Jobs.Stats())
			if err != nil {
				return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
			}
			return mcpText(string(b)), nil
		}

		j, ok := deps.Jobs.GetStatus(id)
		if !ok {
			return mcpError(fmt.Sprintf("job not found: %s", id)), nil
		}
		b, err := json.Marshal(j)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
