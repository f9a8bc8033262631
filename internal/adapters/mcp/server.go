// Package mcpadapter exposes retrieval over the Model Context Protocol so
// agent runtimes can call the fusion pipeline as a tool.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
)

type Server struct {
	mcp       *server.MCPServer
	retrieval ports.RetrievalService
	reader    ports.MetricsReader
	logger    *slog.Logger
}

func NewServer(retrieval ports.RetrievalService, reader ports.MetricsReader, logger *slog.Logger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			"retrieval-core",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
		retrieval: retrieval,
		reader:    reader,
		logger:    logger,
	}

	s.mcp.AddTool(mcp.NewTool(
		"search",
		mcp.WithDescription("Run a hybrid retrieval query across all search backends and return fused, policy-checked results."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query text.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of fused results to return.")),
		mcp.WithString("channel_id", mcp.Description("Restrict results to a single channel.")),
		mcp.WithString("mode", mcp.Description("Policy mode override: filter, redact or audit_only.")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(
		"metrics_summary",
		mcp.WithDescription("Summarize retrieval latency, coverage and error rate over a recent window."),
		mcp.WithNumber("window_minutes", mcp.Description("Window size in minutes, defaults to 60.")),
	), s.handleMetricsSummary)

	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 0)

	pctx := domain.PolicyContext{RedactPII: true}
	if mode := req.GetString("mode", ""); mode != "" {
		pctx.Mode = domain.PolicyMode(mode)
		if !pctx.Mode.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown policy mode %q", mode)), nil
		}
	}
	if channel := req.GetString("channel_id", ""); channel != "" {
		pctx.AllowedChannels = []string{channel}
	}

	resp, err := s.retrieval.Search(ctx, domain.Query{Text: query, Limit: limit}, pctx)
	if err != nil {
		s.logger.Error("mcp_search_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal search response: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleMetricsSummary(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	window := req.GetInt("window_minutes", 60)
	if window <= 0 {
		return mcp.NewToolResultError("window_minutes must be positive"), nil
	}

	payload, err := json.Marshal(s.reader.Summary(window))
	if err != nil {
		return nil, fmt.Errorf("marshal metrics summary: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
