// Package mcp exposes the reasoning tools over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pensiv/pensiv/internal/tools"
)

// Server wraps the MCP SDK server and the reasoning tool handlers.
type Server struct {
	mcpServer *mcp.Server
	reasoning *tools.Reasoning
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Reasoning *tools.Reasoning
}

// NewServer creates an MCP server with the reasoning tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Reasoning == nil {
		return nil, fmt.Errorf("reasoning handlers are required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		reasoning: cfg.Reasoning,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerThink(); err != nil {
		return fmt.Errorf("failed to register %s: %w", tools.SequentialThinkName, err)
	}
	if err := s.registerReview(); err != nil {
		return fmt.Errorf("failed to register %s: %w", tools.SequentialReviewName, err)
	}
	return nil
}

func (s *Server) registerThink() error {
	inputSchema, err := jsonschema.For[tools.ThinkInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.SequentialThinkName,
		Description: "Record one step of sequential reasoning in a session-scoped chain. " +
			"Operations: 'append' adds a thought, 'revise' rewrites the thought at index " +
			"branch_from, 'branch' forks an alternative line from index branch_from. " +
			"Near-duplicate appends are merged into the previous thought. " +
			"Returns the updated chain as a numbered transcript.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in tools.ThinkInput) (*mcp.CallToolResult, any, error) {
		result, err := s.reasoning.Think(&ai.ToolContext{Context: ctx}, in)
		if err != nil {
			return nil, nil, fmt.Errorf("system error: %w", err)
		}
		return toCallToolResult(result, "transcript"), nil, nil
	})

	return nil
}

func (s *Server) registerReview() error {
	inputSchema, err := jsonschema.For[tools.ReviewInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.SequentialReviewName,
		Description: "Review the recorded reasoning chain for a session, or clear it when " +
			"'clear' is true. Returns the numbered transcript, or a confirmation " +
			"message after clearing.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in tools.ReviewInput) (*mcp.CallToolResult, any, error) {
		result, err := s.reasoning.Review(&ai.ToolContext{Context: ctx}, in)
		if err != nil {
			return nil, nil, fmt.Errorf("system error: %w", err)
		}

		field := "transcript"
		if in.Clear {
			field = "message"
		}
		return toCallToolResult(result, field), nil, nil
	})

	return nil
}

// toCallToolResult builds the MCP response inline from a tool result.
// Tool-level failures become IsError text results so the model can
// correct and retry; the named data field carries the success text.
func toCallToolResult(result tools.Result, field string) *mcp.CallToolResult {
	if result.Status == tools.StatusError {
		text := result.Error.Message
		if text == "" {
			text = fmt.Sprintf("Error [%s]", result.Error.Code)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
			IsError: true,
		}
	}

	data, ok := result.Data.(map[string]any)
	if !ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "unexpected data format"}},
			IsError: true,
		}
	}

	text, _ := data[field].(string)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
