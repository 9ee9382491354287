// Package mcp exposes the memory engine as MCP tools so that agent
// runtimes can search and mutate memories over a stdio transport.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the engine behind an MCP stdio server. The scope is fixed
// at startup: one server session serves exactly one caller scope, so a
// connected agent can never escape its own partition.
type Server struct {
	engine *memory.UseCase
	scope  model.Scope
}

// New creates an MCP server bound to the given engine and caller scope
func New(engine *memory.UseCase, scope model.Scope) (*Server, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return &Server{engine: engine, scope: scope}, nil
}

// Run serves MCP requests on stdin/stdout until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kioku",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_search",
		Description: "Search stored memories by semantic similarity, ranked by relevance, recency and confidence",
	}, s.search)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_add",
		Description: "Store a new memory record",
	}, s.add)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_update",
		Description: "Update the content or metadata of a memory record",
	}, s.update)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_delete",
		Description: "Delete a memory record (its audit history is retained)",
	}, s.delete)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_history",
		Description: "Show the full mutation history of a memory record",
	}, s.history)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server terminated")
	}
	return nil
}

type searchParams struct {
	Query string `json:"query" jsonschema:"Natural language query describing what to recall"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of memories to return"`
}

func (s *Server) search(ctx context.Context, req *mcp.CallToolRequest, params *searchParams) (*mcp.CallToolResult, any, error) {
	hits, err := s.engine.Search(ctx, memory.SearchInput{
		Scope: s.scope,
		Query: params.Query,
		Limit: params.Limit,
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(hits)
}

type addParams struct {
	Category string         `json:"category" jsonschema:"Memory category: factual, episodic, working or semantic"`
	Content  string         `json:"content" jsonschema:"The statement to remember"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Optional metadata such as topic, tags or confidence"`
}

func (s *Server) add(ctx context.Context, req *mcp.CallToolRequest, params *addParams) (*mcp.CallToolResult, any, error) {
	rec, err := s.engine.Add(ctx, memory.AddInput{
		Scope:    s.scope,
		Category: model.Category(params.Category),
		Content:  params.Content,
		Metadata: model.Metadata(params.Metadata),
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(rec)
}

type updateParams struct {
	ID       string         `json:"id" jsonschema:"ID of the memory record"`
	Version  int64          `json:"version" jsonschema:"The record version last read; a stale value is rejected"`
	Content  string         `json:"content,omitempty" jsonschema:"Replacement content, omit to keep"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Metadata keys to merge; null values remove a key"`
}

func (s *Server) update(ctx context.Context, req *mcp.CallToolRequest, params *updateParams) (*mcp.CallToolResult, any, error) {
	input := memory.UpdateInput{
		Metadata: model.Metadata(params.Metadata),
		Version:  params.Version,
	}
	if params.Content != "" {
		input.Content = &params.Content
	}

	rec, err := s.engine.Update(ctx, model.RecordID(params.ID), s.scope, input)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(rec)
}

type deleteParams struct {
	ID string `json:"id" jsonschema:"ID of the memory record"`
}

func (s *Server) delete(ctx context.Context, req *mcp.CallToolRequest, params *deleteParams) (*mcp.CallToolResult, any, error) {
	if err := s.engine.Delete(ctx, model.RecordID(params.ID), s.scope); err != nil {
		return nil, nil, err
	}
	return textResult("deleted")
}

type historyParams struct {
	ID string `json:"id" jsonschema:"ID of the memory record"`
}

func (s *Server) history(ctx context.Context, req *mcp.CallToolRequest, params *historyParams) (*mcp.CallToolResult, any, error) {
	entries, err := s.engine.History(ctx, model.RecordID(params.ID), s.scope)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(entries)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return textResult(string(raw))
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}
