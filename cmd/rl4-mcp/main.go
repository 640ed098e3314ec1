// Command rl4-mcp exposes the engine's operations as MCP tools over stdio.
// It contains no engine logic of its own — it only marshals engine.Op* calls
// for an MCP client, the same thin-adapter role the teacher's own MCP server
// plays over its scan engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/soynido/rl4"
)

func main() {
	cfg := rl4.DefaultConfig()
	if v := os.Getenv("RL4_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("RL4_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	eng, err := rl4.New(cfg)
	if err != nil {
		slog.Error("rl4-mcp: starting engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	a := &adapter{engine: eng}
	srv := mcpserver.NewMCPServer(
		"rl4",
		"1.0.0",
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
	)
	a.registerTools(srv)

	if err := mcpserver.ServeStdio(srv); err != nil {
		slog.Error("rl4-mcp: serving stdio", "error", err)
		os.Exit(1)
	}
}

// adapter holds the engine reference every tool handler closes over.
type adapter struct {
	engine rl4.Engine
}

func (a *adapter) registerTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool("get_evidence",
			mcp.WithDescription("Render the hot-files/sessions dashboard"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleGetEvidence,
	)

	srv.AddTool(
		mcp.NewTool("get_timeline",
			mcp.WithDescription("Render the narrative journal, optionally scoped to a date range"),
			mcp.WithString("from", mcp.Description("inclusive start date (YYYY-MM-DD)")),
			mcp.WithString("to", mcp.Description("inclusive end date (YYYY-MM-DD)")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleGetTimeline,
	)

	srv.AddTool(
		mcp.NewTool("get_intent_graph",
			mcp.WithDescription("Dump the coupling graph, file chains, and hotspot summary"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleGetIntentGraph,
	)

	for _, kind := range []string{"context", "chats", "cli"} {
		srv.AddTool(searchTool(kind), a.handleSearch(kind))
	}

	srv.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a cited question over everything the engine has indexed"),
			mcp.WithString("query", mcp.Description("the question to ask"), mcp.Required()),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleSearch("ask"),
	)

	srv.AddTool(
		mcp.NewTool("suggest_edit",
			mcp.WithDescription("Fetch a file's content plus the lessons selected for editing it"),
			mcp.WithString("file_path", mcp.Required()),
			mcp.WithString("intent", mcp.Description("free-text description of the intended change")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleSuggestEdit,
	)

	srv.AddTool(
		mcp.NewTool("apply_edit",
			mcp.WithDescription("Write new content to a file and record a snapshot version"),
			mcp.WithString("file_path", mcp.Required()),
			mcp.WithString("content", mcp.Required()),
			mcp.WithString("description", mcp.Description("free-text description of the change")),
		),
		a.handleApplyEdit,
	)

	srv.AddTool(
		mcp.NewTool("run_command",
			mcp.WithDescription("Run a shell command in the workspace root and record it to CLI history"),
			mcp.WithString("command", mcp.Required()),
			mcp.WithNumber("timeout_ms", mcp.DefaultNumber(30000)),
		),
		a.handleRunCommand,
	)

	srv.AddTool(
		mcp.NewTool("list_workspaces",
			mcp.WithDescription("List known workspaces"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleListWorkspaces,
	)

	srv.AddTool(
		mcp.NewTool("set_workspace",
			mcp.WithDescription("Switch the active workspace"),
			mcp.WithString("workspace_id", mcp.Required()),
		),
		a.handleSetWorkspace,
	)

	srv.AddTool(
		mcp.NewTool("run_snapshot",
			mcp.WithDescription("Scan the workspace and record a snapshot version of every file"),
		),
		a.handleRunSnapshot,
	)

	srv.AddTool(
		mcp.NewTool("finalize_snapshot",
			mcp.WithDescription("Resolve pending interventions and persist the adapted CRE state"),
		),
		a.handleFinalizeSnapshot,
	)

	srv.AddTool(
		mcp.NewTool("guardrail",
			mcp.WithDescription("Check a query or response against the closed guardrail rules"),
			mcp.WithString("text", mcp.Required()),
			mcp.WithString("type", mcp.Enum("query", "response"), mcp.DefaultString("query")),
			mcp.WithString("file_path", mcp.Description("file path associated with a response check")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		a.handleGuardrail,
	)
}

func searchTool(kind string) mcp.Tool {
	desc := map[string]string{
		"context": "Hybrid search over code, chat, CLI, and dashboard chunks",
		"chats":   "Search only chat-transcript chunks",
		"cli":     "Search only CLI-history chunks",
	}[kind]
	return mcp.NewTool("search_"+kind,
		mcp.WithDescription(desc),
		mcp.WithString("query", mcp.Required()),
		mcp.WithString("tag", mcp.Description("filter by chunk tag")),
		mcp.WithString("file", mcp.Description("filter by file path substring")),
		mcp.WithString("from", mcp.Description("inclusive start date (YYYY-MM-DD)")),
		mcp.WithString("to", mcp.Description("inclusive end date (YYYY-MM-DD)")),
		mcp.WithNumber("limit", mcp.Description("result cap (defaults to the configured ranker limit)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (a *adapter) handleGetEvidence(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := a.engine.OpGetEvidence(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (a *adapter) handleGetTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := a.engine.OpGetTimeline(ctx, req.GetString("from", ""), req.GetString("to", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (a *adapter) handleGetIntentGraph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := a.engine.OpGetIntentGraph(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleSearch(kind string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("missing required argument: query"), nil
		}
		in := rl4.SearchInput{
			Query:    query,
			Tag:      req.GetString("tag", ""),
			File:     req.GetString("file", ""),
			DateFrom: req.GetString("from", ""),
			DateTo:   req.GetString("to", ""),
			Limit:    intArg(req, "limit", 0),
		}

		var out interface{}
		switch kind {
		case "context":
			in.Source = req.GetString("source", "")
			out, err = a.engine.OpSearchContext(ctx, in)
		case "chats":
			out, err = a.engine.OpSearchChats(ctx, in)
		case "cli":
			out, err = a.engine.OpSearchCLI(ctx, in)
		case "ask":
			out, err = a.engine.OpAsk(ctx, in)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(out)
	}
}

func (a *adapter) handleSuggestEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := req.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: file_path"), nil
	}
	out, err := a.engine.OpSuggestEdit(ctx, rl4.SuggestEditInput{
		FilePath: filePath,
		Intent:   req.GetString("intent", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleApplyEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := req.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: file_path"), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: content"), nil
	}
	out, err := a.engine.OpApplyEdit(ctx, rl4.ApplyEditInput{
		FilePath:    filePath,
		Content:     content,
		Description: req.GetString("description", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleRunCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: command"), nil
	}
	out, err := a.engine.OpRunCommand(ctx, rl4.RunCommandInput{
		Command:   command,
		TimeoutMs: intArg(req, "timeout_ms", 30000),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleListWorkspaces(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := a.engine.OpListWorkspaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleSetWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: workspace_id"), nil
	}
	if err := a.engine.OpSetWorkspace(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("workspace set to %s", id)), nil
}

func (a *adapter) handleRunSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := a.engine.OpRunSnapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (a *adapter) handleFinalizeSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.engine.OpFinalizeSnapshot(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("snapshot finalized"), nil
}

// intArg reads a JSON number argument as an int, the same float64-cast
// pattern the teacher's own MCP server uses for numeric arguments.
func intArg(req mcp.CallToolRequest, name string, def int) int {
	if v, ok := req.GetArguments()[name].(float64); ok {
		return int(v)
	}
	return def
}

func (a *adapter) handleGuardrail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: text"), nil
	}
	out, err := a.engine.OpGuardrail(ctx, rl4.GuardrailInput{
		Text:     text,
		Type:     req.GetString("type", "query"),
		FilePath: req.GetString("file_path", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("serializing response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
