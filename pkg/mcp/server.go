package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/guildai/guildflow/internal/engine"
	"github.com/guildai/guildflow/internal/graph"
	"github.com/guildai/guildflow/internal/store"
	"github.com/guildai/guildflow/internal/templates"
)

// GuildflowServerDeps holds the dependencies for creating a GuildflowServer.
type GuildflowServerDeps struct {
	Graphs    *graph.Manager
	Engine    *engine.Engine
	Templates *templates.Registry
	Archive   store.Archive
	Logger    *slog.Logger
}

// GuildflowServer wraps an MCP server with guildflow-specific tool handlers.
type GuildflowServer struct {
	graphs    *graph.Manager
	engine    *engine.Engine
	templates *templates.Registry
	archive   store.Archive
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewGuildflowServer creates a GuildflowServer with all 5 tools registered.
func NewGuildflowServer(deps GuildflowServerDeps) *GuildflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &GuildflowServer{
		graphs:    deps.Graphs,
		engine:    deps.Engine,
		templates: deps.Templates,
		archive:   deps.Archive,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"guildflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Guildflow is a graph-based workflow orchestration engine. Use guildflow.workflow to build and inspect workflow graphs, guildflow.execute to start a run, guildflow.control to pause/resume/cancel it, guildflow.status to follow progress, and guildflow.query to list executions, templates, or archived history."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *GuildflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *GuildflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *GuildflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: workflowTool(), Handler: s.handleWorkflow},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: controlTool(), Handler: s.handleControl},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func workflowTool() mcp.Tool {
	return mcp.NewTool("guildflow.workflow",
		mcp.WithDescription("Create, inspect, and mutate workflow graphs"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("create", "get", "list", "delete", "set_status",
				"add_node", "add_from_template", "remove_node",
				"add_connection", "remove_connection",
				"validate", "stats", "duplicate", "export", "import"),
			mcp.Description("Graph operation to perform"),
		),
		mcp.WithString("workflow_id", mcp.Description("Target workflow ID (required for everything but create/list/import)")),
		mcp.WithString("name", mcp.Description("Workflow or node name")),
		mcp.WithString("description", mcp.Description("Workflow description (create)")),
		mcp.WithString("status", mcp.Description("New workflow status (set_status): draft, active, or archived")),
		mcp.WithObject("node", mcp.Description("Node definition (add_node): kind, name, description, config, position")),
		mcp.WithString("node_id", mcp.Description("Target node ID (remove_node)")),
		mcp.WithString("template_id", mcp.Description("Template to instantiate (add_from_template)")),
		mcp.WithObject("overrides", mcp.Description("Config overrides for the instantiated template node")),
		mcp.WithObject("connection", mcp.Description("Connection definition (add_connection): source_node_id, target_node_id, ports, condition")),
		mcp.WithString("connection_id", mcp.Description("Target connection ID (remove_connection)")),
		mcp.WithObject("document", mcp.Description("Export document (import)")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("guildflow.execute",
		mcp.WithDescription("Validate a workflow and start an execution; returns the execution ID immediately"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow to execute")),
		mcp.WithObject("inputs", mcp.Description("Global input values for the run")),
	)
}

func controlTool() mcp.Tool {
	return mcp.NewTool("guildflow.control",
		mcp.WithDescription("Pause, resume, or cancel a running execution"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("Target execution ID")),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("pause", "resume", "cancel"),
			mcp.Description("Lifecycle operation"),
		),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("guildflow.status",
		mcp.WithDescription("Get an execution snapshot with progress, optionally waiting for completion"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("Target execution ID")),
		mcp.WithString("wait", mcp.Description("Block up to this duration (e.g. \"30s\") for a terminal status")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("guildflow.query",
		mcp.WithDescription("Query workflows, executions, run events, templates, or archived history"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("workflows", "executions", "events", "templates", "history"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (workflow_id, execution_id, status, category, limit)")),
	)
}
