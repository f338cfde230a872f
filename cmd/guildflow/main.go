package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guildai/guildflow/internal/engine"
	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/internal/graph"
	"github.com/guildai/guildflow/internal/logging"
	"github.com/guildai/guildflow/internal/nodes"
	"github.com/guildai/guildflow/internal/scheduler"
	"github.com/guildai/guildflow/internal/store"
	"github.com/guildai/guildflow/internal/templates"
	"github.com/guildai/guildflow/pkg/mcp"
	"github.com/guildai/guildflow/pkg/schema"
)

const usage = `usage: guildflow <command> [flags]

commands:
  serve              start the MCP server on stdio
  run <file>         import a workflow document, execute it, print the result
  validate <file>    import a workflow document and print validation issues

flags:
  -db <uri>          libSQL database URI for the execution archive
                     (e.g. file:guildflow.db; empty = in-memory)
  -cleanup-age <d>   purge terminal executions older than this (default 24h)
  -log-level <l>     debug, info, warn, or error (default info)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet("guildflow", flag.ExitOnError)
	dbURI := flags.String("db", "", "libSQL database URI for the execution archive")
	cleanupAge := flags.Duration("cleanup-age", scheduler.DefaultMaxAge, "purge terminal executions older than this")
	logLevel := flags.String("log-level", "info", "log level")

	var file string
	rest := os.Args[2:]
	if command == "run" || command == "validate" {
		if len(rest) == 0 || len(rest[0]) == 0 || rest[0][0] == '-' {
			fmt.Fprintf(os.Stderr, "guildflow %s: workflow file required\n", command)
			os.Exit(2)
		}
		file = rest[0]
		rest = rest[1:]
	}
	_ = flags.Parse(rest)

	logger := newLogger(*logLevel)

	archive, err := openArchive(*dbURI)
	if err != nil {
		logger.Error("open archive", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	graphs := graph.NewManager(logger)
	registry := nodes.DefaultRegistry(nodes.Deps{
		Agent: echoAgentRunner{logger: logger},
		Skill: loggingSkillRunner{logger: logger},
		Query: expressions.NewQueryEngine(),
	})

	eng, err := engine.New(graphs, registry, archive, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		if err := serve(ctx, graphs, eng, archive, *cleanupAge, logger); err != nil {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	case "run":
		if err := runFile(ctx, graphs, eng, file, os.Stdout); err != nil {
			logger.Error("run", "error", err)
			os.Exit(1)
		}
	case "validate":
		if err := validateFile(graphs, file, os.Stdout); err != nil {
			logger.Error("validate", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, graphs *graph.Manager, eng *engine.Engine, archive store.Archive, cleanupAge time.Duration, logger *slog.Logger) error {
	janitor, err := scheduler.NewJanitor(eng, "", cleanupAge, logger)
	if err != nil {
		return err
	}
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	srv := mcp.NewGuildflowServer(mcp.GuildflowServerDeps{
		Graphs:    graphs,
		Engine:    eng,
		Templates: templates.DefaultRegistry(),
		Archive:   archive,
		Logger:    logger,
	})
	logger.Info("guildflow MCP server listening on stdio")
	return srv.Serve(ctx)
}

func runFile(ctx context.Context, graphs *graph.Manager, eng *engine.Engine, file string, out *os.File) error {
	wf, err := importFile(graphs, file)
	if err != nil {
		return err
	}

	executionID, err := eng.ExecuteWorkflow(ctx, wf.ID, nil)
	if err != nil {
		return err
	}

	status, err := eng.WaitForCompletion(ctx, executionID, 0)
	if err != nil {
		return err
	}
	return printJSON(out, status)
}

func validateFile(graphs *graph.Manager, file string, out *os.File) error {
	wf, err := importFile(graphs, file)
	if err != nil {
		return err
	}
	result, err := graphs.Validate(wf.ID)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

func importFile(graphs *graph.Manager, file string) (*schema.Workflow, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return graphs.ImportJSON(data)
}

func openArchive(dbURI string) (store.Archive, error) {
	if dbURI == "" {
		return store.NewMemoryArchive(), nil
	}
	archive, err := store.NewLibSQLArchive(dbURI)
	if err != nil {
		return nil, err
	}
	if err := archive.Migrate(context.Background()); err != nil {
		archive.Close()
		return nil, err
	}
	return archive, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(handler))
}

func printJSON(out *os.File, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
