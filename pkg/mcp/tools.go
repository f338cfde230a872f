package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/guildai/guildflow/internal/store"
	"github.com/guildai/guildflow/pkg/schema"
)

// handleWorkflow dispatches graph operations.
func (s *GuildflowServer) handleWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}

	switch action {
	case "create":
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required for create"), nil
		}
		wf, err := s.graphs.CreateWorkflow(name, req.GetString("description", ""))
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(wf)

	case "list":
		return marshalResult(s.graphs.ListWorkflows())

	case "import":
		doc := mcp.ParseStringMap(req, "document", nil)
		if doc == nil {
			return mcp.NewToolResultError("document is required for import"), nil
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
		}
		wf, err := s.graphs.ImportJSON(data)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(wf)
	}

	// Everything below operates on one workflow.
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	switch action {
	case "get":
		wf, err := s.graphs.GetWorkflow(workflowID)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(wf)

	case "delete":
		if err := s.graphs.DeleteWorkflow(workflowID); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(map[string]any{"ok": true, "workflow_id": workflowID})

	case "set_status":
		status := req.GetString("status", "")
		if err := s.graphs.SetWorkflowStatus(workflowID, schema.WorkflowStatus(status)); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(map[string]any{"ok": true, "workflow_id": workflowID, "status": status})

	case "add_node":
		raw := mcp.ParseStringMap(req, "node", nil)
		if raw == nil {
			return mcp.NewToolResultError("node is required for add_node"), nil
		}
		node, err := decodeNode(raw)
		if err != nil {
			return errorResult(err), nil
		}
		if err := s.graphs.AddNode(workflowID, node); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(node)

	case "add_from_template":
		templateID := req.GetString("template_id", "")
		if templateID == "" {
			return mcp.NewToolResultError("template_id is required for add_from_template"), nil
		}
		node, err := s.templates.Instantiate(templateID, req.GetString("name", ""), mcp.ParseStringMap(req, "overrides", nil))
		if err != nil {
			return errorResult(err), nil
		}
		if err := s.graphs.AddNode(workflowID, node); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(node)

	case "remove_node":
		nodeID := req.GetString("node_id", "")
		if nodeID == "" {
			return mcp.NewToolResultError("node_id is required for remove_node"), nil
		}
		if err := s.graphs.RemoveNode(workflowID, nodeID); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(map[string]any{"ok": true, "workflow_id": workflowID, "node_id": nodeID})

	case "add_connection":
		raw := mcp.ParseStringMap(req, "connection", nil)
		if raw == nil {
			return mcp.NewToolResultError("connection is required for add_connection"), nil
		}
		conn, err := decodeConnection(raw)
		if err != nil {
			return errorResult(err), nil
		}
		if err := s.graphs.AddConnection(workflowID, conn); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(conn)

	case "remove_connection":
		connectionID := req.GetString("connection_id", "")
		if connectionID == "" {
			return mcp.NewToolResultError("connection_id is required for remove_connection"), nil
		}
		if err := s.graphs.RemoveConnection(workflowID, connectionID); err != nil {
			return errorResult(err), nil
		}
		return marshalResult(map[string]any{"ok": true, "workflow_id": workflowID, "connection_id": connectionID})

	case "validate":
		result, err := s.graphs.Validate(workflowID)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(result)

	case "stats":
		stats, err := s.graphs.Stats(workflowID)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(stats)

	case "duplicate":
		wf, err := s.graphs.Duplicate(workflowID)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(wf)

	case "export":
		doc, err := s.graphs.Export(workflowID)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(doc)

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}
}

// handleExecute validates and starts a run.
func (s *GuildflowServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)

	executionID, execErr := s.engine.ExecuteWorkflow(ctx, workflowID, inputs)
	if execErr != nil {
		return errorResult(execErr), nil
	}
	return marshalResult(map[string]any{
		"execution_id": executionID,
		"workflow_id":  workflowID,
	})
}

// handleControl pauses, resumes, or cancels an execution.
func (s *GuildflowServer) handleControl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}

	var ok bool
	var ctlErr error
	switch action {
	case "pause":
		ok, ctlErr = s.engine.Pause(ctx, executionID)
	case "resume":
		ok, ctlErr = s.engine.Resume(ctx, executionID)
	case "cancel":
		ok, ctlErr = s.engine.Cancel(ctx, executionID)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}
	if ctlErr != nil {
		return errorResult(ctlErr), nil
	}

	return marshalResult(map[string]any{
		"ok":           ok,
		"action":       action,
		"execution_id": executionID,
	})
}

// handleStatus returns an execution snapshot, optionally waiting for a
// terminal status first.
func (s *GuildflowServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}

	if wait := req.GetString("wait", ""); wait != "" {
		timeout, parseErr := time.ParseDuration(wait)
		if parseErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid wait duration %q", wait)), nil
		}
		status, waitErr := s.engine.WaitForCompletion(ctx, executionID, timeout)
		if waitErr != nil {
			return errorResult(waitErr), nil
		}
		return marshalResult(status)
	}

	status, statusErr := s.engine.GetStatus(executionID)
	if statusErr != nil {
		return errorResult(statusErr), nil
	}
	return marshalResult(status)
}

// handleQuery lists workflows, executions, run events, templates, or
// archived history.
func (s *GuildflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "workflows":
		return marshalResult(s.graphs.ListWorkflows())

	case "executions":
		return marshalResult(s.engine.ListExecutions(filterString(filter, "workflow_id")))

	case "events":
		executionID := filterString(filter, "execution_id")
		if executionID == "" {
			return mcp.NewToolResultError("filter.execution_id is required for events"), nil
		}
		events, evErr := s.archive.GetRunEvents(ctx, executionID)
		if evErr != nil {
			return errorResult(evErr), nil
		}
		return marshalResult(events)

	case "templates":
		return marshalResult(s.templates.List(filterString(filter, "category")))

	case "history":
		execs, listErr := s.archive.ListExecutions(ctx, store.ExecutionFilter{
			WorkflowID: filterString(filter, "workflow_id"),
			Status:     schema.ExecutionStatus(filterString(filter, "status")),
			Limit:      filterInt(filter, "limit"),
		})
		if listErr != nil {
			return errorResult(listErr), nil
		}
		return marshalResult(execs)

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource %q", resource)), nil
	}
}

// --- Helpers ---

// decodeNode turns a tool-call map into a Node, assigning an id when absent.
func decodeNode(raw map[string]any) (*schema.Node, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "node is not serializable").WithCause(err)
	}
	var node schema.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "node does not match the expected shape").WithCause(err)
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	return &node, nil
}

func decodeConnection(raw map[string]any) (*schema.Connection, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "connection is not serializable").WithCause(err)
	}
	var conn schema.Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "connection does not match the expected shape").WithCause(err)
	}
	return &conn, nil
}

func filterString(filter map[string]any, key string) string {
	if filter == nil {
		return ""
	}
	s, _ := filter[key].(string)
	return s
}

func filterInt(filter map[string]any, key string) int {
	if filter == nil {
		return 0
	}
	switch n := filter[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// errorResult renders an error as a machine-readable tool failure. Flow
// errors keep their code and details; everything else degrades to text.
func errorResult(err error) *mcp.CallToolResult {
	var flowErr *schema.FlowError
	if errors.As(err, &flowErr) {
		if data, marshalErr := json.Marshal(flowErr); marshalErr == nil {
			return mcp.NewToolResultError(string(data))
		}
	}
	return mcp.NewToolResultError(err.Error())
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
