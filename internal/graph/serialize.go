package graph

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/guildai/guildflow/pkg/schema"
)

// exportSchemaJSON is the JSON Schema for export documents, applied before
// an import is accepted. Embedded as a constant to avoid filesystem
// dependencies.
const exportSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://guildflow.dev/schemas/export.json",
  "type": "object",
  "required": ["name", "nodes", "connections"],
  "properties": {
    "workflowId": { "type": "string" },
    "name": { "type": "string", "minLength": 1 },
    "description": { "type": "string" },
    "version": { "type": "string" },
    "nodes": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/node" }
    },
    "connections": {
      "type": "array",
      "items": { "$ref": "#/$defs/connection" }
    },
    "metadata": {
      "type": "object",
      "properties": {
        "createdAt": { "type": "string" },
        "modifiedAt": { "type": "string" },
        "status": { "type": "string", "enum": ["draft", "active", "archived"] }
      }
    }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["nodeId", "kind", "name"],
      "properties": {
        "nodeId": { "type": "string", "minLength": 1 },
        "kind": {
          "type": "string",
          "enum": ["agent", "visual_skill", "logic", "input", "output"]
        },
        "name": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "position": {
          "type": "array",
          "items": { "type": "integer" },
          "minItems": 2,
          "maxItems": 2
        },
        "config": { "type": "object" },
        "dependencies": {
          "type": "array",
          "items": { "type": "string" }
        },
        "estimatedDuration": { "type": "integer", "minimum": 0 }
      }
    },
    "connection": {
      "type": "object",
      "required": ["sourceNodeId", "targetNodeId"],
      "properties": {
        "connectionId": { "type": "string" },
        "sourceNodeId": { "type": "string", "minLength": 1 },
        "targetNodeId": { "type": "string", "minLength": 1 },
        "sourcePort": { "type": "string" },
        "targetPort": { "type": "string" },
        "dataType": { "type": "string" },
        "condition": { "type": "string" }
      }
    }
  }
}`

// compiledExportSchema is compiled once at package init; the schema constant
// is maintained alongside the ExportDocument type.
var compiledExportSchema = mustCompileExportSchema()

func mustCompileExportSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(exportSchemaJSON))
	if err != nil {
		panic("graph: unmarshal export schema: " + err.Error())
	}
	if err := c.AddResource("https://guildflow.dev/schemas/export.json", doc); err != nil {
		panic("graph: add export schema resource: " + err.Error())
	}
	s, err := c.Compile("https://guildflow.dev/schemas/export.json")
	if err != nil {
		panic("graph: compile export schema: " + err.Error())
	}
	return s
}

// Export serializes a workflow into its stable round-trip document.
func (m *Manager) Export(workflowID string) (*schema.ExportDocument, error) {
	e, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	wf := e.wf
	doc := &schema.ExportDocument{
		WorkflowID:  wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Version:     schema.ExportVersion,
		Nodes:       make(map[string]schema.ExportNode, len(wf.Nodes)),
		Connections: make([]schema.ExportConnection, 0, len(wf.Connections)),
		Metadata: schema.ExportMetadata{
			CreatedAt:  wf.CreatedAt,
			ModifiedAt: wf.ModifiedAt,
			Status:     wf.Status,
		},
	}

	for id, n := range wf.Nodes {
		doc.Nodes[id] = schema.ExportNode{
			NodeID:            n.ID,
			Kind:              n.Kind,
			Name:              n.Name,
			Description:       n.Description,
			Position:          n.Position,
			Config:            deepCopyMap(n.Config),
			Dependencies:      append([]string(nil), n.Dependencies...),
			EstimatedDuration: n.EstimatedDuration,
		}
	}
	for _, c := range wf.Connections {
		doc.Connections = append(doc.Connections, schema.ExportConnection{
			ConnectionID: c.ID,
			SourceNodeID: c.SourceNodeID,
			TargetNodeID: c.TargetNodeID,
			SourcePort:   c.SourcePort,
			TargetPort:   c.TargetPort,
			DataType:     c.DataType,
			Condition:    c.Condition,
		})
	}

	return doc, nil
}

// Import registers a new workflow from an export document. Every node and
// connection receives a fresh ID; references inside connections and declared
// dependencies are remapped accordingly. The imported workflow shares no
// state with any existing one.
func (m *Manager) Import(doc *schema.ExportDocument) (*schema.Workflow, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "export document is nil")
	}
	if doc.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "export document has no name")
	}

	now := time.Now().UTC()
	wf := &schema.Workflow{
		ID:          uuid.NewString(),
		Name:        doc.Name,
		Description: doc.Description,
		Status:      schema.WorkflowStatusDraft,
		Nodes:       make(map[string]*schema.Node, len(doc.Nodes)),
		Connections: make([]*schema.Connection, 0, len(doc.Connections)),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if doc.Metadata.Status != "" {
		wf.Status = doc.Metadata.Status
	}

	// Deterministic remap order keeps imports reproducible in tests.
	oldIDs := make([]string, 0, len(doc.Nodes))
	for id := range doc.Nodes {
		oldIDs = append(oldIDs, id)
	}
	sort.Strings(oldIDs)

	idMap := make(map[string]string, len(doc.Nodes))
	for _, oldID := range oldIDs {
		en := doc.Nodes[oldID]
		if en.Name == "" || !schema.ValidNodeKinds[en.Kind] {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"export document node %s is invalid (name=%q kind=%q)", oldID, en.Name, en.Kind)
		}
		newID := uuid.NewString()
		idMap[oldID] = newID
		wf.Nodes[newID] = &schema.Node{
			ID:                newID,
			Kind:              en.Kind,
			Name:              en.Name,
			Description:       en.Description,
			Position:          en.Position,
			Config:            deepCopyMap(en.Config),
			Status:            schema.NodeStatusPending,
			EstimatedDuration: en.EstimatedDuration,
			CreatedAt:         now,
		}
	}

	// Remap declared dependencies; drop references to nodes the document
	// does not contain.
	for _, oldID := range oldIDs {
		en := doc.Nodes[oldID]
		if len(en.Dependencies) == 0 {
			continue
		}
		deps := make([]string, 0, len(en.Dependencies))
		for _, dep := range en.Dependencies {
			if mapped, ok := idMap[dep]; ok {
				deps = append(deps, mapped)
			}
		}
		wf.Nodes[idMap[oldID]].Dependencies = deps
	}

	for _, ec := range doc.Connections {
		src, srcOK := idMap[ec.SourceNodeID]
		tgt, tgtOK := idMap[ec.TargetNodeID]
		if !srcOK || !tgtOK {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"export document connection %s references missing node", ec.ConnectionID)
		}
		sourcePort := ec.SourcePort
		if sourcePort == "" {
			sourcePort = schema.DefaultSourcePort
		}
		targetPort := ec.TargetPort
		if targetPort == "" {
			targetPort = schema.DefaultTargetPort
		}
		wf.Connections = append(wf.Connections, &schema.Connection{
			ID:           uuid.NewString(),
			SourceNodeID: src,
			TargetNodeID: tgt,
			SourcePort:   sourcePort,
			TargetPort:   targetPort,
			DataType:     ec.DataType,
			Condition:    ec.Condition,
		})
	}

	m.mu.Lock()
	m.workflows[wf.ID] = &entry{wf: wf}
	m.mu.Unlock()

	m.logger.Info("workflow imported", "workflow_id", wf.ID, "name", wf.Name,
		"nodes", len(wf.Nodes), "connections", len(wf.Connections))
	return cloneWorkflow(wf), nil
}

// ImportJSON validates raw bytes against the export document schema and then
// imports them. Schema violations come back as machine-readable validation
// errors, never as a generic unmarshal failure.
func (m *Manager) ImportJSON(data []byte) (*schema.Workflow, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "export document is not valid JSON").WithCause(err)
	}
	if err := compiledExportSchema.Validate(doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "export document rejected: %s", err.Error()).WithCause(err)
	}

	var parsed schema.ExportDocument
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "export document does not match the expected shape").WithCause(err)
	}
	return m.Import(&parsed)
}

// Duplicate copies a workflow through an export/import round-trip, producing
// the same topology under entirely fresh IDs with zero shared state.
func (m *Manager) Duplicate(workflowID string) (*schema.Workflow, error) {
	doc, err := m.Export(workflowID)
	if err != nil {
		return nil, err
	}
	doc.Name = doc.Name + " (copy)"
	doc.Metadata.Status = schema.WorkflowStatusDraft
	return m.Import(doc)
}
