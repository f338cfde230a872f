package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

func TestExportImport_RoundTrip(t *testing.T) {
	m := testManager(t)
	wf := buildWorkflow(t, m, schema.NodeKindInput, schema.NodeKindLogic, schema.NodeKindOutput)

	doc, err := m.Export(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ExportVersion, doc.Version)
	assert.Len(t, doc.Nodes, 3)
	assert.Len(t, doc.Connections, 2)

	imported, err := m.Import(doc)
	require.NoError(t, err)

	// Same topology, fresh ids, zero shared state.
	assert.NotEqual(t, wf.ID, imported.ID)
	assert.Len(t, imported.Nodes, 3)
	assert.Len(t, imported.Connections, 2)

	kinds := map[schema.NodeKind]int{}
	for id, n := range imported.Nodes {
		assert.NotContains(t, wf.Nodes, id, "node ids must be regenerated")
		kinds[n.Kind]++
	}
	assert.Equal(t, map[schema.NodeKind]int{
		schema.NodeKindInput:  1,
		schema.NodeKindLogic:  1,
		schema.NodeKindOutput: 1,
	}, kinds)

	for _, c := range imported.Connections {
		assert.Contains(t, imported.Nodes, c.SourceNodeID)
		assert.Contains(t, imported.Nodes, c.TargetNodeID)
	}
}

func TestImport_RemapsDependencies(t *testing.T) {
	m := testManager(t)
	wf := buildWorkflow(t, m, schema.NodeKindInput, schema.NodeKindOutput)

	doc, err := m.Export(wf.ID)
	require.NoError(t, err)
	node := doc.Nodes["b"]
	node.Dependencies = []string{"a", "ghost"}
	doc.Nodes["b"] = node

	imported, err := m.Import(doc)
	require.NoError(t, err)

	var deps []string
	for _, n := range imported.Nodes {
		if n.Name == "node-b" {
			deps = n.Dependencies
		}
	}
	// The known dependency is remapped onto the fresh id; the unknown one is dropped.
	require.Len(t, deps, 1)
	assert.Contains(t, imported.Nodes, deps[0])
}

func TestImport_RejectsMissingConnectionEndpoint(t *testing.T) {
	m := testManager(t)
	wf := buildWorkflow(t, m, schema.NodeKindInput, schema.NodeKindOutput)

	doc, err := m.Export(wf.ID)
	require.NoError(t, err)
	doc.Connections[0].TargetNodeID = "ghost"

	_, err = m.Import(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeValidation)
}

func TestImportJSON_ValidDocument(t *testing.T) {
	m := testManager(t)
	wf := buildWorkflow(t, m, schema.NodeKindInput, schema.NodeKindOutput)

	doc, err := m.Export(wf.ID)
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	imported, err := m.ImportJSON(data)
	require.NoError(t, err)
	assert.Len(t, imported.Nodes, 2)
}

func TestImportJSON_SchemaViolations(t *testing.T) {
	m := testManager(t)

	t.Run("not json", func(t *testing.T) {
		_, err := m.ImportJSON([]byte("not json at all"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), schema.ErrCodeValidation)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := m.ImportJSON([]byte(`{"nodes": {}, "connections": []}`))
		require.Error(t, err)
	})

	t.Run("unknown node kind", func(t *testing.T) {
		_, err := m.ImportJSON([]byte(`{
			"name": "bad",
			"nodes": {"n1": {"nodeId": "n1", "kind": "quantum", "name": "n1"}},
			"connections": []
		}`))
		require.Error(t, err)
	})
}

func TestDuplicate(t *testing.T) {
	m := testManager(t)
	wf := buildWorkflow(t, m, schema.NodeKindInput, schema.NodeKindLogic, schema.NodeKindOutput)

	copy1, err := m.Duplicate(wf.ID)
	require.NoError(t, err)

	assert.Equal(t, wf.Name+" (copy)", copy1.Name)
	assert.Equal(t, schema.WorkflowStatusDraft, copy1.Status)
	assert.NotEqual(t, wf.ID, copy1.ID)
	assert.Len(t, copy1.Nodes, len(wf.Nodes))
	assert.Len(t, copy1.Connections, len(wf.Connections))
	for id := range copy1.Nodes {
		assert.NotContains(t, wf.Nodes, id)
	}

	// Mutating the copy leaves the original untouched.
	for id := range copy1.Nodes {
		require.NoError(t, m.RemoveNode(copy1.ID, id))
		break
	}
	original, err := m.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Len(t, original.Nodes, 3)
}
