package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_RejectsDuplicateID(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "fn-1", Kind: KindFunction, Label: "Handler"}))
	err := g.AddNode(Node{ID: "fn-1", Kind: KindFunction, Label: "Other"})
	assert.Error(t, err)
	assert.Len(t, g.Nodes, 1)
}

func TestAddNode_RejectsUnknownKind(t *testing.T) {
	g := New()
	err := g.AddNode(Node{ID: "x-1", Kind: "relational-db", Label: "Orders"})
	assert.Error(t, err)
}

func TestAddEdge_DropsDanglingAndDuplicate(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "fn-1", Kind: KindFunction, Label: "Handler"}))
	require.NoError(t, g.AddNode(Node{ID: "db-1", Kind: KindTable, Label: "Orders"}))

	assert.True(t, g.AddEdge(Edge{Source: "fn-1", Target: "db-1"}))
	assert.False(t, g.AddEdge(Edge{Source: "fn-1", Target: "db-1"}), "duplicate pair")
	assert.False(t, g.AddEdge(Edge{Source: "fn-1", Target: "missing"}), "dangling target")
	assert.Len(t, g.Edges, 1)
}

func TestMerge_MatchesByKindAndNormalizedLabel(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{
		ID: "db-1", Kind: KindTable, Label: "Orders Table",
		Config: map[string]any{"point_in_time_recovery": true},
	}))

	delta := New()
	require.NoError(t, delta.AddNode(Node{
		ID: "proposed-1", Kind: KindTable, Label: "orders  table",
		Config: map[string]any{"encryption": true},
	}))

	merged, res := Merge(base, delta)
	require.Len(t, merged.Nodes, 1)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Added)

	n := merged.Nodes[0]
	assert.Equal(t, "db-1", n.ID)
	assert.Equal(t, true, n.Config["encryption"], "new key merged in")
	assert.Equal(t, true, n.Config["point_in_time_recovery"], "manual config preserved")
}

func TestMerge_NewKeysWin(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{
		ID: "q-1", Kind: KindQueue, Label: "Jobs",
		Config: map[string]any{"encryption": false},
	}))

	delta := New()
	require.NoError(t, delta.AddNode(Node{
		Kind: KindQueue, Label: "Jobs",
		Config: map[string]any{"encryption": true},
	}))

	merged, _ := Merge(base, delta)
	assert.Equal(t, true, merged.Nodes[0].Config["encryption"])
}

func TestMerge_GeneratesIDsForNewNodes(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{ID: "function-compute-1", Kind: KindFunction, Label: "A"}))

	delta := New()
	require.NoError(t, delta.AddNode(Node{Kind: KindFunction, Label: "B"}))
	require.NoError(t, delta.AddNode(Node{ID: "function-compute-1", Kind: KindFunction, Label: "C"}))

	merged, res := Merge(base, delta)
	assert.Equal(t, 2, res.Added)

	_, ok := merged.NodeByID("function-compute-2")
	assert.True(t, ok, "empty proposed ID gets the next free counter")
	_, ok = merged.NodeByID("function-compute-3")
	assert.True(t, ok, "colliding proposed ID is regenerated")
}

func TestMerge_RewiresDeltaEdgesOntoMatchedNodes(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{ID: "fn-1", Kind: KindFunction, Label: "Handler"}))

	delta := New()
	require.NoError(t, delta.AddNode(Node{ID: "tmp-1", Kind: KindFunction, Label: "handler"}))
	require.NoError(t, delta.AddNode(Node{ID: "tmp-2", Kind: KindTable, Label: "Orders"}))
	delta.Edges = append(delta.Edges, Edge{Source: "tmp-1", Target: "tmp-2"})

	merged, res := Merge(base, delta)
	require.Len(t, merged.Nodes, 2)
	assert.Equal(t, 1, res.EdgesAdded)
	assert.True(t, merged.HasEdge("fn-1", "nosql-table-1"))

	_, kept := merged.NodeByID("tmp-2")
	assert.False(t, kept, "inserted nodes get generated identifiers")
}

func TestMerge_Idempotent(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{ID: "api-1", Kind: KindAPIGateway, Label: "API"}))

	delta := New()
	require.NoError(t, delta.AddNode(Node{Kind: KindFunction, Label: "Handler"}))
	require.NoError(t, delta.AddNode(Node{Kind: KindTable, Label: "Orders"}))
	delta.Edges = append(delta.Edges,
		Edge{Source: delta.Nodes[0].ID, Target: delta.Nodes[1].ID},
	)

	once, _ := Merge(base, delta)
	twice, res := Merge(once, delta)

	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.EdgesAdded)
	assert.Equal(t, len(once.Nodes), len(twice.Nodes))
	assert.Equal(t, len(once.Edges), len(twice.Edges))
}

func TestMerge_DropsDanglingDeltaEdges(t *testing.T) {
	base := New()
	delta := New()
	require.NoError(t, delta.AddNode(Node{ID: "fn-1", Kind: KindFunction, Label: "Handler"}))
	delta.Edges = append(delta.Edges, Edge{Source: "fn-1", Target: "ghost-1"})

	merged, res := Merge(base, delta)
	assert.Empty(t, merged.Edges)
	require.Len(t, res.DroppedEdges, 1)
	assert.Equal(t, "ghost-1", res.DroppedEdges[0].Target)
}

func TestMerge_DropsUnknownKindNodes(t *testing.T) {
	base := New()
	delta := &Graph{Nodes: []Node{{ID: "x-1", Kind: "mainframe", Label: "Legacy"}}}

	merged, res := Merge(base, delta)
	assert.Empty(t, merged.Nodes)
	assert.Len(t, res.DroppedNodes, 1)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := New()
	require.NoError(t, base.AddNode(Node{ID: "s-1", Kind: KindStorage, Label: "Files", Config: map[string]any{}}))
	delta := New()
	require.NoError(t, delta.AddNode(Node{Kind: KindStorage, Label: "Files", Config: map[string]any{"versioning": true}}))

	_, _ = Merge(base, delta)
	assert.NotContains(t, base.Nodes[0].Config, "versioning")
}

func TestTransport_RoundTrip(t *testing.T) {
	raw := `{"nodes":[{"id":"auth-1","kind":"identity","label":"User Auth","config":{"multi_factor":true}},{"id":"api-1","kind":"api-gateway","label":"REST API"}],"edges":[{"source":"auth-1","target":"api-1"}]}`

	var g Graph
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	require.NoError(t, g.Validate())

	out, err := json.Marshal(&g)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestValidate_CatchesDanglingEdge(t *testing.T) {
	g := &Graph{
		Nodes: []Node{{ID: "a", Kind: KindQueue, Label: "Q"}},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}
	assert.Error(t, g.Validate())
}

func TestGenerateID_SkipsTakenCounters(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(Node{ID: "queue-1", Kind: KindQueue, Label: "A"}))
	require.NoError(t, g.AddNode(Node{ID: "queue-2", Kind: KindQueue, Label: "B"}))
	assert.Equal(t, "queue-3", g.GenerateID(KindQueue))
}
