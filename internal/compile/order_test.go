package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-io/archon/internal/graph"
)

func position(t *testing.T, specs []*ResourceSpec, name string) int {
	t.Helper()
	for i, s := range specs {
		if s.Name == name {
			return i
		}
	}
	t.Fatalf("spec %q not found", name)
	return -1
}

func TestDeployOrder_DependenciesFirst(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "fn-1", Kind: graph.KindFunction, Label: "Handler"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Orders"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "q-1", Kind: graph.KindQueue, Label: "Jobs"}))
	require.True(t, g.AddEdge(graph.Edge{Source: "fn-1", Target: "db-1"}))
	require.True(t, g.AddEdge(graph.Edge{Source: "fn-1", Target: "q-1"}))

	ordered := DeployOrder(Compile(g))
	require.Len(t, ordered, 4)

	assert.Less(t, position(t, ordered, "orders"), position(t, ordered, "handler"))
	assert.Less(t, position(t, ordered, "jobs"), position(t, ordered, "handler"))
	assert.Less(t, position(t, ordered, "jobs-dlq"), position(t, ordered, "jobs"))
}

func TestDeployOrder_PreservesPeerOrder(t *testing.T) {
	specs := []*ResourceSpec{
		{Name: "a", Kind: graph.KindFunction},
		{Name: "b", Kind: graph.KindFunction},
		{Name: "c", Kind: graph.KindFunction},
	}
	ordered := DeployOrder(specs)
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].Name)
	assert.Equal(t, "b", ordered[1].Name)
	assert.Equal(t, "c", ordered[2].Name)
}

func TestDeployOrder_CycleStillEmitsEverySpec(t *testing.T) {
	specs := []*ResourceSpec{
		{Name: "a", Kind: graph.KindFunction, DependsOn: []string{"b"}},
		{Name: "b", Kind: graph.KindFunction, DependsOn: []string{"a"}},
	}
	ordered := DeployOrder(specs)
	require.Len(t, ordered, 2)
	assert.Equal(t, "a", ordered[0].Name)
	assert.Equal(t, "b", ordered[1].Name)
}

func TestDeployOrder_IgnoresUnknownDependency(t *testing.T) {
	specs := []*ResourceSpec{
		{Name: "a", Kind: graph.KindFunction, DependsOn: []string{"missing"}},
	}
	ordered := DeployOrder(specs)
	require.Len(t, ordered, 1)
	assert.Equal(t, "a", ordered[0].Name)
}
