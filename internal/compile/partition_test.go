package compile

import (
	"fmt"
	"testing"

	"github.com/archon-io/archon/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wideGraph builds a graph whose compiled spec count exceeds the default
// partition threshold, with grants that cross category boundaries.
func wideGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "auth-1", Kind: graph.KindIdentity, Label: "Auth"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "api-1", Kind: graph.KindAPIGateway, Label: "API"}))
	for i := 1; i <= 6; i++ {
		fnID := fmt.Sprintf("fn-%d", i)
		dbID := fmt.Sprintf("db-%d", i)
		require.NoError(t, g.AddNode(graph.Node{ID: fnID, Kind: graph.KindFunction, Label: "Service " + fmt.Sprint(i)}))
		require.NoError(t, g.AddNode(graph.Node{ID: dbID, Kind: graph.KindTable, Label: "Table " + fmt.Sprint(i)}))
		g.AddEdge(graph.Edge{Source: "api-1", Target: fnID})
		g.AddEdge(graph.Edge{Source: fnID, Target: dbID})
	}
	require.NoError(t, g.AddNode(graph.Node{ID: "q-1", Kind: graph.KindQueue, Label: "Jobs"}))
	g.AddEdge(graph.Edge{Source: "fn-1", Target: "q-1"})
	g.AddEdge(graph.Edge{Source: "auth-1", Target: "api-1"})
	return g
}

func TestPartition_BelowThresholdIsNoOp(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "fn-1", Kind: graph.KindFunction, Label: "Handler"}))

	groups := Partition(Compile(g), DefaultPartitionThreshold)
	assert.Nil(t, groups)
}

func TestPartition_GroupsByCategory(t *testing.T) {
	specs := Compile(wideGraph(t))
	require.Greater(t, len(specs), DefaultPartitionThreshold)

	groups := Partition(specs, DefaultPartitionThreshold)
	require.Len(t, groups, 3)

	byCat := map[Category]Group{}
	for _, grp := range groups {
		byCat[grp.Category] = grp
	}

	assert.Len(t, byCat[CategoryData].Specs, 6)
	assert.Len(t, byCat[CategoryCompute].Specs, 8, "functions plus queue and its DLQ")
	assert.Len(t, byCat[CategoryDelivery].Specs, 2)
}

// The primary correctness risk of partitioning: no permission
// relationship may be lost when grants cross group boundaries.
func TestPartition_PreservesCrossGroupRelations(t *testing.T) {
	specs := Compile(wideGraph(t))
	full := Relations(specs)

	groups := Partition(specs, DefaultPartitionThreshold)
	var partitioned []Relation
	for _, grp := range groups {
		partitioned = append(partitioned, Relations(grp.Specs)...)
	}

	assert.ElementsMatch(t, full, partitioned)
}

func TestPartition_KeepsRelativeOrderInGroups(t *testing.T) {
	specs := Compile(wideGraph(t))
	groups := Partition(specs, DefaultPartitionThreshold)

	pos := map[string]int{}
	for i, s := range specs {
		pos[s.Name] = i
	}
	for _, grp := range groups {
		last := -1
		for _, s := range grp.Specs {
			assert.Greater(t, pos[s.Name], last)
			last = pos[s.Name]
		}
	}
}

func TestGroupOf(t *testing.T) {
	specs := Compile(wideGraph(t))
	groups := Partition(specs, DefaultPartitionThreshold)

	cat, ok := GroupOf(groups, "jobs-dlq")
	require.True(t, ok)
	assert.Equal(t, CategoryCompute, cat)

	_, ok = GroupOf(groups, "missing")
	assert.False(t, ok)
}
