package security

import (
	"testing"

	"github.com/archon-io/archon/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_EmptyGraph(t *testing.T) {
	review := Evaluate(graph.New())

	assert.Equal(t, 100, review.Score)
	assert.True(t, review.Passed)
	assert.Empty(t, review.Critical)
	assert.Empty(t, review.Warnings)
}

// Two unconfigured nodes with no edges: missing encryption on the table,
// no invocation path for the function, no tracing, no recovery.
func TestEvaluate_BareFunctionAndTable(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "fn-1", Kind: graph.KindFunction, Label: "Handler"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Orders"}))

	review := Evaluate(g)

	assert.LessOrEqual(t, review.Score, 50)
	assert.False(t, review.Passed)
	require.Len(t, review.Critical, 1)
	assert.Equal(t, "db-1", review.Critical[0].NodeID)
	assert.Contains(t, review.Critical[0].Issue, "encryption")
}

// Same two nodes, hardened and wired behind an authenticated API.
func TestEvaluate_HardenedArchitecturePasses(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{
		ID: "fn-1", Kind: graph.KindFunction, Label: "Handler",
		Config: map[string]any{"tracing": true},
	}))
	require.NoError(t, g.AddNode(graph.Node{
		ID: "db-1", Kind: graph.KindTable, Label: "Orders",
		Config: map[string]any{"encryption": true},
	}))
	require.NoError(t, g.AddNode(graph.Node{ID: "auth-1", Kind: graph.KindIdentity, Label: "User Auth"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "api-1", Kind: graph.KindAPIGateway, Label: "REST API"}))
	g.AddEdge(graph.Edge{Source: "fn-1", Target: "db-1"})
	g.AddEdge(graph.Edge{Source: "auth-1", Target: "api-1"})
	g.AddEdge(graph.Edge{Source: "api-1", Target: "fn-1"})

	review := Evaluate(g)

	assert.GreaterOrEqual(t, review.Score, 70)
	assert.True(t, review.Passed)
	assert.Empty(t, review.Critical)
}

func TestEvaluate_QueueWithoutDeadLetter(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "q-1", Kind: graph.KindQueue, Label: "Jobs"}))

	review := Evaluate(g)

	highs := []Finding{}
	for _, w := range review.Warnings {
		if w.Severity == SeverityHigh {
			highs = append(highs, w)
		}
	}
	require.Len(t, highs, 1)
	assert.Equal(t, "q-1", highs[0].NodeID)
	assert.Contains(t, highs[0].Fix, "dead-letter queue")
}

func TestEvaluate_APIWithoutIdentityEdge(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{
		ID: "api-1", Kind: graph.KindAPIGateway, Label: "Public API",
		Config: map[string]any{"access_logging": true},
	}))

	review := Evaluate(g)

	require.Len(t, review.Warnings, 1)
	assert.Equal(t, SeverityHigh, review.Warnings[0].Severity)
	assert.Contains(t, review.Warnings[0].Issue, "authentication")
}

func TestEvaluate_GateConsistency(t *testing.T) {
	graphs := []*graph.Graph{
		graph.New(),
		func() *graph.Graph {
			g := graph.New()
			_ = g.AddNode(graph.Node{ID: "s-1", Kind: graph.KindStorage, Label: "Files"})
			return g
		}(),
		func() *graph.Graph {
			g := graph.New()
			for _, kind := range graph.Kinds() {
				_ = g.AddNode(graph.Node{ID: g.GenerateID(kind), Kind: kind, Label: string(kind)})
			}
			return g
		}(),
	}

	for _, g := range graphs {
		review := Evaluate(g)
		want := review.Score >= PassScore &&
			len(review.Critical) == 0 &&
			review.HighCount() <= MaxHighFindings
		assert.Equal(t, want, review.Passed)
	}
}

// Enabling any control must never lower the score.
func TestEvaluate_ScoreMonotonicity(t *testing.T) {
	for kind, rules := range configRules {
		g := graph.New()
		require.NoError(t, g.AddNode(graph.Node{ID: "n-1", Kind: kind, Label: "Node"}))
		base := Evaluate(g).Score

		for _, rule := range rules {
			improved := g.Clone()
			improved.Nodes[0].Config = map[string]any{rule.Key: true}
			assert.GreaterOrEqual(t, Evaluate(improved).Score, base,
				"kind %s key %s", kind, rule.Key)
		}
	}
}

func TestEvaluate_ModeStringsCountAsEnabled(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{
		ID: "q-1", Kind: graph.KindQueue, Label: "Jobs",
		Config: map[string]any{"encryption": "KMS", "dead_letter_queue": true},
	}))

	review := Evaluate(g)
	assert.Equal(t, 100, review.Score)
	assert.Contains(t, review.CompliantServices, "q-1")
}

func TestEvaluate_ScoreClampedAtZero(t *testing.T) {
	g := graph.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, g.AddNode(graph.Node{
			ID: g.GenerateID(graph.KindStorage), Kind: graph.KindStorage, Label: "Bucket",
		}))
	}
	review := Evaluate(g)
	assert.Equal(t, 0, review.Score)
	assert.False(t, review.Passed)
}

func TestKindTablesExhaustive(t *testing.T) {
	for _, kind := range graph.Kinds() {
		_, ok := configRules[kind]
		assert.True(t, ok, "no rule entry for kind %s", kind)
		assert.NotEmpty(t, serviceNames[kind], "no service name for kind %s", kind)
	}
}

func TestAutofix_EnablesMissingControls(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "s-1", Kind: graph.KindStorage, Label: "Files"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "q-1", Kind: graph.KindQueue, Label: "Jobs"}))

	before := Evaluate(g)
	fixed, changes := Autofix(g, &before)

	assert.NotEmpty(t, changes)
	assert.Nil(t, g.Nodes[0].Config, "input graph untouched")

	after := Evaluate(fixed)
	assert.Greater(t, after.Score, before.Score)
	assert.Empty(t, after.Critical)
}

func TestAutofix_SkipsGraphLevelFindings(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{
		ID: "api-1", Kind: graph.KindAPIGateway, Label: "API",
		Config: map[string]any{"access_logging": true},
	}))

	review := Evaluate(g)
	fixed, changes := Autofix(g, &review)

	assert.Empty(t, changes, "missing auth edge is not flag-fixable")
	assert.False(t, Evaluate(fixed).Passed == true && review.Passed == false)
}
