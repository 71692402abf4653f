package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/archon-io/archon/internal/advisor"
	"github.com/archon-io/archon/internal/graph"
	"github.com/archon-io/archon/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvisor struct {
	intent    advisor.Intent
	intentErr error
	delta     *graph.Graph
	deltaErr  error
	opinion   advisor.Opinion
	reviewErr error
	block     bool
}

func (s *stubAdvisor) ClassifyIntent(ctx context.Context, _ string) (advisor.Intent, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.intent, s.intentErr
}

func (s *stubAdvisor) ProposeDelta(ctx context.Context, _ string, _ *graph.Graph) (*graph.Graph, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.delta, s.deltaErr
}

func (s *stubAdvisor) ReviewOpinion(ctx context.Context, _ *graph.Graph) (advisor.Opinion, error) {
	if s.block {
		<-ctx.Done()
		return advisor.Opinion{}, ctx.Err()
	}
	return s.opinion, s.reviewErr
}

func TestClassifyKeywords(t *testing.T) {
	cases := map[string]advisor.Intent{
		"add file uploads to my app":        advisor.IntentNewFeature,
		"remove the queue":                  advisor.IntentModifyGraph,
		"generate the terraform please":     advisor.IntentGenerateCode,
		"what does this architecture do?":   advisor.IntentExplain,
		"bonjour":                           advisor.IntentExplain,
		"add everything and build the code": advisor.IntentGenerateCode,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyKeywords(msg), msg)
	}
}

func TestPropose_FileUploads(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "api-gateway-1", Kind: graph.KindAPIGateway, Label: "API"}))

	d := Propose("add file uploads", g)
	kinds := map[graph.Kind]bool{}
	for _, n := range d.Nodes {
		kinds[n.Kind] = true
	}
	assert.True(t, kinds[graph.KindStorage])
	assert.True(t, kinds[graph.KindFunction])

	merged, res := graph.Merge(g, d)
	assert.Equal(t, 2, res.Added)
	for _, n := range merged.Nodes {
		if n.Kind == graph.KindFunction {
			assert.True(t, merged.HasIncomingFrom(n.ID, graph.KindAPIGateway),
				"new handler is reachable from the existing API")
		}
	}
}

func TestPropose_UnrecognizedMessageIsEmpty(t *testing.T) {
	d := Propose("bonjour", graph.New())
	assert.Empty(t, d.Nodes)
	assert.Empty(t, d.Edges)
}

func TestRun_ExplainEmptyGraph(t *testing.T) {
	o := &Orchestrator{}
	st, err := o.Run(context.Background(), State{Message: "what is here?"})
	require.NoError(t, err)

	assert.Equal(t, advisor.IntentExplain, st.Intent)
	assert.Equal(t, []string{"interpret", "architect", "respond"}, st.Steps)
	assert.Contains(t, st.Reply, "empty")
}

func TestRun_NewFeatureGrowsGraph(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)

	o := &Orchestrator{}
	st, err := o.Run(context.Background(), State{
		Message: "add a background queue for jobs",
		Graph:   tpl.Graph,
	})
	require.NoError(t, err)

	assert.Equal(t, advisor.IntentNewFeature, st.Intent)
	assert.Contains(t, st.Steps, "architect")
	assert.Greater(t, st.Merge.Added, 0)
	assert.Contains(t, st.Reply, "added")

	hasQueue := false
	for _, n := range st.Graph.Nodes {
		if n.Kind == graph.KindQueue {
			hasQueue = true
		}
	}
	assert.True(t, hasQueue)
}

func TestRun_GenerateOnHardenedGraph(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)

	o := &Orchestrator{}
	st, err := o.Run(context.Background(), State{Message: "generate the code", Graph: tpl.Graph})
	require.NoError(t, err)

	assert.Equal(t, []string{"interpret", "architect", "security_review", "generate_code", "respond"}, st.Steps)
	require.NotNil(t, st.Review)
	assert.True(t, st.Review.Passed)
	assert.False(t, st.Blocked)
	assert.NotEmpty(t, st.Files)
	assert.Contains(t, st.Reply, "Generated")
}

func TestRun_AddAndGenerateReviewsGrownGraph(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)
	before := len(tpl.Graph.Nodes)

	o := &Orchestrator{}
	st, err := o.Run(context.Background(), State{
		Message: "add a background queue for jobs and generate the code",
		Graph:   tpl.Graph,
	})
	require.NoError(t, err)

	assert.Equal(t, advisor.IntentGenerateCode, st.Intent)
	assert.Contains(t, st.Steps, "architect")
	assert.Greater(t, st.Merge.Added, 0, "queue added before the review")
	assert.Greater(t, len(st.Graph.Nodes), before)
	require.NotNil(t, st.Review)
	assert.True(t, st.Review.Passed)
	assert.NotEmpty(t, st.Files)

	var rendered string
	for _, f := range st.Files {
		rendered += f.Content
	}
	assert.Contains(t, rendered, "sqs.Queue", "generated output built from the grown graph")
}

func TestRun_GenerateBlockedByReview(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "fn-1", Kind: graph.KindFunction, Label: "Handler"}))
	require.NoError(t, g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Data"}))
	g.AddEdge(graph.Edge{Source: "fn-1", Target: "db-1"})

	o := &Orchestrator{}
	st, err := o.Run(context.Background(), State{Message: "generate the code", Graph: g})
	require.NoError(t, err)

	assert.True(t, st.Blocked)
	assert.Contains(t, st.Steps, "blocked")
	assert.NotContains(t, st.Steps, "generate_code")
	assert.Empty(t, st.Files)
	assert.Contains(t, st.Reply, "blocked")
}

func TestRun_AdvisorOverridesIntent(t *testing.T) {
	o := &Orchestrator{Advisor: &stubAdvisor{intent: advisor.IntentExplain}}
	st, err := o.Run(context.Background(), State{Message: "add a queue"})
	require.NoError(t, err)
	assert.Equal(t, advisor.IntentExplain, st.Intent)
}

func TestRun_FailingAdvisorFallsBack(t *testing.T) {
	o := &Orchestrator{Advisor: &stubAdvisor{
		intentErr: assert.AnError,
		deltaErr:  assert.AnError,
		reviewErr: assert.AnError,
	}}
	st, err := o.Run(context.Background(), State{Message: "add a background queue"})
	require.NoError(t, err)

	assert.Equal(t, advisor.IntentNewFeature, st.Intent, "keyword classification takes over")
	assert.Greater(t, st.Merge.Added, 0, "deterministic architect takes over")
}

func TestRun_SlowAdvisorHitsTimeout(t *testing.T) {
	o := &Orchestrator{
		Advisor:        &stubAdvisor{block: true},
		AdvisorTimeout: 10 * time.Millisecond,
	}
	start := time.Now()
	st, err := o.Run(context.Background(), State{Message: "add a queue"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, advisor.IntentNewFeature, st.Intent)
}

func TestRun_DivergentAdvisorScoreDoesNotChangeVerdict(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)

	o := &Orchestrator{Advisor: &stubAdvisor{
		intent:  advisor.IntentGenerateCode,
		opinion: advisor.Opinion{Score: 5, Findings: []string{"everything is on fire"}},
	}}
	st, err := o.Run(context.Background(), State{Message: "generate", Graph: tpl.Graph})
	require.NoError(t, err)

	require.NotNil(t, st.Review)
	assert.True(t, st.Review.Passed, "rule engine verdict is authoritative")
	assert.False(t, st.Blocked)
}
