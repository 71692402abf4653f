// Package workflow runs one chat turn through the fixed step graph:
// interpret, architect, security review, code generation, respond. Every
// step is a pure reducer over State, and every advisory call degrades to
// a deterministic implementation, so a turn always completes.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/archon-io/archon/internal/advisor"
	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/graph"
	"github.com/archon-io/archon/internal/logging"
	"github.com/archon-io/archon/internal/render"
	"github.com/archon-io/archon/internal/security"
)

// maxScoreDivergence is how far the advisor's score opinion may drift
// from the rule engine before it is worth flagging. The rule engine's
// result is authoritative either way.
const maxScoreDivergence = 10

// State carries one chat turn through the steps. Values in, values out;
// the orchestrator never mutates a caller's graph.
type State struct {
	Message string          `json:"message"`
	Intent  advisor.Intent  `json:"intent,omitempty"`
	Graph   *graph.Graph    `json:"graph"`
	Dialect render.Dialect  `json:"dialect,omitempty"`

	Merge   graph.MergeResult `json:"merge,omitempty"`
	Review  *security.Review  `json:"review,omitempty"`
	Files   []render.File     `json:"files,omitempty"`
	Blocked bool              `json:"blocked,omitempty"`
	Reply   string            `json:"reply,omitempty"`

	// Steps records the visited step names, in order.
	Steps []string `json:"steps,omitempty"`
}

// Orchestrator wires the steps together. A nil Advisor runs the fully
// deterministic pipeline.
type Orchestrator struct {
	Advisor            advisor.Advisor
	AdvisorTimeout     time.Duration
	PartitionThreshold int
}

// Run executes one turn. The only error source is code generation; the
// conversational steps always succeed.
//
// Interpret and architect run on every turn, so a message like "add a
// queue and generate the code" grows the graph before the review sees
// it. Only generate-code continues past architect into the gate.
func (o *Orchestrator) Run(ctx context.Context, st State) (State, error) {
	if st.Graph == nil {
		st.Graph = graph.New()
	}
	st = o.interpret(ctx, st)
	st = o.architect(ctx, st)

	if st.Intent == advisor.IntentGenerateCode {
		st = o.securityReview(ctx, st)
		if !st.Blocked {
			var err error
			st, err = o.generate(st)
			if err != nil {
				return st, err
			}
		}
	}
	return respond(st), nil
}

func (o *Orchestrator) interpret(ctx context.Context, st State) State {
	st.Steps = append(st.Steps, "interpret")
	st.Intent = ClassifyKeywords(st.Message)
	if o.Advisor == nil {
		return st
	}
	if intent, ok := advise(ctx, o.AdvisorTimeout, "interpret", func(ctx context.Context) (advisor.Intent, error) {
		return o.Advisor.ClassifyIntent(ctx, st.Message)
	}); ok {
		st.Intent = intent
	}
	return st
}

func (o *Orchestrator) architect(ctx context.Context, st State) State {
	st.Steps = append(st.Steps, "architect")
	deltaGraph := Propose(st.Message, st.Graph)
	if o.Advisor != nil {
		if proposed, ok := advise(ctx, o.AdvisorTimeout, "architect", func(ctx context.Context) (*graph.Graph, error) {
			return o.Advisor.ProposeDelta(ctx, st.Message, st.Graph)
		}); ok && proposed != nil && len(proposed.Nodes) > 0 {
			deltaGraph = proposed
		}
	}
	merged, result := graph.Merge(st.Graph, deltaGraph)
	st.Graph = merged
	st.Merge = result
	return st
}

func (o *Orchestrator) securityReview(ctx context.Context, st State) State {
	st.Steps = append(st.Steps, "security_review")
	review := security.Evaluate(st.Graph)
	st.Review = &review
	st.Blocked = !review.Passed
	if st.Blocked {
		st.Steps = append(st.Steps, "blocked")
	}

	if o.Advisor != nil {
		if opinion, ok := advise(ctx, o.AdvisorTimeout, "security_review", func(ctx context.Context) (advisor.Opinion, error) {
			return o.Advisor.ReviewOpinion(ctx, st.Graph)
		}); ok {
			diff := opinion.Score - review.Score
			if diff < 0 {
				diff = -diff
			}
			if diff > maxScoreDivergence {
				logging.Warn("advisor review diverges from rule engine",
					"advisor_score", opinion.Score,
					"engine_score", review.Score,
					"advisor_findings", strings.Join(opinion.Findings, "; "))
			}
		}
	}
	return st
}

func (o *Orchestrator) generate(st State) (State, error) {
	st.Steps = append(st.Steps, "generate_code")
	dialect := st.Dialect
	if dialect == "" {
		dialect = render.DialectCDK
	}
	renderer, err := render.Get(dialect)
	if err != nil {
		return st, err
	}

	specs := compile.Compile(st.Graph)
	threshold := o.PartitionThreshold
	if threshold <= 0 {
		threshold = compile.DefaultPartitionThreshold
	}
	if groups := compile.Partition(specs, threshold); groups != nil {
		st.Files = renderer.RenderPartitioned(groups)
	} else {
		st.Files = renderer.RenderStack(specs)
	}
	st.Dialect = dialect
	return st, nil
}

func respond(st State) State {
	st.Steps = append(st.Steps, "respond")
	switch {
	case st.Blocked:
		var b strings.Builder
		b.WriteString("Generation is blocked by the security review:\n")
		for _, f := range st.Review.Critical {
			fmt.Fprintf(&b, "- [critical] %s: %s (fix: %s)\n", f.NodeID, f.Issue, f.Fix)
		}
		for _, f := range st.Review.Warnings {
			if f.Severity == security.SeverityHigh {
				fmt.Fprintf(&b, "- [high] %s: %s (fix: %s)\n", f.NodeID, f.Issue, f.Fix)
			}
		}
		b.WriteString("Resolve the findings above, or apply the suggested fixes, then generate again.")
		st.Reply = b.String()
	case st.Intent == advisor.IntentGenerateCode:
		st.Reply = fmt.Sprintf("Generated %d %s file(s). Security score: %d/100.",
			len(st.Files), st.Dialect, st.Review.Score)
	case st.Intent == advisor.IntentNewFeature, st.Intent == advisor.IntentModifyGraph:
		if st.Merge.Added == 0 && st.Merge.EdgesAdded == 0 {
			st.Reply = "I could not map that request to any architecture change. Try naming the capability you need, for example \"add file uploads\" or \"add a background queue\"."
		} else {
			st.Reply = fmt.Sprintf("Updated the architecture: %d service(s) added, %d connection(s) added. The graph now has %d service(s).",
				st.Merge.Added, st.Merge.EdgesAdded, len(st.Graph.Nodes))
		}
	default:
		st.Reply = describeGraph(st.Graph)
	}
	return st
}

func describeGraph(g *graph.Graph) string {
	if len(g.Nodes) == 0 {
		return "The architecture is empty. Describe what you want to build and I will sketch it out."
	}
	counts := map[graph.Kind]int{}
	for _, n := range g.Nodes {
		counts[n.Kind]++
	}
	var parts []string
	for _, kind := range graph.Kinds() {
		if counts[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[kind], kind))
		}
	}
	return fmt.Sprintf("The architecture has %d service(s) (%s) and %d connection(s).",
		len(g.Nodes), strings.Join(parts, ", "), len(g.Edges))
}
