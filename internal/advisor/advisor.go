// Package advisor defines the optional language-model assist used by the
// workflow. Every advisory call has a deterministic fallback in the
// workflow package, so an advisor can fail, time out, or be absent
// entirely without blocking a conversation.
package advisor

import (
	"context"
	"strings"

	"github.com/archon-io/archon/internal/graph"
)

// Intent is the classified goal of one chat message.
type Intent string

const (
	IntentNewFeature   Intent = "new-feature"
	IntentModifyGraph  Intent = "modify-graph"
	IntentGenerateCode Intent = "generate-code"
	IntentExplain      Intent = "explain"
)

// ParseIntent normalizes a model-produced intent label. Unknown labels
// return false and the caller falls back to keyword classification.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentNewFeature:
		return IntentNewFeature, true
	case IntentModifyGraph:
		return IntentModifyGraph, true
	case IntentGenerateCode:
		return IntentGenerateCode, true
	case IntentExplain:
		return IntentExplain, true
	}
	return "", false
}

// Opinion is the advisor's candidate security review of a graph. The
// rule engine stays authoritative; an opinion only feeds the divergence
// warning, where the findings say what the advisor saw differently.
type Opinion struct {
	Score    int      `json:"score"`
	Findings []string `json:"findings,omitempty"`
}

// Advisor answers the three advisory questions the workflow asks. All
// methods must honor ctx cancellation; results are suggestions, never
// authority.
type Advisor interface {
	// ClassifyIntent names the goal of a chat message.
	ClassifyIntent(ctx context.Context, message string) (Intent, error)

	// ProposeDelta suggests graph additions for a message against the
	// current architecture. The returned graph is a delta to merge, not
	// a replacement.
	ProposeDelta(ctx context.Context, message string, current *graph.Graph) (*graph.Graph, error)

	// ReviewOpinion estimates a security posture score in [0,100] with
	// the findings behind it, for divergence checks against the rule
	// engine.
	ReviewOpinion(ctx context.Context, g *graph.Graph) (Opinion, error)
}
