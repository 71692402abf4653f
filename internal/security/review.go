package security

import (
	"fmt"

	"github.com/archon-io/archon/internal/graph"
)

// PassScore is the minimum score required by the gate.
const PassScore = 70

// MaxHighFindings is the maximum number of high-severity findings the
// gate tolerates.
const MaxHighFindings = 3

// Finding is one missing security control on one node.
type Finding struct {
	NodeID    string   `json:"node_id"`
	Service   string   `json:"service"`
	Severity  Severity `json:"severity"`
	Issue     string   `json:"issue"`
	Fix       string   `json:"fix"`
	ConfigKey string   `json:"config_key,omitempty"`
}

// Recommendation is informational advice that does not affect the score.
type Recommendation struct {
	NodeID  string `json:"node_id"`
	Service string `json:"service"`
	Text    string `json:"text"`
}

// Review is the result of evaluating a graph. Created fresh per request,
// never persisted here.
type Review struct {
	Score             int              `json:"score"`
	Passed            bool             `json:"passed"`
	Critical          []Finding        `json:"critical_issues"`
	Warnings          []Finding        `json:"warnings"`
	Recommendations   []Recommendation `json:"recommendations"`
	CompliantServices []string         `json:"compliant_services"`
}

// HighCount returns the number of high-severity warnings.
func (r *Review) HighCount() int {
	n := 0
	for _, w := range r.Warnings {
		if w.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// Evaluate scores a graph against the rule tables. It is pure and total:
// any graph, including an empty one, produces a well-formed review.
//
// Scoring starts at 100 and deducts a fixed penalty per finding, clamped
// to [0, 100]. The gate passes when the score is at least PassScore,
// there are no critical findings, and there are at most MaxHighFindings
// high-severity findings.
func Evaluate(g *graph.Graph) Review {
	review := Review{
		Critical:          []Finding{},
		Warnings:          []Finding{},
		Recommendations:   []Recommendation{},
		CompliantServices: []string{},
	}

	deduction := 0
	for _, n := range g.Nodes {
		clean := true
		service := serviceNames[n.Kind]

		for _, rule := range configRules[n.Kind] {
			if enabled(n.Config, rule.Key) {
				continue
			}
			clean = false
			deduction += rule.Severity.Penalty()
			f := Finding{
				NodeID:    n.ID,
				Service:   service,
				Severity:  rule.Severity,
				Issue:     fmt.Sprintf(rule.Issue, n.Label),
				Fix:       rule.Fix,
				ConfigKey: rule.Key,
			}
			if rule.Severity == SeverityCritical {
				review.Critical = append(review.Critical, f)
			} else {
				review.Warnings = append(review.Warnings, f)
			}
		}

		for _, rule := range edgeRules[n.Kind] {
			if rule.Check(g, n) {
				continue
			}
			clean = false
			deduction += rule.Severity.Penalty()
			f := Finding{
				NodeID:   n.ID,
				Service:  service,
				Severity: rule.Severity,
				Issue:    fmt.Sprintf(rule.Issue, n.Label),
				Fix:      rule.Fix,
			}
			if rule.Severity == SeverityCritical {
				review.Critical = append(review.Critical, f)
			} else {
				review.Warnings = append(review.Warnings, f)
			}
		}

		for _, text := range recommendations[n.Kind] {
			review.Recommendations = append(review.Recommendations, Recommendation{
				NodeID:  n.ID,
				Service: service,
				Text:    fmt.Sprintf(text, n.Label),
			})
		}

		if clean {
			review.CompliantServices = append(review.CompliantServices, n.ID)
		}
	}

	score := 100 - deduction
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	review.Score = score
	review.Passed = score >= PassScore &&
		len(review.Critical) == 0 &&
		review.HighCount() <= MaxHighFindings

	return review
}
