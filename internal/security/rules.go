// Package security scores an architecture graph against a fixed rule
// table and gates code generation on the result. Evaluation is
// deterministic and total: it never fails, and it is the fallback
// whenever the probabilistic advisor is unreachable.
package security

import "github.com/archon-io/archon/internal/graph"

// Severity of a finding. Each level carries a fixed score penalty.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Penalty returns the score deduction for one finding of this severity.
func (s Severity) Penalty() int {
	switch s {
	case SeverityCritical:
		return 30
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 5
	}
	return 0
}

// configRule fires when a node's config map lacks an enabled control.
type configRule struct {
	Key      string
	Severity Severity
	Issue    string
	Fix      string
}

// edgeRule fires on the shape of the graph around a node, not on its own
// config. Check returns true when the expectation is met.
type edgeRule struct {
	Severity Severity
	Issue    string
	Fix      string
	Check    func(g *graph.Graph, n graph.Node) bool
}

// serviceNames maps kinds to the display names used in findings.
var serviceNames = map[graph.Kind]string{
	graph.KindFrontend:   "Frontend",
	graph.KindIdentity:   "Identity",
	graph.KindAPIGateway: "API Gateway",
	graph.KindFunction:   "Function",
	graph.KindTable:      "NoSQL Table",
	graph.KindStorage:    "Object Storage",
	graph.KindQueue:      "Queue",
	graph.KindEventBus:   "Event Bus",
	graph.KindTopic:      "Topic",
	graph.KindWorkflow:   "Workflow",
	graph.KindCDN:        "CDN",
	graph.KindStream:     "Stream",
}

// invocationSources are the kinds that give a function a managed
// invocation path when they have an edge into it.
var invocationSources = []graph.Kind{
	graph.KindAPIGateway,
	graph.KindQueue,
	graph.KindEventBus,
	graph.KindTopic,
	graph.KindStorage,
	graph.KindStream,
	graph.KindWorkflow,
	graph.KindCDN,
}

// configRules is the per-kind control table. A rule fires only on the
// absence of its control, so enabling a control can never lower the
// score.
var configRules = map[graph.Kind][]configRule{
	graph.KindTable: {
		{Key: "encryption", Severity: SeverityCritical,
			Issue: "table %q has no encryption at rest",
			Fix:   "enable provider-managed encryption on the table"},
		{Key: "point_in_time_recovery", Severity: SeverityMedium,
			Issue: "table %q has no point-in-time recovery",
			Fix:   "enable point-in-time recovery for data protection"},
	},
	graph.KindStorage: {
		{Key: "block_public_access", Severity: SeverityCritical,
			Issue: "bucket %q does not block public access",
			Fix:   "block all public access on the bucket"},
		{Key: "encryption", Severity: SeverityCritical,
			Issue: "bucket %q has no server-side encryption",
			Fix:   "enable managed server-side encryption"},
		{Key: "versioning", Severity: SeverityMedium,
			Issue: "bucket %q has no versioning",
			Fix:   "enable versioning to protect against accidental deletes"},
	},
	graph.KindQueue: {
		{Key: "dead_letter_queue", Severity: SeverityHigh,
			Issue: "queue %q has no dead-letter queue",
			Fix:   "attach a dead-letter queue with a bounded max receive count"},
		{Key: "encryption", Severity: SeverityMedium,
			Issue: "queue %q has no encryption",
			Fix:   "enable managed encryption on the queue"},
	},
	graph.KindFunction: {
		{Key: "tracing", Severity: SeverityMedium,
			Issue: "function %q has no tracing",
			Fix:   "enable active tracing for observability"},
	},
	graph.KindAPIGateway: {
		{Key: "access_logging", Severity: SeverityMedium,
			Issue: "API %q has no access logging",
			Fix:   "enable stage access logging"},
	},
	graph.KindIdentity: {
		{Key: "multi_factor", Severity: SeverityMedium,
			Issue: "user pool %q does not offer multi-factor authentication",
			Fix:   "enable optional or required MFA on the user pool"},
	},
	graph.KindTopic: {
		{Key: "encryption", Severity: SeverityHigh,
			Issue: "topic %q has no encryption",
			Fix:   "enable managed encryption on the topic"},
	},
	graph.KindStream: {
		{Key: "encryption", Severity: SeverityHigh,
			Issue: "stream %q has no encryption at rest",
			Fix:   "enable managed stream encryption"},
	},
	graph.KindCDN: {
		{Key: "enforce_https", Severity: SeverityHigh,
			Issue: "distribution %q does not enforce HTTPS",
			Fix:   "redirect viewers to HTTPS with TLS 1.2 or later"},
	},
	graph.KindWorkflow: {
		{Key: "tracing", Severity: SeverityMedium,
			Issue: "state machine %q has no tracing",
			Fix:   "enable tracing on the state machine"},
	},
	graph.KindEventBus: {},
	graph.KindFrontend: {},
}

// edgeRules are the graph-level checks.
var edgeRules = map[graph.Kind][]edgeRule{
	graph.KindAPIGateway: {
		{Severity: SeverityHigh,
			Issue: "API %q has no authentication configured",
			Fix:   "connect an identity node to the API to attach an authorizer",
			Check: func(g *graph.Graph, n graph.Node) bool {
				return g.HasIncomingFrom(n.ID, graph.KindIdentity)
			}},
	},
	graph.KindFunction: {
		{Severity: SeverityHigh,
			Issue: "function %q has no managed invocation path",
			Fix:   "route invocations through an API, queue, or event source",
			Check: func(g *graph.Graph, n graph.Node) bool {
				for _, kind := range invocationSources {
					if g.HasIncomingFrom(n.ID, kind) {
						return true
					}
				}
				return false
			}},
	},
}

// recommendations are informational and never scored.
var recommendations = map[graph.Kind][]string{
	graph.KindFunction: {
		"use least-privilege grants for %q (read-only when writes are not needed)",
	},
	graph.KindIdentity: {
		"enable advanced risk detection on %q",
	},
	graph.KindEventBus: {
		"enable event archive and replay on %q",
	},
	graph.KindFrontend: {
		"serve %q through a content-delivery distribution",
	},
}

// enabled reports whether a config control is present and switched on.
// The canvas sends booleans, the advisor sometimes sends mode strings
// like "KMS" or "S3_MANAGED"; both count as enabled.
func enabled(cfg map[string]any, key string) bool {
	v, ok := cfg[key]
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch val {
		case "", "false", "none", "off", "disabled":
			return false
		}
		return true
	case nil:
		return false
	}
	return true
}
