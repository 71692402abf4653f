package compile

import "github.com/archon-io/archon/internal/graph"

// kindDefaults is the hardened property baseline per service kind.
// Compile applies these on top of node config, so a graph that passed
// review with weaker flags still renders hardened output; the rendered
// code and the scored review never disagree on the security posture.
var kindDefaults = map[graph.Kind]map[string]any{
	graph.KindTable: {
		"billing_mode":           "on_demand",
		"partition_key":          "id",
		"encryption":             "managed",
		"point_in_time_recovery": true,
	},
	graph.KindStorage: {
		"block_public_access":          true,
		"encryption":                   "managed",
		"enforce_transport_encryption": true,
		"versioning":                   true,
	},
	graph.KindQueue: {
		"encryption":        "managed",
		"max_receive_count": 3,
	},
	graph.KindFunction: {
		"runtime":               "nodejs20.x",
		"handler":               "index.handler",
		"timeout_seconds":       30,
		"memory_mb":             256,
		"tracing":               true,
		"encrypted_environment": true,
	},
	graph.KindIdentity: {
		"self_sign_up":             true,
		"password_min_length":      12,
		"password_require_symbols": true,
		"multi_factor":             "optional",
		"advanced_security":        true,
	},
	graph.KindAPIGateway: {
		"stage":          "prod",
		"tracing":        true,
		"access_logging": true,
		"logging_level":  "info",
	},
	graph.KindCDN: {
		"enforce_https": true,
		"minimum_tls":   "1.2",
	},
	graph.KindEventBus: {},
	graph.KindTopic: {
		"encryption": "managed",
	},
	graph.KindWorkflow: {
		"tracing": true,
	},
	graph.KindStream: {
		"encryption":      "managed",
		"retention_hours": 24,
	},
	graph.KindFrontend: {
		"hosting": "static-site",
	},
}

// dlqDefaults is the baseline for the auto-generated dead-letter pair of
// every queue node.
var dlqDefaults = map[string]any{
	"encryption": "managed",
}
