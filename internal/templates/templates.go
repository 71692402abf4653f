// Package templates holds the built-in architecture patterns a
// conversation can start from. Every pattern ships with hardened node
// config so a fresh template passes review instead of opening with a
// pile of findings.
package templates

import "github.com/archon-io/archon/internal/graph"

// Template is one named starting architecture.
type Template struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Graph       *graph.Graph `json:"graph"`
}

func tableCfg() map[string]any {
	return map[string]any{"encryption": true, "point_in_time_recovery": true}
}

func storageCfg() map[string]any {
	return map[string]any{"block_public_access": true, "encryption": true, "versioning": true}
}

func queueCfg() map[string]any {
	return map[string]any{"dead_letter_queue": true, "encryption": true}
}

func fnCfg() map[string]any {
	return map[string]any{"tracing": true}
}

func apiCfg() map[string]any {
	return map[string]any{"access_logging": true}
}

func identityCfg() map[string]any {
	return map[string]any{"multi_factor": true}
}

func cdnCfg() map[string]any {
	return map[string]any{"enforce_https": true}
}

type builder func(*graph.Graph)

var catalog = []struct {
	id, name, description string
	build                 builder
}{
	{
		id: "todo-app", name: "Todo App",
		description: "Authenticated single-page app with an API and a table",
		build: func(g *graph.Graph) {
			node(g, "frontend-delivery-1", graph.KindFrontend, "Web App", nil)
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "Todo API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "Todo Handler", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "Todos", tableCfg())
			edge(g, "frontend-delivery-1", "api-gateway-1")
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "nosql-table-1")
		},
	},
	{
		id: "file-upload", name: "File Upload",
		description: "Upload API with asynchronous object processing",
		build: func(g *graph.Graph) {
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "Upload API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "Upload Handler", fnCfg())
			node(g, "object-storage-1", graph.KindStorage, "Uploads", storageCfg())
			node(g, "function-compute-2", graph.KindFunction, "Processor", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "File Metadata", tableCfg())
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "object-storage-1")
			edge(g, "object-storage-1", "function-compute-2")
			edge(g, "function-compute-2", "nosql-table-1")
		},
	},
	{
		id: "rest-api", name: "REST API",
		description: "Authenticated REST API backed by a table",
		build: func(g *graph.Graph) {
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "REST API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "API Handler", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "Records", tableCfg())
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "nosql-table-1")
		},
	},
	{
		id: "event-driven", name: "Event Driven",
		description: "Producers and consumers decoupled by an event bus",
		build: func(g *graph.Graph) {
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "Ingest API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "Producer", fnCfg())
			node(g, "event-bus-1", graph.KindEventBus, "Domain Events", nil)
			node(g, "function-compute-2", graph.KindFunction, "Consumer", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "Projections", tableCfg())
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "event-bus-1")
			edge(g, "event-bus-1", "function-compute-2")
			edge(g, "function-compute-2", "nosql-table-1")
		},
	},
	{
		id: "queue-worker", name: "Queue Worker",
		description: "API that offloads work to a queue-driven worker",
		build: func(g *graph.Graph) {
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "Jobs API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "Enqueue", fnCfg())
			node(g, "queue-1", graph.KindQueue, "Jobs", queueCfg())
			node(g, "function-compute-2", graph.KindFunction, "Worker", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "Results", tableCfg())
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "queue-1")
			edge(g, "queue-1", "function-compute-2")
			edge(g, "function-compute-2", "nosql-table-1")
		},
	},
	{
		id: "saas-app", name: "SaaS App",
		description: "Full web product: CDN-fronted app, auth, API, and background jobs",
		build: func(g *graph.Graph) {
			node(g, "frontend-delivery-1", graph.KindFrontend, "Web App", nil)
			node(g, "content-delivery-1", graph.KindCDN, "Edge", cdnCfg())
			node(g, "identity-1", graph.KindIdentity, "User Auth", identityCfg())
			node(g, "api-gateway-1", graph.KindAPIGateway, "App API", apiCfg())
			node(g, "function-compute-1", graph.KindFunction, "App Handler", fnCfg())
			node(g, "nosql-table-1", graph.KindTable, "Tenants", tableCfg())
			node(g, "queue-1", graph.KindQueue, "Background Jobs", queueCfg())
			node(g, "function-compute-2", graph.KindFunction, "Job Worker", fnCfg())
			edge(g, "content-delivery-1", "frontend-delivery-1")
			edge(g, "identity-1", "api-gateway-1")
			edge(g, "api-gateway-1", "function-compute-1")
			edge(g, "function-compute-1", "nosql-table-1")
			edge(g, "function-compute-1", "queue-1")
			edge(g, "queue-1", "function-compute-2")
			edge(g, "function-compute-2", "nosql-table-1")
		},
	},
}

func node(g *graph.Graph, id string, kind graph.Kind, label string, cfg map[string]any) {
	// Catalog entries are static; a failure here is a programming error
	// caught by the package tests.
	_ = g.AddNode(graph.Node{ID: id, Kind: kind, Label: label, Config: cfg})
}

func edge(g *graph.Graph, source, target string) {
	g.AddEdge(graph.Edge{Source: source, Target: target})
}

// All returns every template with a freshly built graph, in catalog
// order.
func All() []Template {
	out := make([]Template, 0, len(catalog))
	for _, entry := range catalog {
		out = append(out, materialize(entry.id))
	}
	return out
}

// Get returns one template by ID.
func Get(id string) (Template, bool) {
	for _, entry := range catalog {
		if entry.id == id {
			return materialize(id), true
		}
	}
	return Template{}, false
}

func materialize(id string) Template {
	for _, entry := range catalog {
		if entry.id != id {
			continue
		}
		g := graph.New()
		entry.build(g)
		return Template{ID: entry.id, Name: entry.name, Description: entry.description, Graph: g}
	}
	return Template{}
}
