package workflow

import (
	"fmt"
	"strings"

	"github.com/archon-io/archon/internal/graph"
)

// delta accumulates the nodes and edges a synthesis rule proposes. Edges
// may reference nodes of the current graph directly; Merge keeps them as
// long as both endpoints exist after merging.
type delta struct {
	g       *graph.Graph
	current *graph.Graph
	added   map[graph.Kind]string
}

func newDelta(current *graph.Graph) *delta {
	return &delta{g: graph.New(), current: current, added: map[graph.Kind]string{}}
}

// freeID picks the smallest counter ID unused by both the current graph
// and the delta. Merge regenerates IDs on insertion either way; distinct
// proposed IDs only keep the delta's own edges unambiguous.
func (d *delta) freeID(kind graph.Kind) string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-%d", kind, n)
		_, inCurrent := d.current.NodeByID(id)
		_, inDelta := d.g.NodeByID(id)
		if !inCurrent && !inDelta {
			return id
		}
	}
}

// ensure adds one node of the kind to the delta and returns its proposed
// ID. A second call for the same kind returns the first node, so rules
// that overlap share infrastructure instead of duplicating it.
func (d *delta) ensure(kind graph.Kind, label string) string {
	if id, ok := d.added[kind]; ok {
		return id
	}
	id := d.freeID(kind)
	d.g.AddNode(graph.Node{ID: id, Kind: kind, Label: label})
	d.added[kind] = id
	return id
}

func (d *delta) link(source, target string) {
	if source == "" || target == "" {
		return
	}
	// Endpoints may live in the current graph, so this bypasses AddEdge's
	// endpoint check; Merge validates edges after rewiring.
	for _, e := range d.g.Edges {
		if e.Source == source && e.Target == target {
			return
		}
	}
	d.g.Edges = append(d.g.Edges, graph.Edge{Source: source, Target: target})
}

// anchor returns the ID of an existing node of the kind, or the one the
// delta itself proposes, or "".
func (d *delta) anchor(kind graph.Kind) string {
	for _, n := range d.current.Nodes {
		if n.Kind == kind {
			return n.ID
		}
	}
	return d.added[kind]
}

type synthRule struct {
	words []string
	apply func(d *delta)
}

var synthRules = []synthRule{
	{
		words: []string{"auth", "login", "sign in", "signup", "sign up", "account"},
		apply: func(d *delta) {
			id := d.ensure(graph.KindIdentity, "User Auth")
			d.link(id, d.anchor(graph.KindAPIGateway))
		},
	},
	{
		words: []string{"api", "endpoint", "backend", "rest"},
		apply: func(d *delta) {
			api := d.ensure(graph.KindAPIGateway, "API")
			fn := d.ensure(graph.KindFunction, "API Handler")
			d.link(api, fn)
			d.link(d.anchor(graph.KindIdentity), api)
		},
	},
	{
		words: []string{"upload", "file", "photo", "image", "document", "storage"},
		apply: func(d *delta) {
			bucket := d.ensure(graph.KindStorage, "Files")
			fn := d.ensure(graph.KindFunction, "File Handler")
			d.link(fn, bucket)
			d.link(d.anchor(graph.KindAPIGateway), fn)
		},
	},
	{
		words: []string{"database", "table", "store", "save", "record"},
		apply: func(d *delta) {
			table := d.ensure(graph.KindTable, "Data")
			d.link(d.anchor(graph.KindFunction), table)
		},
	},
	{
		words: []string{"queue", "job", "task", "background", "worker", "async"},
		apply: func(d *delta) {
			q := d.ensure(graph.KindQueue, "Jobs")
			d.link(d.anchor(graph.KindFunction), q)
			worker := d.freeID(graph.KindFunction)
			d.g.AddNode(graph.Node{ID: worker, Kind: graph.KindFunction, Label: "Worker"})
			d.link(q, worker)
		},
	},
	{
		words: []string{"notify", "notification", "email", "sms", "alert"},
		apply: func(d *delta) {
			topic := d.ensure(graph.KindTopic, "Notifications")
			d.link(d.anchor(graph.KindFunction), topic)
		},
	},
	{
		words: []string{"event", "publish", "subscribe", "fanout"},
		apply: func(d *delta) {
			bus := d.ensure(graph.KindEventBus, "Domain Events")
			d.link(d.anchor(graph.KindFunction), bus)
		},
	},
	{
		words: []string{"stream", "analytics", "telemetry", "clickstream"},
		apply: func(d *delta) {
			stream := d.ensure(graph.KindStream, "Events")
			d.link(d.anchor(graph.KindFunction), stream)
		},
	},
	{
		words: []string{"workflow", "orchestrat", "saga", "pipeline", "approval"},
		apply: func(d *delta) {
			wf := d.ensure(graph.KindWorkflow, "Process")
			d.link(d.anchor(graph.KindFunction), wf)
		},
	},
	{
		words: []string{"frontend", "website", "web app", "webapp", "ui", "landing"},
		apply: func(d *delta) {
			d.ensure(graph.KindFrontend, "Web App")
		},
	},
	{
		words: []string{"cdn", "cache", "edge"},
		apply: func(d *delta) {
			cdn := d.ensure(graph.KindCDN, "Edge")
			d.link(cdn, d.anchor(graph.KindFrontend))
		},
	},
}

// Propose is the deterministic architect: it maps message keywords to
// architecture snippets and returns a delta graph for Merge. An empty
// delta means the message named nothing recognizable.
func Propose(message string, current *graph.Graph) *graph.Graph {
	msg := strings.ToLower(message)
	d := newDelta(current)
	for _, rule := range synthRules {
		for _, word := range rule.words {
			if strings.Contains(msg, word) {
				rule.apply(d)
				break
			}
		}
	}
	return d.g
}
