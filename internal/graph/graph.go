// Package graph defines the architecture graph that every other stage of
// the pipeline reads and writes. The JSON shape of Graph is the transport
// contract with the canvas UI and must round-trip losslessly.
package graph

import (
	"fmt"
	"strings"
)

// Node is one managed-service unit in an architecture.
type Node struct {
	ID     string         `json:"id"`
	Kind   Kind           `json:"kind"`
	Label  string         `json:"label"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge is a directed relation between two node IDs in the same graph.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is an ordered collection of nodes plus a set of edges.
// Node insertion order is preserved for deterministic rendering.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Clone returns a deep copy. Config maps are copied one level deep, which
// covers the flag bags the pipeline deals in.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Edges, g.Edges)
	for i, n := range g.Nodes {
		out.Nodes[i] = n
		if n.Config != nil {
			cfg := make(map[string]any, len(n.Config))
			for k, v := range n.Config {
				cfg[k] = v
			}
			out.Nodes[i].Config = cfg
		}
	}
	return out
}

// NodeByID returns the node with the given ID, if present.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// AddNode appends a node. It rejects duplicate IDs and unknown kinds.
// An empty ID is allowed so delta graphs can leave identifier assignment
// to Merge; Validate still rejects empty IDs on finished graphs.
func (g *Graph) AddNode(n Node) error {
	if !n.Kind.Valid() {
		return fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
	}
	if n.ID != "" {
		if _, exists := g.NodeByID(n.ID); exists {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
	}
	g.Nodes = append(g.Nodes, n)
	return nil
}

// HasEdge reports whether the (source, target) pair is already present.
func (g *Graph) HasEdge(source, target string) bool {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// AddEdge inserts an edge if both endpoints exist and the pair is not
// already present. It reports whether the edge was added; dangling or
// duplicate edges are dropped rather than failing the caller.
func (g *Graph) AddEdge(e Edge) bool {
	if _, ok := g.NodeByID(e.Source); !ok {
		return false
	}
	if _, ok := g.NodeByID(e.Target); !ok {
		return false
	}
	if g.HasEdge(e.Source, e.Target) {
		return false
	}
	g.Edges = append(g.Edges, e)
	return true
}

// IncomingKinds returns the kinds of all nodes with an edge into id.
func (g *Graph) IncomingKinds(id string) []Kind {
	var kinds []Kind
	for _, e := range g.Edges {
		if e.Target != id {
			continue
		}
		if n, ok := g.NodeByID(e.Source); ok {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// HasIncomingFrom reports whether any node of the given kind has an edge
// into id.
func (g *Graph) HasIncomingFrom(id string, kind Kind) bool {
	for _, k := range g.IncomingKinds(id) {
		if k == kind {
			return true
		}
	}
	return false
}

// Validate checks graph invariants: unique node IDs, known kinds, and no
// dangling edge endpoints.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		if !n.Kind.Valid() {
			return fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("edge %s -> %s references a missing node", e.Source, e.Target)
		}
	}
	return nil
}

// NormalizeLabel lowercases a label and collapses runs of whitespace, so
// "User  Auth" and "user auth" identify the same node during a merge.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// nodeKey is the merge identity of a node: kind plus normalized label.
func nodeKey(n Node) string {
	return string(n.Kind) + "/" + NormalizeLabel(n.Label)
}

// GenerateID returns an identifier of the form {kind}-{n} that is unused
// in g, using the smallest free counter so repeated merges are
// deterministic.
func (g *Graph) GenerateID(kind Kind) string {
	for i := 1; ; i++ {
		id := fmt.Sprintf("%s-%d", kind, i)
		if _, exists := g.NodeByID(id); !exists {
			return id
		}
	}
}
