package security

import "github.com/archon-io/archon/internal/graph"

// ConfigChange records one control switched on by Autofix.
type ConfigChange struct {
	NodeID string `json:"node_id"`
	Key    string `json:"key"`
}

// Autofix returns a copy of g with every config-backed finding's missing
// control enabled. Graph-level findings (missing authentication edges,
// missing invocation paths) cannot be fixed by flipping a flag and are
// left for the user. The input graph is not mutated.
func Autofix(g *graph.Graph, review *Review) (*graph.Graph, []ConfigChange) {
	out := g.Clone()
	var changes []ConfigChange

	apply := func(f Finding) {
		if f.ConfigKey == "" {
			return
		}
		for i := range out.Nodes {
			if out.Nodes[i].ID != f.NodeID {
				continue
			}
			if out.Nodes[i].Config == nil {
				out.Nodes[i].Config = make(map[string]any, 1)
			}
			out.Nodes[i].Config[f.ConfigKey] = true
			changes = append(changes, ConfigChange{NodeID: f.NodeID, Key: f.ConfigKey})
			return
		}
	}

	for _, f := range review.Critical {
		apply(f)
	}
	for _, f := range review.Warnings {
		apply(f)
	}
	return out, changes
}
