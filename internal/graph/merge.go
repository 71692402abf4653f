package graph

// MergeResult describes what a merge changed, for logging and for the
// orchestrator's user-facing summary.
type MergeResult struct {
	Added        int
	Updated      int
	EdgesAdded   int
	DroppedEdges []Edge
	DroppedNodes []Node
}

// Merge folds a delta graph into g and returns the merged graph as a new
// value; neither input is mutated.
//
// Node identity is (kind, normalized label): a delta node matching an
// existing node updates only its config map (union, delta keys win) and
// never duplicates the node. Unmatched delta nodes are inserted with a
// generated {kind}-{n} identifier; a proposed ID only serves to rewire
// the delta's edges onto the inserted node. Delta nodes with an unknown
// kind are dropped. Edges are inserted only when the (source, target)
// pair is new and both endpoints resolve after node merging; anything
// else is dropped, never fatal.
func Merge(g, delta *Graph) (*Graph, MergeResult) {
	out := g.Clone()
	var res MergeResult

	// Map delta node IDs to merged node IDs so delta edges can be rewired
	// onto matched nodes.
	idMap := make(map[string]string, len(delta.Nodes))

	existingByKey := make(map[string]int, len(out.Nodes))
	for i, n := range out.Nodes {
		existingByKey[nodeKey(n)] = i
	}

	for _, dn := range delta.Nodes {
		if !dn.Kind.Valid() {
			res.DroppedNodes = append(res.DroppedNodes, dn)
			continue
		}
		if i, ok := existingByKey[nodeKey(dn)]; ok {
			existing := &out.Nodes[i]
			if len(dn.Config) > 0 {
				if existing.Config == nil {
					existing.Config = make(map[string]any, len(dn.Config))
				}
				for k, v := range dn.Config {
					existing.Config[k] = v
				}
			}
			if dn.ID != "" {
				idMap[dn.ID] = existing.ID
			}
			res.Updated++
			continue
		}

		inserted := dn
		if inserted.Config != nil {
			cfg := make(map[string]any, len(inserted.Config))
			for k, v := range inserted.Config {
				cfg[k] = v
			}
			inserted.Config = cfg
		}
		inserted.ID = out.GenerateID(inserted.Kind)
		out.Nodes = append(out.Nodes, inserted)
		existingByKey[nodeKey(inserted)] = len(out.Nodes) - 1
		if dn.ID != "" {
			idMap[dn.ID] = inserted.ID
		}
		res.Added++
	}

	for _, de := range delta.Edges {
		src, tgt := de.Source, de.Target
		if mapped, ok := idMap[src]; ok {
			src = mapped
		}
		if mapped, ok := idMap[tgt]; ok {
			tgt = mapped
		}
		if out.AddEdge(Edge{Source: src, Target: tgt}) {
			res.EdgesAdded++
		} else if !out.HasEdge(src, tgt) {
			res.DroppedEdges = append(res.DroppedEdges, de)
		}
	}

	return out, res
}
