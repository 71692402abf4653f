package compile

import (
	"strconv"
	"strings"

	"github.com/archon-io/archon/internal/graph"
)

// Compile lowers a graph into resource specs, preserving node insertion
// order. Each node yields one spec (queues yield a dead-letter pair)
// with hardened defaults applied over the node's config; each edge is
// translated into a grant via the permission table, or a bare dependency
// when no permission applies.
func Compile(g *graph.Graph) []*ResourceSpec {
	names := newNamer()
	specs := make([]*ResourceSpec, 0, len(g.Nodes))
	byNodeID := make(map[string]*ResourceSpec, len(g.Nodes))

	for _, n := range g.Nodes {
		name := names.take(slugify(n.Label, n.Kind))

		if n.Kind == graph.KindQueue {
			dlq := &ResourceSpec{
				Name:       names.take(name + "-dlq"),
				Kind:       graph.KindQueue,
				Properties: cloneProps(dlqDefaults),
			}
			specs = append(specs, dlq)

			q := &ResourceSpec{
				Name:       name,
				Kind:       n.Kind,
				NodeID:     n.ID,
				Properties: mergeProps(n.Config, kindDefaults[n.Kind]),
				DependsOn:  []string{dlq.Name},
			}
			q.Properties["dead_letter_target"] = dlq.Name
			specs = append(specs, q)
			byNodeID[n.ID] = q
			continue
		}

		spec := &ResourceSpec{
			Name:       name,
			Kind:       n.Kind,
			NodeID:     n.ID,
			Properties: mergeProps(n.Config, kindDefaults[n.Kind]),
		}
		specs = append(specs, spec)
		byNodeID[n.ID] = spec
	}

	for _, e := range g.Edges {
		src, ok := byNodeID[e.Source]
		if !ok {
			continue
		}
		tgt, ok := byNodeID[e.Target]
		if !ok {
			continue
		}

		// Identity edges into an API attach an authorizer to the API's
		// integrations instead of granting the identity pool anything.
		if src.Kind == graph.KindIdentity && tgt.Kind == graph.KindAPIGateway {
			tgt.Authorizer = src.Name
			addDependency(tgt, src.Name)
			continue
		}

		if access, mapped := grantFor(src.Kind, tgt.Kind); mapped {
			src.Grants = append(src.Grants, Grant{Target: tgt.Name, Access: access})
		}
		addDependency(src, tgt.Name)
	}

	return specs
}

func addDependency(spec *ResourceSpec, name string) {
	for _, d := range spec.DependsOn {
		if d == name {
			return
		}
	}
	spec.DependsOn = append(spec.DependsOn, name)
}

// mergeProps copies the node config and lays the hardened defaults over
// it; defaults win so weakened flags cannot reach the renderers.
func mergeProps(config, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(config)+len(defaults))
	for k, v := range config {
		out[k] = v
	}
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

func cloneProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// slugify turns a display label into a logical resource name. Empty or
// fully non-alphanumeric labels fall back to the kind.
func slugify(label string, kind graph.Kind) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return string(kind)
	}
	return slug
}

// namer hands out unique logical names, suffixing -2, -3... on
// collision.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: make(map[string]bool)}
}

func (n *namer) take(base string) string {
	if !n.used[base] {
		n.used[base] = true
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}
