package compile

// DeployOrder sorts specs so every dependency precedes its dependents,
// keeping the compiler's order among peers. Specs caught in a dependency
// cycle are emitted in compiler order once no progress can be made, so
// the result always contains every input spec exactly once.
func DeployOrder(specs []*ResourceSpec) []*ResourceSpec {
	known := make(map[string]bool, len(specs))
	for _, s := range specs {
		known[s.Name] = true
	}

	emitted := make(map[string]bool, len(specs))
	ready := func(s *ResourceSpec) bool {
		for _, dep := range s.DependsOn {
			if known[dep] && !emitted[dep] {
				return false
			}
		}
		return true
	}

	out := make([]*ResourceSpec, 0, len(specs))
	for len(out) < len(specs) {
		progressed := false
		for _, s := range specs {
			if emitted[s.Name] || !ready(s) {
				continue
			}
			out = append(out, s)
			emitted[s.Name] = true
			progressed = true
		}
		if progressed {
			continue
		}
		for _, s := range specs {
			if !emitted[s.Name] {
				out = append(out, s)
				emitted[s.Name] = true
				break
			}
		}
	}
	return out
}
