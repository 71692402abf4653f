package render

import "github.com/archon-io/archon/internal/compile"

// Typed accessors over the compiled property bag. Compile controls the
// bag's contents, so missing keys just mean "use the hardened default".

func propString(s *compile.ResourceSpec, key, fallback string) string {
	if v, ok := s.Properties[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func propInt(s *compile.ResourceSpec, key string, fallback int) int {
	switch v := s.Properties[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func propBool(s *compile.ResourceSpec, key string) bool {
	switch v := s.Properties[key].(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	}
	return false
}
