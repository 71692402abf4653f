// Package render translates compiled resource specs into one of four
// infrastructure-as-code dialects. Renderers are pure and idempotent:
// the same spec list always produces byte-identical files, and all
// security defaults and permission wiring arrive pre-decided in the
// specs, so a renderer only supplies syntax.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/archon-io/archon/internal/compile"
)

// Dialect selects an output grammar.
type Dialect string

const (
	DialectCDK            Dialect = "cdk"
	DialectCDKPython      Dialect = "cdk-python"
	DialectCloudFormation Dialect = "cloudformation"
	DialectTerraform      Dialect = "terraform"
)

// Dialects returns the supported output dialects in a stable order.
func Dialects() []Dialect {
	return []Dialect{DialectCDK, DialectCDKPython, DialectCloudFormation, DialectTerraform}
}

// ParseDialect validates a user-supplied dialect string. Invalid values
// are rejected here, before any compilation work happens.
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Dialects() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unsupported dialect %q (supported: cdk, cdk-python, cloudformation, terraform)", s)
}

// File is one generated output file. Writing it anywhere durable is the
// caller's concern.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Renderer produces a file set from compiled specs, either as a single
// stack or partitioned into category stacks with explicit cross-stack
// references.
type Renderer interface {
	Dialect() Dialect
	RenderStack(specs []*compile.ResourceSpec) []File
	RenderPartitioned(groups []compile.Group) []File
}

// registry mirrors the fixed dialect set; initialized once, read-only
// afterwards.
var registry = map[Dialect]Renderer{
	DialectCDK:            &cdkRenderer{},
	DialectCDKPython:      &cdkPythonRenderer{},
	DialectCloudFormation: &cloudFormationRenderer{},
	DialectTerraform:      &terraformRenderer{},
}

// Get returns the renderer for a dialect.
func Get(d Dialect) (Renderer, error) {
	r, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for dialect %q", d)
	}
	return r, nil
}

// sortedKeys returns property-bag keys in lexical order so map iteration
// never leaks into the output bytes.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// specByName indexes a spec list for grant target lookups.
func specByName(specs []*compile.ResourceSpec) map[string]*compile.ResourceSpec {
	out := make(map[string]*compile.ResourceSpec, len(specs))
	for _, s := range specs {
		out[s.Name] = s
	}
	return out
}

// camelCase converts a slug to lowerCamelCase ("user-auth" -> userAuth).
func camelCase(slug string) string {
	parts := strings.Split(slug, "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// pascalCase converts a slug to PascalCase ("user-auth" -> UserAuth).
func pascalCase(slug string) string {
	parts := strings.Split(slug, "-")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// snakeCase converts a slug to snake_case ("user-auth" -> user_auth).
func snakeCase(slug string) string {
	return strings.ReplaceAll(slug, "-", "_")
}
