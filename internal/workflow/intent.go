package workflow

import (
	"strings"

	"github.com/archon-io/archon/internal/advisor"
)

// intentKeywords is checked in order: generation requests often also
// contain "add" or "create", so generate-code must win first.
var intentKeywords = []struct {
	intent advisor.Intent
	words  []string
}{
	{advisor.IntentGenerateCode, []string{"generate", "code", "deploy", "build", "export"}},
	{advisor.IntentModifyGraph, []string{"change", "modify", "update", "remove", "delete", "connect", "rename"}},
	{advisor.IntentNewFeature, []string{"add", "create", "new", "include", "need", "want"}},
	{advisor.IntentExplain, []string{"explain", "what", "how", "why", "help"}},
}

// ClassifyKeywords is the deterministic intent classifier. It backs the
// advisor's classification and stands alone when no advisor is
// configured.
func ClassifyKeywords(message string) advisor.Intent {
	msg := strings.ToLower(message)
	for _, entry := range intentKeywords {
		for _, word := range entry.words {
			if strings.Contains(msg, word) {
				return entry.intent
			}
		}
	}
	return advisor.IntentExplain
}
