package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-io/archon/internal/graph"
	"github.com/archon-io/archon/internal/templates"
)

func writeGraphFile(t *testing.T, g *graph.Graph) string {
	t.Helper()
	data, err := json.Marshal(g)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func captureCmd() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func TestLoadGraph_RejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := loadGraph(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse graph")

	_, err = loadGraph(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunReview_PassingGraph(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)
	path := writeGraphFile(t, tpl.Graph)

	cmd, buf := captureCmd()
	require.NoError(t, runReview(cmd, []string{path}))
	assert.Contains(t, buf.String(), "Review passed.")
	assert.Contains(t, buf.String(), "Score:")
}

func TestRunReview_FailingGraphReturnsError(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Data"}))
	path := writeGraphFile(t, g)

	cmd, buf := captureCmd()
	err := runReview(cmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review failed")
	assert.Contains(t, buf.String(), "critical")
}

func TestRunReview_FixPrintsFixedGraph(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "db-1", Kind: graph.KindTable, Label: "Data"}))
	path := writeGraphFile(t, g)

	reviewFix = true
	defer func() { reviewFix = false }()

	cmd, buf := captureCmd()
	require.NoError(t, runReview(cmd, []string{path}))
	assert.Contains(t, buf.String(), "Applied")
	assert.Contains(t, buf.String(), `"encryption": true`)
}

func TestRunGenerate_WritesFiles(t *testing.T) {
	tpl, ok := templates.Get("rest-api")
	require.True(t, ok)
	path := writeGraphFile(t, tpl.Graph)

	outDir := t.TempDir()
	generateOut = outDir
	generateDialect = "terraform"
	defer func() { generateOut = "out"; generateDialect = "cdk" }()

	cmd, buf := captureCmd()
	require.NoError(t, runGenerate(cmd, []string{path}))
	assert.Contains(t, buf.String(), "Generated")

	data, err := os.ReadFile(filepath.Join(outDir, "terraform", "main.tf"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "aws_dynamodb_table")
}

func TestRunGenerate_BlockedGraph(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "s-1", Kind: graph.KindStorage, Label: "Files"}))
	path := writeGraphFile(t, g)

	generateOut = t.TempDir()
	defer func() { generateOut = "out" }()

	cmd, _ := captureCmd()
	err := runGenerate(cmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestTemplatesCommand_ListsCatalog(t *testing.T) {
	cmd, buf := captureCmd()
	require.NoError(t, templatesCmd.RunE(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "todo-app")
	assert.Contains(t, out, "saas-app")
}
