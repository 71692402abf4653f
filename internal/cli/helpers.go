package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/archon-io/archon/internal/graph"
	"github.com/archon-io/archon/internal/security"
)

// loadGraph reads a graph JSON document from a file, or from stdin when
// path is "-".
func loadGraph(path string) (*graph.Graph, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", path, err)
	}
	return &g, nil
}

// renderFindings prints the review's findings as a table, critical rows
// first.
func renderFindings(w io.Writer, review *security.Review) {
	if len(review.Critical) == 0 && len(review.Warnings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Severity", "Node", "Issue", "Suggested Fix"})
	for _, f := range review.Critical {
		tw.AppendRow(table.Row{f.Severity, f.NodeID, f.Issue, f.Fix})
	}
	for _, f := range review.Warnings {
		tw.AppendRow(table.Row{f.Severity, f.NodeID, f.Issue, f.Fix})
	}
	tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
