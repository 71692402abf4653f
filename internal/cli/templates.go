package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/archon-io/archon/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [id]",
	Short: "List the built-in architecture templates",
	Long: `Without an argument, lists every built-in template. With a template
ID, prints that template's graph as JSON, ready to feed into review or
generate.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			tpl, ok := templates.Get(args[0])
			if !ok {
				return fmt.Errorf("no template named %q", args[0])
			}
			return writeJSON(out, tpl.Graph)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.AppendHeader(table.Row{"ID", "Name", "Services", "Description"})
		for _, tpl := range templates.All() {
			tw.AppendRow(table.Row{tpl.ID, tpl.Name, len(tpl.Graph.Nodes), tpl.Description})
		}
		tw.Render()
		return nil
	},
}
