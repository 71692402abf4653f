package cli

import (
	"github.com/spf13/cobra"

	"github.com/archon-io/archon/internal/compile"
)

var compileCmd = &cobra.Command{
	Use:   "compile <graph.json>",
	Short: "Lower a graph into dialect-agnostic resource specs",
	Long: `Compiles a graph into the hardened resource specs the renderers
consume and prints them as JSON in deployment order, so every spec
appears after the specs it depends on. Useful for inspecting what
generation would deploy without rendering any dialect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), compile.DeployOrder(compile.Compile(g)))
	},
}
