package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/archon-io/archon/internal/compile"
	"github.com/archon-io/archon/internal/render"
	"github.com/archon-io/archon/internal/security"
)

var (
	generateDialect   string
	generateOut       string
	generateThreshold int
)

var generateCmd = &cobra.Command{
	Use:   "generate <graph.json>",
	Short: "Generate infrastructure code for a graph that passes review",
	Long: `Runs the security review and, when it passes, compiles the graph and
writes the rendered files under the output directory. A failing review
blocks generation; run "archon review --fix" first or resolve the
findings by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateDialect, "dialect", "cdk", "output dialect (cdk, cdk-python, cloudformation, terraform)")
	generateCmd.Flags().StringVar(&generateOut, "out", "out", "directory to write generated files into")
	generateCmd.Flags().IntVar(&generateThreshold, "partition-threshold", compile.DefaultPartitionThreshold,
		"resource count above which output is split into category stacks")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	dialect, err := render.ParseDialect(generateDialect)
	if err != nil {
		return err
	}
	renderer, err := render.Get(dialect)
	if err != nil {
		return err
	}
	g, err := loadGraph(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	review := security.Evaluate(g)
	if !review.Passed {
		renderFindings(out, &review)
		return fmt.Errorf("generation blocked by security review: %d critical, %d high, score %d",
			len(review.Critical), review.HighCount(), review.Score)
	}

	specs := compile.Compile(g)
	var files []render.File
	if groups := compile.Partition(specs, generateThreshold); groups != nil {
		files = renderer.RenderPartitioned(groups)
	} else {
		files = renderer.RenderStack(specs)
	}

	for _, f := range files {
		path := filepath.Join(generateOut, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintln(out, path)
	}
	fmt.Fprintf(out, "\nGenerated %d %s file(s). Security score: %d/100.\n", len(files), dialect, review.Score)
	return nil
}
