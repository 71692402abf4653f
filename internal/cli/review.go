package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archon-io/archon/internal/security"
)

var reviewFix bool

var reviewCmd = &cobra.Command{
	Use:   "review <graph.json>",
	Short: "Evaluate an architecture graph against the security rules",
	Long: `Evaluates a graph and prints every finding with its suggested fix.
The command fails when the graph would not pass the generation gate, so
it can guard CI pipelines. Use - to read the graph from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewFix, "fix", false, "apply suggested config fixes and print the fixed graph as JSON")
}

func runReview(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(args[0])
	if err != nil {
		return err
	}

	review := security.Evaluate(g)
	out := cmd.OutOrStdout()
	renderFindings(out, &review)
	for _, rec := range review.Recommendations {
		fmt.Fprintf(out, "recommendation (%s): %s\n", rec.NodeID, rec.Text)
	}
	fmt.Fprintf(out, "\nScore: %d/100\n", review.Score)

	if reviewFix {
		fixed, changes := security.Autofix(g, &review)
		fixedReview := security.Evaluate(fixed)
		fmt.Fprintf(out, "Applied %d fix(es), new score: %d/100\n\n", len(changes), fixedReview.Score)
		if err := writeJSON(out, fixed); err != nil {
			return err
		}
		if !fixedReview.Passed {
			return fmt.Errorf("review still failing after fixes: %d critical, %d high",
				len(fixedReview.Critical), fixedReview.HighCount())
		}
		return nil
	}

	if !review.Passed {
		return fmt.Errorf("review failed: %d critical, %d high, score %d",
			len(review.Critical), review.HighCount(), review.Score)
	}
	fmt.Fprintln(out, "Review passed.")
	return nil
}
