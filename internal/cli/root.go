package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/archon-io/archon/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "archon",
	Short: "Conversational cloud architecture with security-gated code generation",
	Long: `Archon turns architecture descriptions into deployable infrastructure.

It keeps an architecture as a graph of services, reviews every graph
against a deterministic security rule engine, and only generates
infrastructure code (CDK, CloudFormation, or Terraform) for graphs that
pass review.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := viper.GetString("log-level")
		if viper.GetString("log-format") == "json" {
			logging.InitJSON(level)
		} else {
			logging.Init(level)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.SetEnvPrefix("ARCHON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(versionCmd)
}
