package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/archon-io/archon/internal/advisor"
	"github.com/archon-io/archon/internal/logging"
	"github.com/archon-io/archon/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the chat workflow, the security review, the code generators,
and the template catalog over HTTP. When OPENAI_API_KEY is set the chat
workflow consults the language-model advisor; without it every step runs
on the deterministic implementations alone.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	var adv advisor.Advisor
	if a, err := advisor.NewOpenAI(); err != nil {
		logging.Warn("running without advisor", "reason", err)
	} else {
		adv = a
	}

	handler := server.New(server.Config{Advisor: adv})
	addr := viper.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
