package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "edgerelay",
	Short: "Edge request router for a lazily started backend",
	Long: `edgerelay forwards every inbound HTTP request to a single backend
instance, starting it on first use and suspending it when idle.

The backend receives its configuration as environment variables:
  - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
  - RECIPIENT_EMAIL, API_KEY
  - SERVER_PORT (the instance listening port)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		logging.SetUserOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML settings file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
