package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/instance"
)

var suspendCmd = &cobra.Command{
	Use:   "suspend",
	Short: "Stop the backend instance now",
	Long: `Stop the backend instance immediately instead of waiting for the idle
timeout. A running gateway starts it again on the next request.`,
	Args: cobra.NoArgs,
	RunE: runSuspend,
}

func init() {
	rootCmd.AddCommand(suspendCmd)
}

func runSuspend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if err := a.Suspend(cmd.Context()); err != nil {
		return err
	}

	logSuccess("Instance %s suspended", instance.Key)
	return nil
}
