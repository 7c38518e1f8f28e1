package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/instance"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Display the lifecycle events of the backend instance",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

var (
	eventsJSON  bool
	eventsLines int
)

func init() {
	eventsCmd.Flags().BoolVar(&eventsJSON, "json-lines", false, "Output events as JSON lines")
	eventsCmd.Flags().IntVarP(&eventsLines, "lines", "n", 0, "Show only the last n events (0 = all)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if a.Audit == nil {
		logWarning("No state directory configured; set state_dir to record events")
		return nil
	}

	events, err := a.Events(eventsLines)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		logInfo("No events found for %s", instance.Key)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if eventsJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
		} else {
			fmt.Fprintln(out, formatEvent(e))
		}
	}

	return nil
}
