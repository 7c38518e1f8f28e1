package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/audit"
	"github.com/firefly-engineering/edgerelay/internal/health"
	"github.com/firefly-engineering/edgerelay/internal/runtime"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the backend instance",
	Long: `Show what the runtime reports for the backend instance, probe it when
it is running, and list the most recent lifecycle events.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusEvents int

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func init() {
	statusCmd.Flags().IntVarP(&statusEvents, "events", "n", 5, "Number of recent lifecycle events to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	info, err := a.Status(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	field(out, "Instance", info.Name)
	field(out, "Runtime", a.Runtime.Name())
	field(out, "Status", formatStatus(info.Status))

	if info.Status == runtime.StatusRunning || info.Status == runtime.StatusStopped {
		if info.ActivationID != "" {
			field(out, "Activation", info.ActivationID)
		}
		if info.ID != "" {
			field(out, "ID", info.ID)
		}
		if info.Addr != "" {
			field(out, "Address", info.Addr)
		}
	}

	if info.Status == runtime.StatusRunning {
		if !info.StartedAt.IsZero() {
			field(out, "Uptime", health.FormatDuration(time.Since(info.StartedAt)))
		}
		if info.Addr != "" {
			probe := health.Probe{Addr: info.Addr, Path: a.Settings.ReadyPath}
			field(out, "Health", formatHealth(probe.Check(ctx)))
		}
	}

	if statusEvents <= 0 {
		return nil
	}
	events, err := a.Events(statusEvents)
	if err != nil {
		logWarning("%v", err)
		return nil
	}
	if len(events) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, labelStyle.Render("Recent events:"))
		for _, e := range events {
			fmt.Fprintf(out, "  %s\n", formatEvent(e))
		}
	}

	return nil
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-11s", label+":")), value)
}

func formatStatus(status runtime.InstanceStatus) string {
	switch status {
	case runtime.StatusRunning:
		return runningStyle.Render("● running")
	case runtime.StatusStopped:
		return stoppedStyle.Render("○ stopped")
	case runtime.StatusNotFound:
		return stoppedStyle.Render("○ suspended")
	default:
		return errorStyle.Render(string(status))
	}
}

func formatHealth(status health.Status) string {
	if status == health.StatusHealthy {
		return runningStyle.Render("✓ " + string(status))
	}
	return errorStyle.Render("✗ " + string(status))
}

func formatEvent(e audit.Event) string {
	ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %-8s %s", ts, e.Type, shortID(e.ActivationID))
	if e.Details != "" {
		line += " (" + e.Details + ")"
	}
	return line
}

// shortID trims an activation ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
