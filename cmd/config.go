package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/config"
	"github.com/firefly-engineering/edgerelay/internal/runtime"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect edgerelay settings",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and show the configuration mapping",
	Long: `Load settings from the config file and environment, validate them, and
print the mapping that will be injected into the backend instance.
Secret values are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	s, err := config.Read(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	field(out, "Listen", s.Listen)
	field(out, "Runtime", s.Runtime+availability(s.Runtime))
	switch s.Runtime {
	case string(runtime.RuntimeProcess):
		field(out, "Command", s.Command)
	case string(runtime.RuntimeDocker):
		field(out, "Image", s.Image)
	}
	field(out, "Port", fmt.Sprintf("%d", s.InstancePort))
	field(out, "Sleep after", s.SleepAfter.Duration.String())
	field(out, "Start wait", s.StartTimeout.Duration.String())
	if s.StateDir != "" {
		field(out, "State dir", s.StateDir)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, labelStyle.Render("Mapping:"))
	mapping := s.Mapping().Redacted()
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s=%s\n", k, mapping[k])
	}

	if err := s.Validate(); err != nil {
		return err
	}
	logSuccess("Configuration is valid")
	return nil
}

// availability annotates a runtime name when it cannot be used here.
func availability(name string) string {
	for _, rt := range runtime.Available() {
		if string(rt) == name {
			return ""
		}
	}
	return " (not available on this host)"
}
