package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/edgerelay/internal/app"
	"github.com/firefly-engineering/edgerelay/internal/config"
	"github.com/firefly-engineering/edgerelay/internal/instance"
	"github.com/firefly-engineering/edgerelay/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forwarding gateway",
	Long: `Run an HTTP server that forwards every request to the backend instance.

The instance is started on the first request with the configuration
mapping injected into its environment, and suspended after it has been
idle for the configured period. Requests are relayed without
modification in either direction.

Errors produced by the router itself:
  500  required configuration entry missing
  503  instance could not be started
  502  instance unreachable while forwarding`,
	RunE: runServe,
}

var (
	serveListen       string
	serveRuntime      string
	serveSleepAfter   time.Duration
	serveDrainTimeout time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (overrides settings)")
	serveCmd.Flags().StringVar(&serveRuntime, "runtime", "", "Backend runtime: process, docker or mock (overrides settings)")
	serveCmd.Flags().DurationVar(&serveSleepAfter, "sleep-after", 0, "Idle period before suspending the instance (overrides settings)")
	serveCmd.Flags().DurationVar(&serveDrainTimeout, "drain-timeout", 30*time.Second, "How long shutdown waits for in-flight requests")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overlays explicitly set flags on loaded settings.
func applyServeFlags(cmd *cobra.Command, s *config.Settings) error {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		s.Listen = serveListen
	}
	if flags.Changed("runtime") {
		s.Runtime = serveRuntime
	}
	if flags.Changed("sleep-after") {
		s.SleepAfter = config.Duration{Duration: serveSleepAfter}
	}
	return s.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, settings); err != nil {
		return err
	}

	a, err := app.New(settings)
	if err != nil {
		return err
	}

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveApp(ctx, a)
}

// serveApp runs the gateway until ctx is done, then drains in-flight
// requests and suspends the instance before returning.
func serveApp(ctx context.Context, a *app.App) error {
	settings := a.Settings
	server, reg, err := a.Server()
	if err != nil {
		return err
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	if mon := a.Monitor(reg); mon != nil {
		go mon.Run(monCtx)
	}

	// SIGUSR1 suspends the instance without stopping the gateway
	usrCh := make(chan os.Signal, 1)
	signal.Notify(usrCh, syscall.SIGUSR1)
	defer signal.Stop(usrCh)
	go func() {
		for {
			select {
			case <-usrCh:
				logging.Info("suspending instance on signal")
				if err := reg.Suspend(monCtx); err != nil {
					logging.Warn("failed to suspend instance", "error", err)
				}
			case <-monCtx.Done():
				return
			}
		}
	}()

	logInfo("Starting gateway on %s", settings.Listen)
	logInfo("Instance: %s (runtime %s, port %d)", instance.Key, a.Runtime.Name(), settings.InstancePort)
	logInfo("Suspend after: %s idle", settings.SleepAfter.Duration)
	if p, _ := a.AccessLogPath(); p != "" {
		logInfo("Access log: %s", p)
	}
	if d := settings.HealthInterval.Duration; d > 0 {
		logInfo("Health checks: every %s", d)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopMonitor()
	logging.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveDrainTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn("shutdown incomplete", "error", err)
	}
	return <-errCh
}
