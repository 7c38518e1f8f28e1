package app

import (
	"context"
	"fmt"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/edgerelay/internal/audit"
	"github.com/firefly-engineering/edgerelay/internal/config"
	"github.com/firefly-engineering/edgerelay/internal/errors"
	"github.com/firefly-engineering/edgerelay/internal/gateway"
	"github.com/firefly-engineering/edgerelay/internal/instance"
	"github.com/firefly-engineering/edgerelay/internal/logging"
	"github.com/firefly-engineering/edgerelay/internal/monitor"
	"github.com/firefly-engineering/edgerelay/internal/runtime"
)

// AccessLogName is the access log file name under the state directory.
const AccessLogName = "access.log"

// App holds the application dependencies
type App struct {
	// Settings is the loaded router configuration
	Settings *config.Settings

	// Runtime runs the backend instance
	Runtime runtime.Runtime

	// Audit records lifecycle events; nil when no state directory is set
	Audit *audit.Logger
}

// Option is a function that configures the App
type Option func(*App)

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithAudit sets a custom audit logger
func WithAudit(l *audit.Logger) Option {
	return func(a *App) {
		a.Audit = l
	}
}

// New creates an App from settings. The runtime is built from the settings
// unless one is provided via WithRuntime.
func New(settings *config.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.ConfigError("settings are required", nil)
	}

	app := &App{Settings: settings}
	for _, opt := range opts {
		opt(app)
	}

	if app.Audit == nil && settings.StateDir != "" {
		app.Audit = audit.NewLogger(settings.StateDir)
	}

	if app.Runtime == nil {
		cfg, err := RuntimeConfig(settings)
		if err != nil {
			return nil, err
		}
		rt, err := runtime.New(cfg)
		if err != nil {
			return nil, errors.RuntimeError("initialization", err)
		}
		app.Runtime = rt
	}

	logging.Debug("application initialized", "runtime", app.Runtime.Name(), "stateDir", settings.StateDir)
	return app, nil
}

// RuntimeConfig translates settings into a runtime configuration.
func RuntimeConfig(s *config.Settings) (*runtime.Config, error) {
	cfg := &runtime.Config{
		Type:     runtime.RuntimeType(s.Runtime),
		Image:    s.Image,
		StateDir: s.StateDir,
	}
	if cfg.Type == runtime.RuntimeProcess {
		args, err := s.CommandArgs()
		if err != nil {
			return nil, err
		}
		cfg.Command = args
	}
	return cfg, nil
}

// Registry creates the instance registry for the configured backend.
func (a *App) Registry() *instance.Registry {
	return instance.NewRegistry(instance.Options{
		Runtime:      a.Runtime,
		Mapping:      a.Settings.Mapping(),
		Port:         a.Settings.InstancePort,
		SleepAfter:   a.Settings.SleepAfter.Duration,
		StartTimeout: a.Settings.StartTimeout.Duration,
		ReadyPath:    a.Settings.ReadyPath,
		Audit:        a.Audit,
	})
}

// AccessLogPath returns where forwarded requests are logged, or "" when
// access logging is off.
func (a *App) AccessLogPath() (string, error) {
	if !a.Settings.AccessLog {
		return "", nil
	}
	if a.Settings.StateDir == "" {
		return "", errors.ConfigError("access_log requires state_dir", nil)
	}
	path, err := securejoin.SecureJoin(a.Settings.StateDir, AccessLogName)
	if err != nil {
		return "", errors.ConfigError("invalid access log path", err)
	}
	return path, nil
}

// Server wires registry, gateway and HTTP server together.
func (a *App) Server() (*gateway.Server, *instance.Registry, error) {
	accessLog, err := a.AccessLogPath()
	if err != nil {
		return nil, nil, err
	}

	reg := a.Registry()
	g, err := gateway.New(&gateway.Config{
		Registry:      reg,
		AccessLogPath: accessLog,
		Logger:        logging.Component("gateway"),
	})
	if err != nil {
		return nil, nil, err
	}

	return gateway.NewServer(a.Settings.Listen, g, reg), reg, nil
}

// Monitor returns a health monitor for reg, or nil when periodic checks
// are disabled.
func (a *App) Monitor(reg *instance.Registry) *monitor.Monitor {
	if a.Settings.HealthInterval.Duration <= 0 {
		return nil
	}
	return monitor.New(a.Settings.HealthInterval.Duration, reg,
		monitor.WithReadyPath(a.Settings.ReadyPath),
		monitor.WithSuspendUnhealthy(a.Settings.SuspendUnhealthy),
		monitor.WithAuditLogger(a.Audit),
	)
}

// Status queries the runtime for the backend instance.
func (a *App) Status(ctx context.Context) (*runtime.InstanceInfo, error) {
	info, err := a.Runtime.Status(ctx, instance.Key)
	if err != nil {
		return nil, errors.RuntimeError("status", err)
	}
	return info, nil
}

// Suspend stops the backend instance through the runtime. It is used from
// a separate invocation than the one serving traffic; the serving process
// observes the exit and restarts the instance on the next request.
func (a *App) Suspend(ctx context.Context) error {
	info, err := a.Status(ctx)
	if err != nil {
		return err
	}
	if info.Status != runtime.StatusRunning {
		return nil
	}
	if err := a.Runtime.Stop(ctx, instance.Key); err != nil {
		return errors.RuntimeError("stop", err)
	}
	if a.Audit != nil {
		if err := a.Audit.LogEvent(audit.EventSuspend, instance.Key, info.ActivationID, "requested from cli"); err != nil {
			logging.Debug("failed to write audit event", "error", err)
		}
	}
	return nil
}

// Events returns the most recent lifecycle events, newest last.
func (a *App) Events(n int) ([]audit.Event, error) {
	if a.Audit == nil {
		return nil, nil
	}
	events, err := a.Audit.Tail(instance.Key, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
