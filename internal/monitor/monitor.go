// Package monitor provides background health monitoring for the backend
// instance.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/firefly-engineering/edgerelay/internal/audit"
	"github.com/firefly-engineering/edgerelay/internal/health"
	"github.com/firefly-engineering/edgerelay/internal/instance"
	"github.com/firefly-engineering/edgerelay/internal/logging"
)

// Target is the instance being watched.
type Target interface {
	Snapshot() instance.Snapshot
	Suspend(ctx context.Context) error
}

// CheckResult holds the result of a single health check.
type CheckResult struct {
	ActivationID string
	Status       health.Status
}

// Monitor periodically probes the running instance.
type Monitor struct {
	interval         time.Duration
	target           Target
	readyPath        string
	suspendUnhealthy bool
	auditLog         *audit.Logger

	mu   sync.Mutex
	last CheckResult
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSuspendUnhealthy suspends an instance that fails a check so the next
// request starts a fresh one.
func WithSuspendUnhealthy(enabled bool) Option {
	return func(m *Monitor) {
		m.suspendUnhealthy = enabled
	}
}

// WithAuditLogger sets the audit logger for recording health transitions.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(m *Monitor) {
		m.auditLog = logger
	}
}

// WithReadyPath probes with an HTTP GET on path instead of a TCP connect.
func WithReadyPath(path string) Option {
	return func(m *Monitor) {
		m.readyPath = path
	}
}

// New creates a new Monitor.
func New(interval time.Duration, target Target, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		target:   target,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting health monitor", "interval", m.interval, "suspendUnhealthy", m.suspendUnhealthy)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("health monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes the instance once. Instances that are not running are
// reported as stopped without being probed.
func (m *Monitor) Check(ctx context.Context) CheckResult {
	snap := m.target.Snapshot()

	result := CheckResult{ActivationID: snap.ActivationID, Status: health.StatusStopped}
	if snap.State == instance.Running && snap.Addr != "" {
		probe := health.Probe{Addr: snap.Addr, Path: m.readyPath}
		result.Status = probe.Check(ctx)
	}

	m.mu.Lock()
	changed := result != m.last
	m.last = result
	m.mu.Unlock()

	if changed && result.Status != health.StatusStopped {
		logging.Debug("instance health changed", "activation", result.ActivationID, "status", result.Status)
		if m.auditLog != nil {
			_ = m.auditLog.LogEvent(audit.EventHealth, instance.Key, result.ActivationID, string(result.Status))
		}
	}

	if result.Status == health.StatusUnhealthy {
		logging.Warn("instance failed health check", "activation", result.ActivationID, "addr", snap.Addr)
		if m.suspendUnhealthy {
			if err := m.target.Suspend(ctx); err != nil {
				logging.Warn("failed to suspend unhealthy instance", "error", err)
				if m.auditLog != nil {
					_ = m.auditLog.LogEvent(audit.EventError, instance.Key, result.ActivationID, "suspend unhealthy: "+err.Error())
				}
			}
		}
	}

	return result
}
