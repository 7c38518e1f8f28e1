// Package health provides readiness probing for backend instances.
//
// After a runtime starts an instance, the registry waits for it to accept
// traffic before forwarding any request. A Probe checks either a TCP
// connect to the instance address or, when Path is set, an HTTP GET:
//
//	p := health.Probe{Addr: "127.0.0.1:8080", Path: "/health"}
//	err := health.WaitReady(ctx, p, 30*time.Second, inst.Exited())
//
// WaitReady returns early with ErrExited when the instance process exits
// while it is still being probed.
//
// # Health Status
//
//	StatusHealthy   - Probe succeeded
//	StatusUnhealthy - Instance running but probe failed
//	StatusStopped   - Instance not running
package health
