package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Status represents the health status of a backend instance
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusStopped   Status = "stopped"

	// DefaultPollInterval is the delay between readiness attempts.
	DefaultPollInterval = 100 * time.Millisecond

	dialTimeout = time.Second
)

// ErrExited is returned by WaitReady when the instance exits before it
// becomes ready.
var ErrExited = fmt.Errorf("instance exited before becoming ready")

// Probe describes how an instance's readiness is checked.
type Probe struct {
	// Addr is the host:port the instance listens on.
	Addr string
	// Path, when set, switches from a TCP connect to an HTTP GET that must
	// answer with a status below 500.
	Path string
	// Interval between attempts; DefaultPollInterval when zero.
	Interval time.Duration
}

// CheckTCP reports whether a TCP connection to addr can be established.
func CheckTCP(ctx context.Context, addr string) bool {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// CheckHTTP reports whether GET http://addr+path answers below 500.
func CheckHTTP(ctx context.Context, client *http.Client, addr, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Check runs the probe once.
func (p Probe) Check(ctx context.Context) Status {
	ok := false
	if p.Path != "" {
		ok = CheckHTTP(ctx, &http.Client{Timeout: dialTimeout}, p.Addr, p.Path)
	} else {
		ok = CheckTCP(ctx, p.Addr)
	}
	if ok {
		return StatusHealthy
	}
	return StatusUnhealthy
}

// WaitReady polls the probe until it succeeds, timeout elapses, ctx is
// cancelled, or exited is closed. A nil exited channel is never closed.
func WaitReady(ctx context.Context, p Probe, timeout time.Duration, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.Check(ctx) == StatusHealthy {
			return nil
		}

		select {
		case <-exited:
			return ErrExited
		case <-ctx.Done():
			return fmt.Errorf("instance at %s not ready after %s: %w", p.Addr, timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// FormatDuration renders d in a compact human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
