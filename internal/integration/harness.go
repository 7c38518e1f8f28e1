package integration

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/edgerelay/internal/app"
	"github.com/firefly-engineering/edgerelay/internal/config"
	"github.com/firefly-engineering/edgerelay/internal/gateway"
	"github.com/firefly-engineering/edgerelay/internal/instance"
	"github.com/firefly-engineering/edgerelay/internal/port"
)

// EnableEnv gates tests that need an external runtime such as Docker.
const EnableEnv = "EDGERELAY_INTEGRATION_TESTS"

// TestHarness runs a complete gateway on a loopback listener.
type TestHarness struct {
	t        *testing.T
	app      *app.App
	server   *gateway.Server
	registry *instance.Registry
	baseURL  string
	done     chan error
}

// SkipUnlessEnabled skips the test unless EDGERELAY_INTEGRATION_TESTS=1.
func SkipUnlessEnabled(t *testing.T) {
	t.Helper()
	if os.Getenv(EnableEnv) != "1" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnableEnv)
	}
}

// NewHarness wires settings into an app, serves it, and shuts it down when
// the test ends.
func NewHarness(t *testing.T, settings *config.Settings, opts ...app.Option) *TestHarness {
	t.Helper()

	if err := settings.Validate(); err != nil {
		t.Fatalf("invalid settings: %v", err)
	}

	a, err := app.New(settings, opts...)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	srv, reg, err := a.Server()
	if err != nil {
		t.Fatalf("Server() error = %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	h := &TestHarness{
		t:        t,
		app:      a,
		server:   srv,
		registry: reg,
		baseURL:  "http://" + l.Addr().String(),
		done:     make(chan error, 1),
	}
	go func() { h.done <- srv.Serve(l) }()

	t.Cleanup(h.Cleanup)
	return h
}

// Cleanup shuts the server down, which also suspends the instance.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.t.Logf("shutdown: %v", err)
	}
	<-h.done
}

// App returns the wired application.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Registry returns the instance registry behind the gateway.
func (h *TestHarness) Registry() *instance.Registry {
	return h.registry
}

// Do sends a request through the gateway and returns the status and body.
func (h *TestHarness) Do(method, path, body string, header http.Header) (int, http.Header, string) {
	h.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.baseURL+path, r)
	if err != nil {
		h.t.Fatalf("NewRequest failed: %v", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body failed: %v", err)
	}
	return resp.StatusCode, resp.Header, string(data)
}

// Get is Do for a GET without body or headers.
func (h *TestHarness) Get(path string) (int, string) {
	h.t.Helper()
	status, _, body := h.Do(http.MethodGet, path, "", nil)
	return status, body
}

// WaitForState polls the registry until it reaches want.
func (h *TestHarness) WaitForState(want instance.State, timeout time.Duration) {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.registry.Snapshot().State == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	h.t.Fatalf("state = %v after %s, want %v", h.registry.Snapshot().State, timeout, want)
}

// FreePort returns a loopback port that is currently free.
func FreePort(t *testing.T) int {
	t.Helper()
	alloc, err := port.NewAllocator("127.0.0.1", port.DefaultMin, port.DefaultMax)
	if err != nil {
		t.Fatalf("NewAllocator() error = %v", err)
	}
	p, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("no free port: %v", err)
	}
	return p
}
