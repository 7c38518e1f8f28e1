package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/edgerelay/internal/config"
)

// RouterEnv lists every environment variable settings are read from.
var RouterEnv = []string{
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "RECIPIENT_EMAIL", "API_KEY",
	"EDGERELAY_LISTEN", "EDGERELAY_RUNTIME", "EDGERELAY_INSTANCE_PORT", "EDGERELAY_SLEEP_AFTER",
	"EDGERELAY_START_TIMEOUT", "EDGERELAY_COMMAND", "EDGERELAY_IMAGE", "EDGERELAY_STATE_DIR",
	"EDGERELAY_READY_PATH", "EDGERELAY_ACCESS_LOG", "EDGERELAY_HEALTH_INTERVAL",
	"EDGERELAY_SUSPEND_UNHEALTHY",
}

// ClearEnv unsets every router variable for the duration of the test.
func ClearEnv(t *testing.T) {
	t.Helper()
	for _, k := range RouterEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// SetBackendEnv exports BackendMapping as environment variables.
func SetBackendEnv(t *testing.T) {
	t.Helper()
	for k, v := range BackendMapping() {
		t.Setenv(k, v)
	}
}

// TestEnv is an isolated environment for commands that read settings from
// the process environment.
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	StateDir string
}

// NewTestEnv clears the router environment, exports a complete backend
// mapping and selects the mock runtime with a temporary state directory.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	ClearEnv(t)
	SetBackendEnv(t)

	tmpDir := t.TempDir()
	env := &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		StateDir: filepath.Join(tmpDir, "state"),
	}

	t.Setenv("EDGERELAY_RUNTIME", "mock")
	t.Setenv("EDGERELAY_STATE_DIR", env.StateDir)
	return env
}

// Unset removes a variable for the rest of the test.
func (e *TestEnv) Unset(key string) {
	e.T.Helper()
	e.T.Setenv(key, "")
	os.Unsetenv(key)
}

// Settings returns mock-runtime settings with the backend mapping and the
// environment's state directory, without reading the environment.
func (e *TestEnv) Settings() *config.Settings {
	s := config.Defaults()
	s.Runtime = "mock"
	s.Listen = "127.0.0.1:0"
	s.StateDir = e.StateDir
	for k, v := range BackendMapping() {
		s.Backend[k] = v
	}
	return s
}
