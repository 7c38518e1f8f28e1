package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/edgerelay/internal/errors"
)

var allEnv = []string{
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "RECIPIENT_EMAIL", "API_KEY",
	"EDGERELAY_LISTEN", "EDGERELAY_RUNTIME", "EDGERELAY_INSTANCE_PORT", "EDGERELAY_SLEEP_AFTER",
	"EDGERELAY_START_TIMEOUT", "EDGERELAY_COMMAND", "EDGERELAY_IMAGE", "EDGERELAY_STATE_DIR",
	"EDGERELAY_READY_PATH", "EDGERELAY_ACCESS_LOG", "EDGERELAY_HEALTH_INTERVAL",
	"EDGERELAY_SUSPEND_UNHEALTHY",
}

// clearEnv unsets every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func setBackendEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USERNAME", "user@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("RECIPIENT_EMAIL", "inbox@example.com")
	t.Setenv("API_KEY", "key-123")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgerelay.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	setBackendEnv(t)
	t.Setenv("EDGERELAY_COMMAND", "smtp-backend")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Listen != DefaultListen {
		t.Errorf("Listen = %q, want %q", s.Listen, DefaultListen)
	}
	if s.InstancePort != DefaultInstancePort {
		t.Errorf("InstancePort = %d, want %d", s.InstancePort, DefaultInstancePort)
	}
	if s.SleepAfter.Duration != DefaultSleepAfter {
		t.Errorf("SleepAfter = %v, want %v", s.SleepAfter.Duration, DefaultSleepAfter)
	}

	want := Mapping{
		"SMTP_HOST":       "smtp.example.com",
		"SMTP_PORT":       "587",
		"SMTP_USERNAME":   "user@example.com",
		"SMTP_PASSWORD":   "secret",
		"RECIPIENT_EMAIL": "inbox@example.com",
		"API_KEY":         "key-123",
		"SERVER_PORT":     "8080",
	}
	if got := s.Mapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mapping() = %v, want %v", got, want)
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
listen = ":9000"
runtime = "docker"
image = "smtp-backend:1"
instance_port = 9090
sleep_after = "2m"
health_interval = "15s"
suspend_unhealthy = true

[backend]
SMTP_HOST = "file-host"
SMTP_PORT = "25"
SMTP_USERNAME = "file-user"
SMTP_PASSWORD = "file-pass"
RECIPIENT_EMAIL = "file@example.com"
API_KEY = "file-key"
`)
	t.Setenv("SMTP_HOST", "env-host")
	t.Setenv("EDGERELAY_LISTEN", ":9100")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Listen != ":9100" {
		t.Errorf("Listen = %q, want env value :9100", s.Listen)
	}
	if s.Runtime != "docker" {
		t.Errorf("Runtime = %q, want docker", s.Runtime)
	}
	if s.SleepAfter.Duration != 2*time.Minute {
		t.Errorf("SleepAfter = %v, want 2m", s.SleepAfter.Duration)
	}
	if s.HealthInterval.Duration != 15*time.Second || !s.SuspendUnhealthy {
		t.Errorf("HealthInterval = %v, SuspendUnhealthy = %v", s.HealthInterval.Duration, s.SuspendUnhealthy)
	}

	m := s.Mapping()
	if m["SMTP_HOST"] != "env-host" {
		t.Errorf("SMTP_HOST = %q, want env-host", m["SMTP_HOST"])
	}
	if m["SMTP_USERNAME"] != "file-user" {
		t.Errorf("SMTP_USERNAME = %q, want file-user", m["SMTP_USERNAME"])
	}
	if m[ServerPortKey] != "9090" {
		t.Errorf("SERVER_PORT = %q, want 9090", m[ServerPortKey])
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	setBackendEnv(t)
	os.Unsetenv("API_KEY")
	t.Setenv("EDGERELAY_COMMAND", "smtp-backend")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() should fail when API_KEY is missing")
	}
	if code := errors.GetExitCode(err); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
	if !strings.Contains(err.Error(), "API_KEY") {
		t.Errorf("error %q should name API_KEY", err)
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("EDGERELAY_RUNTIME", "docker")
	t.Setenv("EDGERELAY_STATE_DIR", "/tmp/edgerelay")

	s, err := Read("")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if s.Runtime != "docker" || s.StateDir != "/tmp/edgerelay" {
		t.Errorf("Read() = %+v", s)
	}
	if err := s.Validate(); err == nil {
		t.Error("Validate() should fail without image and backend entries")
	}
}

func TestLoad_EmptyValueIsMissing(t *testing.T) {
	clearEnv(t)
	setBackendEnv(t)
	t.Setenv("SMTP_HOST", "")
	t.Setenv("EDGERELAY_COMMAND", "smtp-backend")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() should fail when SMTP_HOST is empty")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not integer", "EDGERELAY_INSTANCE_PORT", "http"},
		{"port out of range", "EDGERELAY_INSTANCE_PORT", "70000"},
		{"bad sleep", "EDGERELAY_SLEEP_AFTER", "soon"},
		{"zero timeout", "EDGERELAY_START_TIMEOUT", "0s"},
		{"unknown runtime", "EDGERELAY_RUNTIME", "podman"},
		{"bad access log", "EDGERELAY_ACCESS_LOG", "sometimes"},
		{"relative ready path", "EDGERELAY_READY_PATH", "health"},
		{"negative health interval", "EDGERELAY_HEALTH_INTERVAL", "-5s"},
		{"bad suspend unhealthy", "EDGERELAY_SUSPEND_UNHEALTHY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setBackendEnv(t)
			t.Setenv("EDGERELAY_COMMAND", "smtp-backend")
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			if err == nil {
				t.Fatalf("Load() with %s=%q should fail", tt.key, tt.value)
			}
			if code := errors.GetExitCode(err); code != errors.ExitConfigError {
				t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
			}
		})
	}
}

func TestLoad_RuntimeRequirements(t *testing.T) {
	clearEnv(t)
	setBackendEnv(t)

	if _, err := Load(""); err == nil {
		t.Error("process runtime without command should fail")
	}

	t.Setenv("EDGERELAY_RUNTIME", "docker")
	if _, err := Load(""); err == nil {
		t.Error("docker runtime without image should fail")
	}

	t.Setenv("EDGERELAY_IMAGE", "smtp-backend:latest")
	if _, err := Load(""); err != nil {
		t.Errorf("docker runtime with image: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "listen = [")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail for malformed TOML")
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		command string
		want    []string
		wantErr bool
	}{
		{"smtp-backend", []string{"smtp-backend"}, false},
		{"/usr/bin/smtp-backend --log 'json output'", []string{"/usr/bin/smtp-backend", "--log", "json output"}, false},
		{`go run "./cmd/smtp backend"`, []string{"go", "run", "./cmd/smtp backend"}, false},
		{"unterminated 'quote", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			s := &Settings{Command: tt.command}
			got, err := s.CommandArgs()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CommandArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CommandArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapping_Environ(t *testing.T) {
	m := Mapping{"B": "2", "A": "1", "C": "x=y"}
	want := []string{"A=1", "B=2", "C=x=y"}
	if got := m.Environ(); !reflect.DeepEqual(got, want) {
		t.Errorf("Environ() = %v, want %v", got, want)
	}
}

func TestMapping_CloneAndEqual(t *testing.T) {
	m := Mapping{"SMTP_HOST": "h", "API_KEY": "k"}
	c := m.Clone()
	if !m.Equal(c) {
		t.Error("clone should equal original")
	}
	c["SMTP_HOST"] = "other"
	if m["SMTP_HOST"] != "h" {
		t.Error("modifying clone changed original")
	}
	if m.Equal(c) {
		t.Error("mappings with different values should not be equal")
	}
}

func TestMapping_ValuesNotValidated(t *testing.T) {
	m := Mapping{}
	for _, k := range RequiredKeys {
		m[k] = "not a real value !!"
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() should accept arbitrary values: %v", err)
	}
}

func TestMapping_Redacted(t *testing.T) {
	m := Mapping{"SMTP_PASSWORD": "secret", "API_KEY": "k", "SMTP_HOST": "h"}
	r := m.Redacted()
	if r["SMTP_PASSWORD"] == "secret" || r["API_KEY"] == "k" {
		t.Errorf("Redacted() leaked secrets: %v", r)
	}
	if r["SMTP_HOST"] != "h" {
		t.Errorf("SMTP_HOST = %q, want h", r["SMTP_HOST"])
	}
	if m["SMTP_PASSWORD"] != "secret" {
		t.Error("Redacted() modified the original")
	}
}
