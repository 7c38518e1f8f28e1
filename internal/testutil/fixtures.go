package testutil

import (
	"embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/edgerelay/internal/config"
)

//go:embed fixtures/*.toml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// WriteFixture copies a fixture into a temporary directory and returns its
// path, for code that reads settings from disk.
func WriteFixture(t *testing.T, name string) string {
	t.Helper()

	data, err := LoadFixture(name)
	if err != nil {
		t.Fatalf("Failed to load fixture %s: %v", name, err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// ValidSettingsPath returns the path to a copy of the valid settings fixture.
func ValidSettingsPath(t *testing.T) string {
	return WriteFixture(t, "valid_settings.toml")
}

// InvalidSettingsPath returns the path to a copy of the invalid settings
// fixture.
func InvalidSettingsPath(t *testing.T) string {
	return WriteFixture(t, "invalid_settings.toml")
}

// BackendMapping returns a complete configuration mapping without
// SERVER_PORT.
func BackendMapping() config.Mapping {
	return config.Mapping{
		"SMTP_HOST":       "smtp.example.com",
		"SMTP_PORT":       "587",
		"SMTP_USERNAME":   "user@example.com",
		"SMTP_PASSWORD":   "hunter2",
		"RECIPIENT_EMAIL": "inbox@example.com",
		"API_KEY":         "key-123",
	}
}
