// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// TOML settings fixtures are embedded using go:embed:
//
//	fixtures/valid_settings.toml
//	fixtures/invalid_settings.toml
//
// WriteFixture copies one to a temporary file for code that reads settings
// from disk:
//
//	s, err := config.Load(testutil.ValidSettingsPath(t))
//
// # Environment
//
// Settings are read from the process environment, so tests isolate it:
//
//	env := testutil.NewTestEnv(t) // mock runtime, temp state dir, full mapping
//	env.Unset("API_KEY")
//
// BackendMapping returns the complete mapping used throughout the tests.
package testutil
