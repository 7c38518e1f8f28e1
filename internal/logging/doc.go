// Package logging provides logging utilities for edgerelay.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("starting instance", "key", key, "runtime", rt.Name())
//	logging.Warn("readiness probe failed", "addr", addr, "err", err)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Listening on %s", addr)
//	logging.UserSuccess("Instance %s suspended", key)
//	logging.UserWarning("No state directory configured")
//	logging.UserError("Configuration invalid: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
