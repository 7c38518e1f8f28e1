// Package errors provides typed errors with exit codes for edgerelay.
//
// # Error Types
//
// RelayError is the base error type that wraps an error with an exit code
// and the HTTP status the gateway answers with when the error reaches a
// caller:
//
//	type RelayError struct {
//	    Code    int    // Exit code
//	    Status  int    // HTTP status for callers
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess             = 0 // Success
//	ExitGeneralError        = 1 // General/unknown errors
//	ExitConfigError         = 2 // Required configuration missing or unreadable
//	ExitInstanceUnavailable = 3 // Backend instance could not be started or reached
//	ExitForwardFailed       = 4 // Network exchange with the instance failed
//	ExitRuntimeError        = 5 // Runtime (process/docker) operation failed
//	ExitUnknownInstance     = 6 // Resolution of a key other than the fixed one
//
// # Error Constructors
//
//	errors.ConfigError("SMTP_HOST is required", nil)
//	errors.InstanceUnavailable("smtp-backend", err)
//	errors.ForwardFailed(err)
//	errors.RuntimeError("start", err)
//
// # Extracting Exit Codes and Statuses
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
//
//	http.Error(w, msg, errors.HTTPStatus(err))
package errors
