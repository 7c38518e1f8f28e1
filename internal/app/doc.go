// Package app wires edgerelay's dependencies together for the CLI.
//
// The App struct holds the loaded settings, the backend runtime and the
// optional audit logger. Tests substitute dependencies with functional
// options:
//
//	a, err := app.New(settings)
//
//	a, err := app.New(settings,
//	    app.WithRuntime(runtime.NewMockRuntime()),
//	    app.WithAudit(audit.NewLogger(t.TempDir())),
//	)
//
// Server builds the instance registry, the forwarding gateway and the HTTP
// server in one step. Status and Suspend act on the instance through the
// runtime directly so they work from a separate invocation.
package app
