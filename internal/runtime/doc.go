// Package runtime provides a unified interface for backend instance runtimes.
//
// Supported runtimes:
//   - process: a local child process started from a command line
//   - docker: a container created through the Docker Engine API
//   - mock: an in-memory runtime for tests and dry runs
//
// # Runtime Interface
//
// The Runtime interface defines the operations the instance registry needs:
//   - Start: Launch an instance with injected environment entries
//   - Stop: Stop and remove an instance
//   - Status: Query an instance, including from another process
//
// A started Instance exposes the address to forward to and an Exited
// channel that closes when the instance stops, so that an unexpected exit
// can be observed by the registry.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create a mock implementation that
// records calls, can inject errors, and can simulate an instance exiting.
package runtime
