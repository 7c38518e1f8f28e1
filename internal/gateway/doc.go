// Package gateway provides the forwarding gateway in front of the backend
// instance.
//
// Every inbound request, whatever its method or path, is forwarded to the
// one backend instance. The gateway resolves the instance through the
// registry, which starts it on demand, then relays the request and the
// response verbatim:
//
//   - Method, path, query, headers, body and trailers pass through.
//   - The inbound Host header is kept; no X-Forwarded-* headers are added.
//   - Streaming responses are flushed as they arrive.
//   - Nothing is retried.
//
// # Errors
//
// Failures of this layer map to status codes:
//
//	configuration error         → 500
//	instance unavailable        → 503
//	network failure forwarding  → 502
//
// Error statuses produced by the backend itself are relayed unchanged.
//
// # Access Log
//
// When AccessLogPath is set, one JSON line per request is written with the
// request ID, method, path, status, duration and activation ID. The file
// is rotated by size, keeping three previous files.
//
// # Server
//
// Server wraps the gateway in an http.Server. Shutdown drains in-flight
// requests and then suspends the instance.
package gateway
