// Package integration runs edgerelay end to end: settings, runtime,
// registry, gateway and HTTP server together.
//
// Process runtime tests re-execute the test binary as the backend, so they
// need nothing beyond the Go toolchain. Docker tests are skipped unless
// EDGERELAY_INTEGRATION_TESTS=1 and EDGERELAY_TEST_IMAGE names an image
// that serves HTTP on $SERVER_PORT:
//
//	EDGERELAY_INTEGRATION_TESTS=1 EDGERELAY_TEST_IMAGE=smtp-backend:latest \
//	    go test -v ./internal/integration/...
//
// # Test Harness
//
//	h := integration.NewHarness(t, settings)
//	status, body := h.Get("/health")
//	h.WaitForState(instance.Suspended, 5*time.Second)
package integration
