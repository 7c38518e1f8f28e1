package integration

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"testing"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/edgerelay/internal/config"
)

// helperArg turns the test binary into the backend when passed after "--".
// The backend only sees the configuration mapping, so an argument is the
// one marker that reaches it.
const helperArg = "edgerelay-helper-backend"

// helperCommand is the backend command line that re-executes this test
// binary as the backend.
func helperCommand() string {
	return shellquote.Join(os.Args[0], "-test.run=^TestHelperBackend$", "--", helperArg)
}

type sendRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// TestHelperBackend is not a real test. It serves a stand-in for the SMTP
// backend when started by the process runtime.
func TestHelperBackend(t *testing.T) {
	if args := flag.Args(); len(args) == 0 || args[0] != helperArg {
		t.Skip("helper backend only runs as a child process")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/env", func(w http.ResponseWriter, r *http.Request) {
		env := map[string]string{"pid": strconv.Itoa(os.Getpid())}
		for _, k := range append(config.RequiredKeys, config.ServerPortKey) {
			env[k] = os.Getenv(k)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(env)
	})
	mux.HandleFunc("/send-email", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-API-Key") != os.Getenv("API_KEY") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "to": os.Getenv("RECIPIENT_EMAIL")})
	})

	srv := &http.Server{Addr: "127.0.0.1:" + os.Getenv(config.ServerPortKey), Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		t.Fatalf("backend failed: %v", err)
	}
}
