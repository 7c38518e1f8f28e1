package runtime

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessRuntime_InjectsEnv(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "env.txt")

	rt, err := NewProcessRuntime([]string{"sh", "-c", `printf '%s %s' "$SMTP_HOST" "$SERVER_PORT" > "$OUT"`}, "")
	if err != nil {
		t.Fatalf("NewProcessRuntime() error = %v", err)
	}

	inst, err := rt.Start(context.Background(), StartOptions{
		Name: "smtp-backend",
		Port: 8080,
		Env: map[string]string{
			"SMTP_HOST":   "smtp.example.com",
			"SERVER_PORT": "8080",
			"OUT":         out,
		},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if inst.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q, want 127.0.0.1:8080", inst.Addr)
	}

	waitExited(t, inst, 5*time.Second)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("backend did not write env file: %v", err)
	}
	if got := string(data); got != "smtp.example.com 8080" {
		t.Errorf("backend saw %q, want %q", got, "smtp.example.com 8080")
	}
}

func TestProcessRuntime_MinimalEnvironment(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "env.txt")
	t.Setenv("EDGERELAY_LISTEN", ":9999")
	t.Setenv("ROUTER_SECRET", "leak")

	rt, err := NewProcessRuntime([]string{"sh", "-c", `printf '%s|%s|%s' "$EDGERELAY_LISTEN" "$ROUTER_SECRET" "$API_KEY" > "$OUT"`}, "")
	if err != nil {
		t.Fatalf("NewProcessRuntime() error = %v", err)
	}

	inst, err := rt.Start(context.Background(), StartOptions{
		Name: "smtp-backend",
		Port: 8080,
		Env:  map[string]string{"API_KEY": "key-123", "OUT": out},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExited(t, inst, 5*time.Second)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("backend did not write env file: %v", err)
	}
	if got := string(data); got != "||key-123" {
		t.Errorf("backend saw %q, want only the mapping", got)
	}
}

func TestBaseEnviron(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("EDGERELAY_RUNTIME", "process")

	env := baseEnviron()
	var sawPath bool
	for _, kv := range env {
		if kv == "PATH=/usr/bin" {
			sawPath = true
		}
		if strings.HasPrefix(kv, "EDGERELAY_") {
			t.Errorf("baseEnviron() leaked %q", kv)
		}
	}
	if !sawPath {
		t.Errorf("baseEnviron() = %v, want PATH", env)
	}
}

func TestProcessRuntime_StopAndPidFile(t *testing.T) {
	requireShell(t)
	stateDir := t.TempDir()

	rt, err := NewProcessRuntime([]string{"sh", "-c", "exec sleep 30"}, stateDir)
	if err != nil {
		t.Fatalf("NewProcessRuntime() error = %v", err)
	}
	rt.GracePeriod = 200 * time.Millisecond

	ctx := context.Background()
	inst, err := rt.Start(ctx, StartOptions{Name: "smtp-backend", ActivationID: "act-1", Port: 18080})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := rt.Start(ctx, StartOptions{Name: "smtp-backend", Port: 18080}); err == nil {
		t.Error("Start() of a running instance should fail")
	}

	info, err := rt.Status(ctx, "smtp-backend")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if info.Status != StatusRunning {
		t.Errorf("Status = %v, want running", info.Status)
	}

	// A second runtime sharing the state directory sees the instance
	// through its pid file.
	other, _ := NewProcessRuntime([]string{"unused"}, stateDir)
	foreign, err := other.Status(ctx, "smtp-backend")
	if err != nil {
		t.Fatalf("foreign Status() error = %v", err)
	}
	if foreign.Status != StatusRunning || foreign.ActivationID != "act-1" {
		t.Errorf("foreign Status = %+v, want running with activation act-1", foreign)
	}
	if !strings.HasSuffix(foreign.Addr, ":18080") {
		t.Errorf("foreign Addr = %q, want port 18080", foreign.Addr)
	}

	if err := rt.Stop(ctx, "smtp-backend"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitExited(t, inst, 5*time.Second)

	// The exit goroutine removes the pid file after Wait returns.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(stateDir, "smtp-backend.pid")); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pid file not removed after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}

	info, _ = rt.Status(ctx, "smtp-backend")
	if info.Status != StatusNotFound {
		t.Errorf("Status after stop = %v, want not-found", info.Status)
	}
}

func TestProcessRuntime_StopNotRunning(t *testing.T) {
	rt, _ := NewProcessRuntime([]string{"smtp-backend"}, t.TempDir())
	if err := rt.Stop(context.Background(), "smtp-backend"); err != nil {
		t.Errorf("Stop() of absent instance = %v, want nil", err)
	}
}

func TestProcessRuntime_StartFailure(t *testing.T) {
	rt, _ := NewProcessRuntime([]string{"/nonexistent/smtp-backend"}, "")
	if _, err := rt.Start(context.Background(), StartOptions{Name: "smtp-backend", Port: 8080}); err == nil {
		t.Error("Start() with a missing binary should fail")
	}
}

func TestProcessRuntime_EmptyCommand(t *testing.T) {
	rt, err := NewProcessRuntime(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewProcessRuntime() error = %v", err)
	}
	if _, err := rt.Start(context.Background(), StartOptions{Name: "smtp-backend", Port: 8080}); err == nil {
		t.Error("Start() with an empty command should fail")
	}
	info, err := rt.Status(context.Background(), "smtp-backend")
	if err != nil || info.Status != StatusNotFound {
		t.Errorf("Status() = %+v, %v; want not-found", info, err)
	}
}
