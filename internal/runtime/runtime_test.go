package runtime

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInstance_Exit(t *testing.T) {
	inst := NewInstance("smtp-backend", "1", "127.0.0.1:8080")

	select {
	case <-inst.Exited():
		t.Fatal("new instance should not be exited")
	default:
	}

	cause := errors.New("crashed")
	inst.markExited(cause)
	inst.markExited(errors.New("second exit ignored"))

	select {
	case <-inst.Exited():
	default:
		t.Fatal("Exited() should be closed")
	}
	if inst.Err() != cause {
		t.Errorf("Err() = %v, want %v", inst.Err(), cause)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		wantName string
		wantErr  bool
	}{
		{"nil config", nil, "", true},
		{"process", &Config{Type: RuntimeProcess, Command: []string{"smtp-backend"}}, "process", false},
		{"process without command", &Config{Type: RuntimeProcess}, "process", false},
		{"docker without image", &Config{Type: RuntimeDocker}, "", true},
		{"mock", &Config{Type: RuntimeMock}, "mock", false},
		{"unknown", &Config{Type: "podman"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && rt.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestAvailable_AlwaysIncludesProcess(t *testing.T) {
	available := Available()
	if len(available) == 0 || available[0] != RuntimeProcess {
		t.Errorf("Available() = %v, want process first", available)
	}
}

func TestDockerRuntime_containerName(t *testing.T) {
	rt := &DockerRuntime{ContainerPrefix: "edgerelay-"}

	if got := rt.containerName("smtp-backend"); got != "edgerelay-smtp-backend" {
		t.Errorf("containerName() = %q, want %q", got, "edgerelay-smtp-backend")
	}
	if rt.Name() != "docker" {
		t.Errorf("Name() = %q, want docker", rt.Name())
	}
}

func waitExited(t *testing.T, inst *Instance, timeout time.Duration) {
	t.Helper()
	select {
	case <-inst.Exited():
	case <-time.After(timeout):
		t.Fatalf("instance %s did not exit within %v", inst.Name, timeout)
	}
}

func TestMockRuntime_StartStop(t *testing.T) {
	m := NewMockRuntime()
	m.Addr = "127.0.0.1:9999"
	ctx := context.Background()

	inst, err := m.Start(ctx, StartOptions{Name: "smtp-backend", ActivationID: "a1", Port: 8080})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if inst.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want mock address", inst.Addr)
	}

	if _, err := m.Start(ctx, StartOptions{Name: "smtp-backend"}); err == nil {
		t.Error("second Start() of a running instance should fail")
	}

	info, _ := m.Status(ctx, "smtp-backend")
	if info.Status != StatusRunning || info.ActivationID != "a1" {
		t.Errorf("Status() = %+v, want running with activation a1", info)
	}

	if err := m.Stop(ctx, "smtp-backend"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitExited(t, inst, time.Second)

	info, _ = m.Status(ctx, "smtp-backend")
	if info.Status != StatusNotFound {
		t.Errorf("Status after stop = %v, want not-found", info.Status)
	}

	if m.StartCount() != 2 {
		t.Errorf("StartCount() = %d, want 2", m.StartCount())
	}
}

func TestMockRuntime_InjectedError(t *testing.T) {
	m := NewMockRuntime()
	boom := errors.New("boom")
	m.SetError("Start", boom)

	if _, err := m.Start(context.Background(), StartOptions{Name: "x"}); err != boom {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}

	m.ClearError("Start")
	if _, err := m.Start(context.Background(), StartOptions{Name: "x"}); err != nil {
		t.Errorf("Start() after ClearError: %v", err)
	}
}

func TestMockRuntime_Exit(t *testing.T) {
	m := NewMockRuntime()
	inst, err := m.Start(context.Background(), StartOptions{Name: "x"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	crash := errors.New("exit status 1")
	m.Exit("x", crash)
	waitExited(t, inst, time.Second)
	if inst.Err() != crash {
		t.Errorf("Err() = %v, want %v", inst.Err(), crash)
	}
}
