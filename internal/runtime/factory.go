package runtime

import (
	"fmt"
	"os"

	"github.com/firefly-engineering/edgerelay/internal/logging"
)

// RuntimeType identifies which backend runtime to use
type RuntimeType string

const (
	RuntimeProcess RuntimeType = "process"
	RuntimeDocker  RuntimeType = "docker"
	RuntimeMock    RuntimeType = "mock"
)

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use
	Type RuntimeType

	// Command is the backend argv (process only)
	Command []string

	// Image is the backend image (docker only)
	Image string

	// StateDir holds runtime state such as pid files (process only)
	StateDir string
}

// New creates a new Runtime based on the configuration.
func New(cfg *Config) (Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runtime config is required")
	}

	logging.Debug("creating runtime", "type", cfg.Type)

	switch cfg.Type {
	case RuntimeProcess:
		return NewProcessRuntime(cfg.Command, cfg.StateDir)

	case RuntimeDocker:
		if cfg.Image == "" {
			return nil, fmt.Errorf("docker runtime requires an image")
		}
		return NewDockerRuntime(cfg.Image)

	case RuntimeMock:
		m := NewMockRuntime()
		m.Handler = StubBackend()
		return m, nil

	default:
		return nil, fmt.Errorf("unknown runtime type: %s", cfg.Type)
	}
}

// Available returns the runtimes usable on this system
func Available() []RuntimeType {
	available := []RuntimeType{RuntimeProcess}

	if os.Getenv("DOCKER_HOST") != "" {
		available = append(available, RuntimeDocker)
	} else if _, err := os.Stat("/var/run/docker.sock"); err == nil {
		available = append(available, RuntimeDocker)
	}

	return append(available, RuntimeMock)
}
