// Package runtime defines the backend instance runtime interface for edgerelay.
// This abstraction allows for multiple backend implementations (process, docker)
// and enables comprehensive testing through mocking.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/firefly-engineering/edgerelay/internal/config"
)

// InstanceStatus represents the state of a backend instance
type InstanceStatus string

const (
	StatusRunning  InstanceStatus = "running"
	StatusStopped  InstanceStatus = "stopped"
	StatusNotFound InstanceStatus = "not-found"
	StatusUnknown  InstanceStatus = "unknown"
)

// InstanceInfo holds information about an instance as the runtime sees it
type InstanceInfo struct {
	Name         string
	ID           string
	ActivationID string
	Status       InstanceStatus
	Addr         string
	StartedAt    time.Time
}

// StartOptions holds options for starting an instance
type StartOptions struct {
	Name         string
	ActivationID string
	Port         int            // Port the backend listens on
	Env          config.Mapping // Injected configuration entries
}

// Instance is a started backend instance.
type Instance struct {
	Name      string
	ID        string // pid or container ID
	Addr      string // host:port to forward to
	StartedAt time.Time

	once sync.Once
	done chan struct{}
	err  error
}

// NewInstance creates a running instance record.
func NewInstance(name, id, addr string) *Instance {
	return &Instance{
		Name:      name,
		ID:        id,
		Addr:      addr,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Exited is closed once the instance has stopped, for any reason.
func (i *Instance) Exited() <-chan struct{} {
	return i.done
}

// Err returns the exit error after Exited is closed.
func (i *Instance) Err() error {
	<-i.done
	return i.err
}

func (i *Instance) markExited(err error) {
	i.once.Do(func() {
		i.err = err
		close(i.done)
	})
}

// Runtime is the interface that instance backends must implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "process", "docker")
	Name() string

	// Start launches a new instance and returns once it has been spawned.
	// The instance outlives ctx.
	Start(ctx context.Context, opts StartOptions) (*Instance, error)

	// Stop stops and removes the named instance. Stopping an instance
	// that is not running is not an error.
	Stop(ctx context.Context, name string) error

	// Status returns the runtime's view of the named instance
	Status(ctx context.Context, name string) (*InstanceInfo, error)
}
