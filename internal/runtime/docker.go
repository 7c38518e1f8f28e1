package runtime

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"github.com/firefly-engineering/edgerelay/internal/logging"
	"github.com/firefly-engineering/edgerelay/internal/port"
)

// Container labels set on every instance.
const (
	LabelInstance   = "edgerelay.instance"
	LabelActivation = "edgerelay.activation"
)

const publishHost = "127.0.0.1"

// DockerRuntime runs the backend as a container through the Docker Engine
// API. The instance port is published on a loopback host port.
type DockerRuntime struct {
	client *client.Client

	// Image is the backend image
	Image string

	// ContainerPrefix is prepended to instance names to form container names
	ContainerPrefix string

	ports *port.Allocator

	mu        sync.Mutex
	hostPorts map[string]int
	instances map[string]*Instance
}

// NewDockerRuntime connects to the engine configured by the environment
// (DOCKER_HOST and friends). Host ports are taken from the default range.
func NewDockerRuntime(image string) (*DockerRuntime, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ports, err := port.NewAllocator(publishHost, port.DefaultMin, port.DefaultMax)
	if err != nil {
		return nil, err
	}

	return &DockerRuntime{
		client:          c,
		Image:           image,
		ContainerPrefix: "edgerelay-",
		ports:           ports,
		hostPorts:       make(map[string]int),
		instances:       make(map[string]*Instance),
	}, nil
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return "docker"
}

// containerName returns the full container name for an instance
func (r *DockerRuntime) containerName(name string) string {
	return r.ContainerPrefix + name
}

// Start creates and starts a fresh container. A leftover container with the
// same name is removed first.
func (r *DockerRuntime) Start(ctx context.Context, opts StartOptions) (*Instance, error) {
	name := r.containerName(opts.Name)

	if err := r.remove(ctx, name); err != nil {
		return nil, err
	}

	hostPort, err := r.ports.Allocate()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate host port: %w", err)
	}

	containerPort, _ := network.PortFrom(uint16(opts.Port), "tcp")
	hostIP, err := netip.ParseAddr(publishHost)
	if err != nil {
		r.ports.Release(hostPort)
		return nil, err
	}

	cCfg := &container.Config{
		Image: r.Image,
		Env:   opts.Env.Environ(),
		Labels: map[string]string{
			LabelInstance:   opts.Name,
			LabelActivation: opts.ActivationID,
		},
		ExposedPorts: network.PortSet{containerPort: struct{}{}},
	}

	hCfg := &container.HostConfig{
		PortBindings: network.PortMap{
			containerPort: []network.PortBinding{{
				HostIP:   hostIP,
				HostPort: strconv.Itoa(hostPort),
			}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}

	logging.Debug("creating container", "name", name, "image", r.Image, "hostPort", hostPort)
	created, err := r.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     cCfg,
		HostConfig: hCfg,
		Name:       name,
		Image:      r.Image,
	})
	if err != nil {
		r.ports.Release(hostPort)
		return nil, fmt.Errorf("create container %q: %w", name, err)
	}

	if _, err := r.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		r.ports.Release(hostPort)
		_, _ = r.client.ContainerRemove(context.Background(), created.ID, client.ContainerRemoveOptions{Force: true})
		return nil, fmt.Errorf("start container %q: %w", name, err)
	}

	addr := net.JoinHostPort(publishHost, strconv.Itoa(hostPort))
	inst := NewInstance(opts.Name, created.ID, addr)

	r.mu.Lock()
	r.hostPorts[opts.Name] = hostPort
	r.instances[opts.Name] = inst
	r.mu.Unlock()

	go r.watch(opts.Name, created.ID, inst)

	return inst, nil
}

// watch marks the instance exited once its container stops running.
func (r *DockerRuntime) watch(name, id string, inst *Instance) {
	wait := r.client.ContainerWait(context.Background(), id, client.ContainerWaitOptions{})

	var exitErr error
	select {
	case err := <-wait.Error:
		exitErr = err
	case res := <-wait.Result:
		if res.StatusCode != 0 {
			exitErr = fmt.Errorf("container exited with status %d", res.StatusCode)
		}
	}
	logging.Debug("container exited", "instance", name, "id", id, "error", exitErr)

	r.mu.Lock()
	if r.instances[name] == inst {
		delete(r.instances, name)
		if p, ok := r.hostPorts[name]; ok {
			r.ports.Release(p)
			delete(r.hostPorts, name)
		}
	}
	r.mu.Unlock()

	inst.markExited(exitErr)
}

// Stop stops and removes the container.
func (r *DockerRuntime) Stop(ctx context.Context, name string) error {
	return r.remove(ctx, r.containerName(name))
}

func (r *DockerRuntime) remove(ctx context.Context, containerName string) error {
	_, err := r.client.ContainerInspect(ctx, containerName, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %q: %w", containerName, err)
	}

	_, _ = r.client.ContainerStop(ctx, containerName, client.ContainerStopOptions{})
	_, err = r.client.ContainerRemove(ctx, containerName, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", containerName, err)
	}
	return nil
}

// Status inspects the container.
func (r *DockerRuntime) Status(ctx context.Context, name string) (*InstanceInfo, error) {
	containerName := r.containerName(name)
	inspect, err := r.client.ContainerInspect(ctx, containerName, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return &InstanceInfo{Name: name, Status: StatusNotFound}, nil
		}
		return nil, fmt.Errorf("inspect container %q: %w", containerName, err)
	}

	info := &InstanceInfo{
		Name:   name,
		ID:     inspect.Container.ID,
		Status: StatusStopped,
	}
	if inspect.Container.Config != nil && inspect.Container.Config.Labels != nil {
		info.ActivationID = inspect.Container.Config.Labels[LabelActivation]
	}
	if inspect.Container.State != nil {
		if inspect.Container.State.Running {
			info.Status = StatusRunning
		}
		if t, err := time.Parse(time.RFC3339Nano, inspect.Container.State.StartedAt); err == nil {
			info.StartedAt = t
		}
	}

	r.mu.Lock()
	if p, ok := r.hostPorts[name]; ok {
		info.Addr = net.JoinHostPort(publishHost, strconv.Itoa(p))
	}
	r.mu.Unlock()

	return info, nil
}
