package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/edgerelay/internal/logging"
)

// DefaultGracePeriod is how long Stop waits after SIGINT before killing.
const DefaultGracePeriod = 5 * time.Second

// ProcessRuntime runs the backend as a local child process.
type ProcessRuntime struct {
	// Command is the backend argv
	Command []string

	// Dir is the working directory for the process
	Dir string

	// StateDir holds pid files so other edgerelay invocations can query
	// and stop the instance. Optional.
	StateDir string

	// GracePeriod between SIGINT and SIGKILL on Stop
	GracePeriod time.Duration

	mu    sync.Mutex
	procs map[string]*managedProcess
}

type managedProcess struct {
	cmd          *exec.Cmd
	instance     *Instance
	activationID string
}

type pidFile struct {
	PID          int       `json:"pid"`
	Addr         string    `json:"addr"`
	ActivationID string    `json:"activationId,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
}

// NewProcessRuntime creates a process runtime for the given argv. An empty
// argv still allows Status and Stop on an instance started elsewhere.
func NewProcessRuntime(command []string, stateDir string) (*ProcessRuntime, error) {
	return &ProcessRuntime{
		Command:     command,
		StateDir:    stateDir,
		GracePeriod: DefaultGracePeriod,
		procs:       make(map[string]*managedProcess),
	}, nil
}

// Name returns the runtime identifier
func (r *ProcessRuntime) Name() string {
	return "process"
}

// Start spawns the backend command with the injected environment.
func (r *ProcessRuntime) Start(ctx context.Context, opts StartOptions) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Command) == 0 {
		return nil, fmt.Errorf("backend command is empty")
	}
	if _, ok := r.procs[opts.Name]; ok {
		return nil, fmt.Errorf("instance %s is already running", opts.Name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The process must outlive the request that triggered it, so ctx is
	// not bound to the command.
	cmd := exec.Command(r.Command[0], r.Command[1:]...)
	cmd.Env = append(baseEnviron(), opts.Env.Environ()...)
	cmd.Dir = r.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	logging.Debug("starting backend process", "name", opts.Name, "command", cmd.String(), "port", opts.Port)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", r.Command[0], err)
	}

	pid := cmd.Process.Pid
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.Port))
	inst := NewInstance(opts.Name, strconv.Itoa(pid), addr)
	r.procs[opts.Name] = &managedProcess{cmd: cmd, instance: inst, activationID: opts.ActivationID}

	log := logging.With("instance", opts.Name, "pid", pid)
	go streamOutput(stdout, log.Info, "stdout")
	go streamOutput(stderr, log.Warn, "stderr")

	if err := r.writePidFile(opts.Name, pidFile{
		PID:          pid,
		Addr:         addr,
		ActivationID: opts.ActivationID,
		StartedAt:    inst.StartedAt,
	}); err != nil {
		log.Warn("failed to write pid file", "error", err)
	}

	go func() {
		err := cmd.Wait()
		log.Debug("backend process exited", "error", err)

		r.mu.Lock()
		if mp, ok := r.procs[opts.Name]; ok && mp.instance == inst {
			delete(r.procs, opts.Name)
			r.removePidFile(opts.Name)
		}
		r.mu.Unlock()

		inst.markExited(err)
	}()

	return inst, nil
}

func streamOutput(rc io.ReadCloser, logf func(string, ...any), source string) {
	defer rc.Close()
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		logf("backend output", "source", source, "line", scanner.Text())
	}
}

// Stop sends SIGINT, waits for the grace period, then kills the process.
// Instances started by another edgerelay process are signalled via their
// pid file.
func (r *ProcessRuntime) Stop(ctx context.Context, name string) error {
	r.mu.Lock()
	mp, ok := r.procs[name]
	r.mu.Unlock()

	if !ok {
		return r.stopForeign(name)
	}

	log := logging.With("instance", name, "pid", mp.cmd.Process.Pid)
	if err := mp.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Debug("failed to signal process", "error", err)
	}

	grace := r.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-mp.instance.Exited():
		return nil
	case <-timer.C:
		log.Warn("process did not exit after interrupt, killing")
	case <-ctx.Done():
		log.Warn("stop cancelled, killing process")
	}

	if err := mp.cmd.Process.Kill(); err != nil {
		select {
		case <-mp.instance.Exited():
			return nil
		default:
		}
		return fmt.Errorf("failed to kill process %d: %w", mp.cmd.Process.Pid, err)
	}
	<-mp.instance.Exited()
	return nil
}

func (r *ProcessRuntime) stopForeign(name string) error {
	pf, err := r.readPidFile(name)
	if err != nil || pf == nil {
		return err
	}
	proc, err := os.FindProcess(pf.PID)
	if err != nil {
		return nil
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		logging.Debug("stale pid file", "instance", name, "pid", pf.PID, "error", err)
		r.removePidFile(name)
	}
	return nil
}

// Status reports the instance state from memory, falling back to the pid
// file written by another edgerelay process.
func (r *ProcessRuntime) Status(ctx context.Context, name string) (*InstanceInfo, error) {
	r.mu.Lock()
	mp, ok := r.procs[name]
	r.mu.Unlock()

	if ok {
		return &InstanceInfo{
			Name:         name,
			ID:           mp.instance.ID,
			ActivationID: mp.activationID,
			Status:       StatusRunning,
			Addr:         mp.instance.Addr,
			StartedAt:    mp.instance.StartedAt,
		}, nil
	}

	pf, err := r.readPidFile(name)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return &InstanceInfo{Name: name, Status: StatusNotFound}, nil
	}

	info := &InstanceInfo{
		Name:         name,
		ID:           strconv.Itoa(pf.PID),
		ActivationID: pf.ActivationID,
		Addr:         pf.Addr,
		StartedAt:    pf.StartedAt,
		Status:       StatusStopped,
	}
	if processAlive(pf.PID) {
		info.Status = StatusRunning
	}
	return info, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (r *ProcessRuntime) pidPath(name string) (string, error) {
	return securejoin.SecureJoin(r.StateDir, name+".pid")
}

func (r *ProcessRuntime) writePidFile(name string, pf pidFile) error {
	if r.StateDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	path, err := r.pidPath(name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(pf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (r *ProcessRuntime) readPidFile(name string) (*pidFile, error) {
	if r.StateDir == "" {
		return nil, nil
	}
	path, err := r.pidPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pid file: %w", err)
	}
	var pf pidFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse pid file: %w", err)
	}
	return &pf, nil
}

func (r *ProcessRuntime) removePidFile(name string) {
	if r.StateDir == "" {
		return
	}
	if path, err := r.pidPath(name); err == nil {
		os.Remove(path)
	}
}

// inheritedEnv lists what a backend receives from the router's own
// environment. Everything else comes from the configuration mapping.
var inheritedEnv = []string{"PATH", "HOME", "TMPDIR", "TZ", "LANG"}

func baseEnviron() []string {
	env := make([]string, 0, len(inheritedEnv))
	for _, k := range inheritedEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}
