package instance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/edgerelay/internal/audit"
	"github.com/firefly-engineering/edgerelay/internal/config"
	"github.com/firefly-engineering/edgerelay/internal/errors"
	"github.com/firefly-engineering/edgerelay/internal/health"
	"github.com/firefly-engineering/edgerelay/internal/logging"
	"github.com/firefly-engineering/edgerelay/internal/runtime"
)

// Options configures a Registry.
type Options struct {
	Runtime      runtime.Runtime
	Mapping      config.Mapping
	Port         int
	SleepAfter   time.Duration
	StartTimeout time.Duration
	ReadyPath    string
	Audit        *audit.Logger
}

// Registry owns the one backend instance behind the fixed key. It starts
// the instance on demand, suspends it after an idle period and restarts it
// transparently on the next resolution.
type Registry struct {
	rt           runtime.Runtime
	source       config.Mapping
	startTimeout time.Duration
	readyPath    string
	audit        *audit.Logger
	log          *slog.Logger

	mu           sync.Mutex
	desc         *Descriptor
	state        State
	inst         *runtime.Instance
	activationID string
	startedAt    time.Time
	lastActivity time.Time
	activations  int
	inflight     int
	timer        *time.Timer
	pending      *activation
	suspending   chan struct{}
}

type activation struct {
	done chan struct{}
	err  error
}

// NewRegistry creates a registry with no instance.
func NewRegistry(opts Options) *Registry {
	if opts.Port == 0 {
		opts.Port = config.DefaultInstancePort
	}
	if opts.SleepAfter <= 0 {
		opts.SleepAfter = config.DefaultSleepAfter
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = config.DefaultStartTimeout
	}
	return &Registry{
		rt:           opts.Runtime,
		source:       opts.Mapping,
		startTimeout: opts.StartTimeout,
		readyPath:    opts.ReadyPath,
		audit:        opts.Audit,
		log:          logging.With("instance", Key, "runtime", opts.Runtime.Name()),
		desc:         NewDescriptor(opts.Port, opts.SleepAfter),
		state:        Absent,
	}
}

// Resolve returns an acquired handle to the instance for key, starting the
// instance first when it is absent or suspended. Callers must Release the
// handle when their exchange with the instance is complete.
func (r *Registry) Resolve(ctx context.Context, key string) (*Handle, error) {
	if key != Key {
		return nil, errors.UnknownInstance(key)
	}

	for {
		r.mu.Lock()
		switch r.state {
		case Running:
			h := r.acquireLocked()
			r.mu.Unlock()
			return h, nil

		case Starting:
			act := r.pending
			r.mu.Unlock()
			select {
			case <-act.done:
				if act.err != nil {
					return nil, act.err
				}
			case <-ctx.Done():
				return nil, errors.InstanceUnavailable(key, ctx.Err())
			}

		case IdlePending:
			ch := r.suspending
			r.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, errors.InstanceUnavailable(key, ctx.Err())
			}

		default:
			act := &activation{done: make(chan struct{})}
			prev := r.state
			r.pending = act
			r.state = Starting
			r.mu.Unlock()

			// Waiters share this activation, so it must not be cut short
			// when the first caller goes away.
			act.err = r.activate(context.WithoutCancel(ctx), prev)
			close(act.done)
			if act.err != nil {
				return nil, act.err
			}
		}
	}
}

// activate starts a fresh instance and waits for it to become ready.
// It runs with r.state == Starting and leaves the registry Running on
// success or back in prev on failure.
func (r *Registry) activate(ctx context.Context, prev State) error {
	activationID := uuid.NewString()
	log := r.log.With("activation", activationID)

	r.mu.Lock()
	err := Configure(r.desc, r.source)
	desc := *r.desc
	r.mu.Unlock()
	if err != nil {
		log.Error("instance configuration invalid", "error", err)
		r.record(audit.EventError, activationID, err.Error())
		r.fail(prev)
		return err
	}

	log.Info("starting instance", "port", desc.Port)
	r.record(audit.EventStart, activationID, "runtime="+r.rt.Name())

	ctx, cancel := context.WithTimeout(ctx, r.startTimeout)
	defer cancel()

	inst, err := r.rt.Start(ctx, runtime.StartOptions{
		Name:         desc.Key,
		ActivationID: activationID,
		Port:         desc.Port,
		Env:          desc.Mapping.Clone(),
	})
	if err != nil {
		log.Error("instance start failed", "error", err)
		r.record(audit.EventError, activationID, err.Error())
		r.fail(prev)
		return errors.InstanceUnavailable(desc.Key, errors.RuntimeError("start", err))
	}

	probe := health.Probe{Addr: inst.Addr, Path: r.readyPath}
	if err := health.WaitReady(ctx, probe, r.startTimeout, inst.Exited()); err != nil {
		log.Error("instance not ready", "addr", inst.Addr, "error", err)
		r.record(audit.EventError, activationID, err.Error())
		if stopErr := r.rt.Stop(context.Background(), desc.Key); stopErr != nil {
			log.Warn("failed to stop unready instance", "error", stopErr)
		}
		r.fail(prev)
		return errors.InstanceUnavailable(desc.Key, err)
	}

	now := time.Now()
	r.mu.Lock()
	r.state = Running
	r.inst = inst
	r.activationID = activationID
	r.startedAt = now
	r.lastActivity = now
	r.activations++
	r.pending = nil
	r.armTimerLocked(desc.SleepAfter)
	r.mu.Unlock()

	log.Info("instance ready", "addr", inst.Addr)
	r.record(audit.EventReady, activationID, inst.Addr)

	go r.watchExit(inst, activationID)
	return nil
}

func (r *Registry) fail(prev State) {
	r.mu.Lock()
	r.state = prev
	r.pending = nil
	r.mu.Unlock()
}

// watchExit moves the registry to Suspended when the instance exits on
// its own.
func (r *Registry) watchExit(inst *runtime.Instance, activationID string) {
	<-inst.Exited()

	r.mu.Lock()
	// A suspension in progress decides the outcome; a failed stop hands the
	// instance back as Running.
	for r.inst == inst && r.state == IdlePending {
		ch := r.suspending
		r.mu.Unlock()
		<-ch
		r.mu.Lock()
	}
	if r.inst != inst || r.state != Running {
		r.mu.Unlock()
		return
	}
	r.stopTimerLocked()
	r.state = Suspended
	r.inst = nil
	r.mu.Unlock()

	details := "exited"
	if err := inst.Err(); err != nil {
		details = err.Error()
	}
	r.log.Warn("instance exited unexpectedly", "activation", activationID, "reason", details)
	r.record(audit.EventExit, activationID, details)
}

func (r *Registry) acquireLocked() *Handle {
	r.inflight++
	r.lastActivity = time.Now()
	return &Handle{
		Key:          r.desc.Key,
		Addr:         r.inst.Addr,
		ActivationID: r.activationID,
		registry:     r,
	}
}

func (r *Registry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight > 0 {
		r.inflight--
	}
	r.lastActivity = time.Now()
	if r.inflight == 0 && r.state == Running {
		r.armTimerLocked(r.desc.SleepAfter)
	}
}

func (r *Registry) armTimerLocked(d time.Duration) {
	if r.timer == nil {
		r.timer = time.AfterFunc(d, r.onIdle)
		return
	}
	r.timer.Reset(d)
}

func (r *Registry) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// onIdle suspends the instance once it has seen no traffic for the idle
// timeout. A firing with requests in flight re-arms instead.
func (r *Registry) onIdle() {
	r.mu.Lock()
	if r.state != Running {
		r.mu.Unlock()
		return
	}
	sleepAfter := r.desc.SleepAfter
	if r.inflight > 0 {
		r.armTimerLocked(sleepAfter)
		r.mu.Unlock()
		return
	}
	if idle := time.Since(r.lastActivity); idle < sleepAfter {
		r.armTimerLocked(sleepAfter - idle)
		r.mu.Unlock()
		return
	}
	activationID, done := r.beginSuspendLocked()
	r.mu.Unlock()

	_ = r.finishSuspend(context.Background(), activationID, done, "idle")
}

func (r *Registry) beginSuspendLocked() (string, chan struct{}) {
	r.stopTimerLocked()
	r.state = IdlePending
	r.suspending = make(chan struct{})
	return r.activationID, r.suspending
}

// finishSuspend stops the instance. When the runtime fails to stop it the
// registry goes back to Running with the same instance and the idle timer
// re-armed, so a later idle period tries again.
func (r *Registry) finishSuspend(ctx context.Context, activationID string, done chan struct{}, reason string) error {
	r.log.Info("suspending instance", "activation", activationID, "reason", reason)
	stopErr := r.rt.Stop(ctx, r.desc.Key)
	if stopErr != nil {
		r.log.Error("failed to stop instance", "activation", activationID, "error", stopErr)
		r.record(audit.EventError, activationID, stopErr.Error())
	} else {
		r.record(audit.EventSuspend, activationID, reason)
	}

	r.mu.Lock()
	if stopErr != nil && r.inst != nil && !exited(r.inst) {
		r.state = Running
		r.armTimerLocked(r.desc.SleepAfter)
	} else {
		r.state = Suspended
		r.inst = nil
	}
	r.suspending = nil
	r.mu.Unlock()
	close(done)

	if stopErr != nil {
		return errors.RuntimeError("stop", stopErr)
	}
	return nil
}

func exited(inst *runtime.Instance) bool {
	select {
	case <-inst.Exited():
		return true
	default:
		return false
	}
}

// Suspend stops the instance immediately, regardless of traffic. It waits
// for an in-progress start or suspension to settle first.
func (r *Registry) Suspend(ctx context.Context) error {
	for {
		r.mu.Lock()
		switch r.state {
		case Running:
			activationID, done := r.beginSuspendLocked()
			r.mu.Unlock()
			return r.finishSuspend(ctx, activationID, done, "requested")

		case Starting:
			act := r.pending
			r.mu.Unlock()
			select {
			case <-act.done:
			case <-ctx.Done():
				return ctx.Err()
			}

		case IdlePending:
			ch := r.suspending
			r.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}

		default:
			r.mu.Unlock()
			return nil
		}
	}
}

// Close suspends the instance and stops the idle timer.
func (r *Registry) Close(ctx context.Context) error {
	err := r.Suspend(ctx)
	r.mu.Lock()
	r.stopTimerLocked()
	r.mu.Unlock()
	return err
}

// Snapshot is a read-only view of the registry for status reporting.
type Snapshot struct {
	Key          string
	State        State
	Runtime      string
	ActivationID string
	Addr         string
	StartedAt    time.Time
	LastActivity time.Time
	Activations  int
	InFlight     int
	SleepAfter   time.Duration
}

// Snapshot returns the current registry state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Key:          r.desc.Key,
		State:        r.state,
		Runtime:      r.rt.Name(),
		ActivationID: r.activationID,
		StartedAt:    r.startedAt,
		LastActivity: r.lastActivity,
		Activations:  r.activations,
		InFlight:     r.inflight,
		SleepAfter:   r.desc.SleepAfter,
	}
	if r.inst != nil {
		s.Addr = r.inst.Addr
	}
	return s
}

func (r *Registry) record(t audit.EventType, activationID, details string) {
	if r.audit == nil {
		return
	}
	if err := r.audit.LogEvent(t, Key, activationID, details); err != nil {
		r.log.Debug("failed to write audit event", "error", err)
	}
}
