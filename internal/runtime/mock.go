package runtime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.Mutex

	// Addr is returned as the address of started instances when Handler is nil
	Addr string

	// Handler, when set, is served on a fresh loopback listener for every
	// started instance, standing in for the backend process
	Handler http.Handler

	// StartDelay simulates a slow spawn
	StartDelay time.Duration

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	instances map[string]*mockInstance
	nextID    int
}

type mockInstance struct {
	instance     *Instance
	activationID string
	server       *http.Server
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Errors:    make(map[string]error),
		CallLog:   make([]MockCall, 0),
		instances: make(map[string]*mockInstance),
	}
}

// StubBackend answers GET /health with "ok" and echoes the method and path
// of everything else. It lets the mock runtime serve real traffic.
func StubBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s %s\n", r.Method, r.URL.RequestURI())
	})
	return mux
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// ClearError removes an injected error
func (m *MockRuntime) ClearError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Errors, operation)
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// StartCount returns how many times Start was called
func (m *MockRuntime) StartCount() int {
	return len(m.GetCallsFor("Start"))
}

// StartOptions returns the options of every Start call, in order
func (m *MockRuntime) StartOptions() []StartOptions {
	var opts []StartOptions
	for _, call := range m.GetCallsFor("Start") {
		opts = append(opts, call.Args[0].(StartOptions))
	}
	return opts
}

// Exit simulates the named instance exiting on its own
func (m *MockRuntime) Exit(name string, err error) {
	m.mu.Lock()
	mi, ok := m.instances[name]
	delete(m.instances, name)
	m.mu.Unlock()

	if ok {
		mi.shutdown(err)
	}
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]*mockInstance)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
	m.mu.Unlock()

	for _, mi := range instances {
		mi.shutdown(nil)
	}
}

func (mi *mockInstance) shutdown(err error) {
	if mi.server != nil {
		mi.server.Close()
	}
	mi.instance.markExited(err)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Start starts a mock instance
func (m *MockRuntime) Start(ctx context.Context, opts StartOptions) (*Instance, error) {
	m.mu.Lock()
	m.record("Start", opts)
	delay := m.StartDelay
	err, failed := m.Errors["Start"]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failed {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.instances[opts.Name]; running {
		return nil, fmt.Errorf("instance %s is already running", opts.Name)
	}

	m.nextID++
	mi := &mockInstance{activationID: opts.ActivationID}
	addr := m.Addr

	if m.Handler != nil {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("mock listen failed: %w", err)
		}
		mi.server = &http.Server{Handler: m.Handler}
		go mi.server.Serve(l)
		addr = l.Addr().String()
	}

	mi.instance = NewInstance(opts.Name, "mock-"+strconv.Itoa(m.nextID), addr)
	m.instances[opts.Name] = mi
	return mi.instance, nil
}

// Stop stops a mock instance
func (m *MockRuntime) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	m.record("Stop", name)
	if err, ok := m.Errors["Stop"]; ok {
		m.mu.Unlock()
		return err
	}
	mi, ok := m.instances[name]
	delete(m.instances, name)
	m.mu.Unlock()

	if ok {
		mi.shutdown(nil)
	}
	return nil
}

// Status returns the state of a mock instance
func (m *MockRuntime) Status(ctx context.Context, name string) (*InstanceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Status", name)

	if err, ok := m.Errors["Status"]; ok {
		return nil, err
	}

	mi, ok := m.instances[name]
	if !ok {
		return &InstanceInfo{Name: name, Status: StatusNotFound}, nil
	}
	return &InstanceInfo{
		Name:         name,
		ID:           mi.instance.ID,
		ActivationID: mi.activationID,
		Status:       StatusRunning,
		Addr:         mi.instance.Addr,
		StartedAt:    mi.instance.StartedAt,
	}, nil
}
