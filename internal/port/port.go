package port

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Host port range used for publishing instance ports.
const (
	DefaultMin = 20000
	DefaultMax = 20999
)

// Allocator hands out host ports from a fixed range.
type Allocator struct {
	mu        sync.Mutex
	host      string
	min       int
	max       int
	allocated map[int]bool
}

// NewAllocator creates an allocator for ports in [min, max] on host.
func NewAllocator(host string, min, max int) (*Allocator, error) {
	if min < 1 || max > 65535 || min > max {
		return nil, fmt.Errorf("invalid port range %d-%d", min, max)
	}
	return &Allocator{
		host:      host,
		min:       min,
		max:       max,
		allocated: make(map[int]bool),
	}, nil
}

// Allocate returns the lowest port in range that is neither handed out nor
// bound by another listener.
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p := a.min; p <= a.max; p++ {
		if a.allocated[p] {
			continue
		}
		if !Available(a.host, p) {
			continue
		}
		a.allocated[p] = true
		return p, nil
	}

	return 0, fmt.Errorf("no available ports in range %d-%d", a.min, a.max)
}

// Release returns a port to the pool. Ports outside the range are ignored.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, port)
}

// Available reports whether port can currently be bound on host.
func Available(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
