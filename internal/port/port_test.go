package port

import (
	"net"
	"strconv"
	"testing"
)

// freeRange finds two adjacent free ports to test with.
func freeRange(t *testing.T) int {
	t.Helper()
	for p := 41000; p < 42000; p += 2 {
		if Available("127.0.0.1", p) && Available("127.0.0.1", p+1) {
			return p
		}
	}
	t.Skip("no free ports for test")
	return 0
}

func TestNewAllocator_InvalidRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"inverted", 2000, 1000},
		{"zero", 0, 10},
		{"too high", 65000, 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAllocator("127.0.0.1", tt.min, tt.max); err == nil {
				t.Errorf("NewAllocator(%d, %d) should fail", tt.min, tt.max)
			}
		})
	}
}

func TestAllocate_FirstFit(t *testing.T) {
	base := freeRange(t)
	a, err := NewAllocator("127.0.0.1", base, base+1)
	if err != nil {
		t.Fatalf("NewAllocator failed: %v", err)
	}

	p1, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if p1 != base {
		t.Errorf("first port = %d, want %d", p1, base)
	}

	p2, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if p2 != base+1 {
		t.Errorf("second port = %d, want %d", p2, base+1)
	}

	if _, err := a.Allocate(); err == nil {
		t.Error("Allocate should fail when range is exhausted")
	}

	a.Release(p1)
	p3, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate after release failed: %v", err)
	}
	if p3 != p1 {
		t.Errorf("port after release = %d, want %d", p3, p1)
	}
}

func TestAllocate_SkipsBoundPorts(t *testing.T) {
	base := freeRange(t)
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(base)))
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()

	a, _ := NewAllocator("127.0.0.1", base, base+1)
	p, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if p != base+1 {
		t.Errorf("port = %d, want %d (bound port skipped)", p, base+1)
	}
}

func TestRelease_OutOfRange(t *testing.T) {
	a, _ := NewAllocator("127.0.0.1", DefaultMin, DefaultMax)
	a.Release(80)
}
