// Package port provides host port allocation for backend instances.
//
// Runtimes that publish the instance's fixed listening port on the host
// (docker) need a free host port per activation. Ports come from a fixed
// range and are checked by binding before being handed out:
//
//	alloc, _ := port.NewAllocator("127.0.0.1", port.DefaultMin, port.DefaultMax)
//	p, err := alloc.Allocate()
//	defer alloc.Release(p)
//
// # Allocation Strategy
//
// Ports are allocated first-fit: the lowest port that is neither held by
// this allocator nor bound by another listener is chosen.
package port
