package instance

import "sync"

// Handle is an acquired reference to the running instance. While any
// handle is held the instance is not suspended for idleness.
type Handle struct {
	Key          string
	Addr         string
	ActivationID string

	registry *Registry
	once     sync.Once
}

// Release marks the exchange complete and re-arms the idle timer once no
// handles remain. Calling it more than once has no further effect.
func (h *Handle) Release() {
	h.once.Do(h.registry.release)
}
