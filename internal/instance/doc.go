// Package instance manages the single backend instance behind the fixed
// key "smtp-backend".
//
// # Registry
//
// Registry maps the key to at most one instance. The first resolution
// starts the instance through a runtime.Runtime and waits for it to pass
// its readiness probe; concurrent resolutions wait for that same start:
//
//	h, err := registry.Resolve(ctx, instance.Key)
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//	// forward to h.Addr
//
// # Lifecycle
//
//	Absent → Starting → Running → IdlePending → Suspended → Starting …
//
// Every activation is a fresh start with a new activation ID and the same
// configuration mapping. When no handle has been held for the idle timeout
// the instance is stopped and the registry moves to Suspended. An instance
// that exits on its own is also treated as Suspended. No state is terminal.
//
// # Configuration
//
// Configure attaches the full mapping to the descriptor before each start,
// replacing the previous one. A missing required entry fails resolution
// with a configuration error and no instance is created.
package instance
