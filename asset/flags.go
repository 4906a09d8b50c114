package asset

// LoadFlags is a bit set controlling Load/acquire_strong behaviour.
type LoadFlags uint8

const (
	// Acquire bumps the refcount only; does not enqueue a Load if currently
	// UNLOADED.
	Acquire LoadFlags = 1 << iota
	// ImmediateProperties synchronously materialises immediate referenced
	// assets before publishing.
	ImmediateProperties
	// RecursiveProperties extends ImmediateProperties to the whole
	// transitive closure.
	RecursiveProperties
	// Async returns the promise immediately; default is synchronous-wait on
	// this thread.
	Async
	// Source loads from source, bypassing cache (used when cache is known
	// stale).
	Source
)

// Has reports whether all bits in other are set in f.
func (f LoadFlags) Has(other LoadFlags) bool { return f&other == other }
