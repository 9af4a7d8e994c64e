package dissect

import "sync"

// key is the (parent-layer tag, selector value) pair the registry binds
// dissectors to.
type key struct {
	parent ProtoTag
	value  uint32
}

// Registry is a lookup from a layer context to a concrete dissector. It
// is seeded once at startup via Register and is immutable thereafter —
// there is no mutator exposed once Freeze has been called.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]Dissector
	frozen  bool
}

// NewRegistry returns an empty, mutable registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]Dissector)}
}

// Register binds (parent, selector) to d. It panics if called after
// Freeze — registration is a startup-only concern, never a hot-path one.
func (r *Registry) Register(parent ProtoTag, selector uint32, d Dissector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("dissect: Register called on a frozen registry")
	}
	r.entries[key{parent, selector}] = d
}

// Freeze marks the registry read-only. Bootstrap calls it once its
// bindings are registered, before the registry reaches dissection workers.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the dissector bound to (parent, selector), or nil if
// none is registered — an unknown selector terminates the layer chain
// cleanly with a residual-bytes LayerRecord of tag Unknown.
func (r *Registry) Lookup(parent ProtoTag, selector uint32) Dissector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[key{parent, selector}]
}

// SelectByPorts picks a dissector for a transport segment when both the
// destination and source port might match a known application-layer
// binding: destination-port wins, source-port is the fallback.
func (r *Registry) SelectByPorts(parent ProtoTag, dst, src uint16) (Dissector, uint32) {
	if d := r.Lookup(parent, uint32(dst)); d != nil {
		return d, uint32(dst)
	}
	if d := r.Lookup(parent, uint32(src)); d != nil {
		return d, uint32(src)
	}
	return nil, 0
}

// Resolve looks up the dissector named by a Selector, trying its
// fallback value if the primary one has no binding.
func (r *Registry) Resolve(sel Selector) (Dissector, uint32) {
	if d := r.Lookup(sel.ParentTag, sel.Value); d != nil {
		return d, sel.Value
	}
	if sel.HasFallback {
		if d := r.Lookup(sel.ParentTag, sel.Fallback); d != nil {
			return d, sel.Fallback
		}
	}
	return nil, 0
}
