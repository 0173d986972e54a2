package cache

import "sync"

// Registry hands out one shared Store per application. The composition root
// owns the Registry and passes it to whatever needs the cache.
type Registry struct {
	mu    sync.Mutex
	store *Store
	opts  []StoreOption
}

// NewRegistry returns an empty registry. opts are applied to the Store it
// builds.
func NewRegistry(opts ...StoreOption) *Registry {
	return &Registry{opts: opts}
}

// Cache returns the shared Store, building it on first use from cfg (or
// DefaultConfig when none is given). Later calls ignore cfg and return the
// same Store. A failed build is not remembered, so the next call retries.
func (r *Registry) Cache(cfg ...Config) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		return r.store, nil
	}

	c := DefaultConfig()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	store, err := New(c, r.opts...)
	if err != nil {
		return nil, err
	}
	r.store = store
	return store, nil
}

// Reset forgets the shared Store without touching its files, so the next
// Cache call builds a new Store that warm-starts from disk.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = nil
}
