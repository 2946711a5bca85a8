package state

// ReadGuard grants shared access to a store's value until released.
type ReadGuard[T any] struct {
	s        *Store[T]
	released bool
}

// Value returns the guarded value. It must not be modified: slices and maps
// inside it are shared with the store. Value panics after Release.
func (g *ReadGuard[T]) Value() T {
	if g.released {
		panic("state: read guard used after release")
	}
	return g.s.value
}

// Release gives up shared access. Calling it more than once is a no-op.
func (g *ReadGuard[T]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.s.mu.RUnlock()
}

// WriteGuard grants exclusive access to a store's value until released.
type WriteGuard[T any] struct {
	s        *Store[T]
	released bool
	err      error
}

// Value returns a pointer to the guarded value. It panics after Release.
func (g *WriteGuard[T]) Value() *T {
	if g.released {
		panic("state: write guard used after release")
	}
	return &g.s.value
}

// Release flushes the value and gives up exclusive access. The first write
// to a store without a snapshot always creates one. A flush failure is
// returned as a *FlushError; the in-memory value keeps the mutation. Later
// calls return the result of the first one.
func (g *WriteGuard[T]) Release() error {
	if g.released {
		return g.err
	}
	g.released = true
	defer g.s.mu.Unlock()
	g.err = g.s.flushLocked(!g.s.persisted)
	return g.err
}
