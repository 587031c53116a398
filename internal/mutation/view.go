package mutation

import "sync"

// View is local state shown to the user, versioned so that a rollback never
// overwrites a value written after the optimistic one
type View[T any] struct {
	mu        sync.Mutex
	value     T
	version   uint64
	listeners map[uint64]func(T)
	nextID    uint64
}

// NewView returns a view holding initial at version 0
func NewView[T any](initial T) *View[T] {
	return &View[T]{value: initial}
}

// Get returns the current value and its version
func (v *View[T]) Get() (T, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.version
}

// Value returns the current value
func (v *View[T]) Value() T {
	value, _ := v.Get()
	return value
}

// Set replaces the value and returns the new version
func (v *View[T]) Set(value T) uint64 {
	v.mu.Lock()
	v.value = value
	v.version++
	version := v.version
	listeners := v.snapshot()
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
	return version
}

// CompareAndSet replaces the value only if the view is still at version
func (v *View[T]) CompareAndSet(version uint64, value T) bool {
	v.mu.Lock()
	if v.version != version {
		v.mu.Unlock()
		return false
	}
	v.value = value
	v.version++
	listeners := v.snapshot()
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
	return true
}

// Subscribe calls fn with every new value until cancel is called
func (v *View[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listeners == nil {
		v.listeners = make(map[uint64]func(T))
	}
	v.nextID++
	id := v.nextID
	v.listeners[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

func (v *View[T]) snapshot() []func(T) {
	out := make([]func(T), 0, len(v.listeners))
	for _, fn := range v.listeners {
		out = append(out, fn)
	}
	return out
}
