// Package session holds the admin session state shared by the HTTP layer
// and the notification watcher.
package session

import "sync"

// AdminBus tracks whether admin notifications are switched on and fans the
// value out to listeners.
type AdminBus struct {
	mu        sync.Mutex
	enabled   bool
	next      int
	listeners map[int]func(bool)
}

func NewAdminBus(enabled bool) *AdminBus {
	return &AdminBus{
		enabled:   enabled,
		listeners: make(map[int]func(bool)),
	}
}

func (b *AdminBus) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Set stores v and notifies every listener, even when v is unchanged.
func (b *AdminBus) Set(v bool) {
	b.mu.Lock()
	b.enabled = v
	fns := make([]func(bool), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe calls fn with the current value right away and on every Set
// until the returned func is called.
func (b *AdminBus) Subscribe(fn func(bool)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	cur := b.enabled
	b.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}
