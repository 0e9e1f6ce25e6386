/*
Package events provides a minimal in-process observer used to signal state
changes between components without a global notification bus.

USAGE:
  var changed events.Emitter
  stop := changed.Subscribe(func() { engine.Evaluate(...) })
  defer stop()
  changed.Emit()

Signals carry no payload. Listeners re-query the owner for detail.
*/
package events

import "sync"

// Emitter fans a payload-free signal out to subscribed listeners.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func()
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (e *Emitter) Subscribe(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit calls every listener in subscription order. Listeners run outside the
// emitter's lock, so they may subscribe, unsubscribe or emit again.
func (e *Emitter) Emit() {
	e.mu.Lock()
	snapshot := make([]listener, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn()
	}
}

// Len returns the number of active listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
