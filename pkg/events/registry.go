package events

import (
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"weak"
)

// Listener receives every event dispatched by a Registry. Listeners run on
// the connection's reader goroutine and must not block.
type Listener func(ev *Event)

// Registry fans events out to registered listeners.
//
// Dispatch snapshots the listeners under the lock and invokes them after
// releasing it, so a listener may register or dispose listeners (including
// itself) without deadlocking. A listener disposed during a dispatch may
// still receive that one event.
type Registry struct {
	mu        sync.Mutex
	listeners map[int]Listener
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Register adds fn under the lowest unused listener id and returns a
// Disposer that removes it.
func (r *Registry) Register(fn Listener) Disposer {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := 0
	for {
		if _, taken := r.listeners[id]; !taken {
			break
		}
		id++
	}
	r.listeners[id] = fn

	return Disposer{
		id:   id,
		reg:  weak.Make(r),
		once: new(sync.Once),
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Dispatch invokes every registered listener with ev, in ascending id
// order. A panicking listener is logged and skipped.
func (r *Registry) Dispatch(ev *Event) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = r.listeners[id]
	}
	r.mu.Unlock()

	for i, fn := range fns {
		r.invoke(ids[i], fn, ev)
	}
}

func (r *Registry) invoke(id int, fn Listener, ev *Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event listener panic",
				"listener", id,
				"resource", ev.Resource,
				"panic", p,
				"stack", string(debug.Stack()))
		}
	}()
	fn(ev)
}

func (r *Registry) remove(id int) {
	r.mu.Lock()
	delete(r.listeners, id)
	r.mu.Unlock()
}

// Disposer removes one listener from its Registry.
type Disposer struct {
	id   int
	reg  weak.Pointer[Registry]
	once *sync.Once
}

// Dispose removes the listener. It is idempotent, and a no-op once the
// registry has been garbage collected. The zero Disposer is valid.
func (d Disposer) Dispose() {
	if d.once == nil {
		return
	}
	d.once.Do(func() {
		if r := d.reg.Value(); r != nil {
			r.remove(d.id)
		}
	})
}

// ID returns the listener id.
func (d Disposer) ID() int {
	return d.id
}
