package shopclient

import (
	"encoding/json"
	"sync"
)

// Callback receives the raw payload for one event delivery.
type Callback func(event string, data json.RawMessage)

// Listener is the handle returned by On and accepted by Off.
type Listener struct {
	event string
	fn    Callback
}

// Event returns the event name this listener is registered for.
func (l *Listener) Event() string { return l.event }

// listenerRegistry is a two-phase registry: registrations made before a
// connection exists sit in pending; Flush moves each one to attached
// exactly once. Dispatch only ever fires attached listeners, so the
// "replay exactly once" invariant is mechanical rather than timed.
type listenerRegistry struct {
	mu       sync.Mutex
	pending  map[string][]*Listener
	attached map[string][]*Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		pending:  make(map[string][]*Listener),
		attached: make(map[string][]*Listener),
	}
}

// add stores the registration; live registrations attach immediately,
// the rest wait for a flush.
func (r *listenerRegistry) add(event string, fn Callback, live bool) *Listener {
	l := &Listener{event: event, fn: fn}
	r.mu.Lock()
	defer r.mu.Unlock()
	if live {
		r.attached[event] = append(r.attached[event], l)
	} else {
		r.pending[event] = append(r.pending[event], l)
	}
	return l
}

// remove drops the listener wherever it currently lives. Unknown
// handles are a no-op.
func (r *listenerRegistry) remove(l *Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[l.event] = removeFrom(r.pending[l.event], l)
	r.attached[l.event] = removeFrom(r.attached[l.event], l)
	if len(r.pending[l.event]) == 0 {
		delete(r.pending, l.event)
	}
	if len(r.attached[l.event]) == 0 {
		delete(r.attached, l.event)
	}
}

// flush moves every pending registration to attached, preserving
// registration order. Calling it again with nothing pending is a safe
// no-op, so repeat calls never duplicate or drop entries.
func (r *listenerRegistry) flush() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := 0
	for event, ls := range r.pending {
		r.attached[event] = append(r.attached[event], ls...)
		moved += len(ls)
	}
	r.pending = make(map[string][]*Listener)
	return moved
}

// dispatch fires every attached listener for event, in registration
// order. Pending listeners never fire.
func (r *listenerRegistry) dispatch(event string, data json.RawMessage) {
	r.mu.Lock()
	snapshot := make([]*Listener, len(r.attached[event]))
	copy(snapshot, r.attached[event])
	r.mu.Unlock()
	for _, l := range snapshot {
		l.fn(event, data)
	}
}

// reset clears both phases. Used by Disconnect, which is a full reset
// rather than a pause.
func (r *listenerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[string][]*Listener)
	r.attached = make(map[string][]*Listener)
}

func removeFrom(ls []*Listener, target *Listener) []*Listener {
	for i, l := range ls {
		if l == target {
			return append(ls[:i], ls[i+1:]...)
		}
	}
	return ls
}
