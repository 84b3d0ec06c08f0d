package interp

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/daimatz/godex/pkg/mirror"
)

// Events is a bit mask of instrumentation events.
type Events uint32

const (
	EventMethodEntered Events = 1 << iota
	EventMethodExited
	EventMethodUnwind
	EventDexPCMoved
	EventFieldRead
	EventFieldWritten
	EventExceptionCaught
	EventBranch

	EventAll = EventMethodEntered | EventMethodExited | EventMethodUnwind | EventDexPCMoved |
		EventFieldRead | EventFieldWritten | EventExceptionCaught | EventBranch
)

const numEvents = 8

// Listener receives instrumentation events. this is the receiver of the
// method, nil for static methods.
type Listener interface {
	MethodEntered(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32)
	MethodExited(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, ret JValue)
	MethodUnwind(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32)
	DexPCMoved(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32)
	FieldRead(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, f *mirror.Field)
	FieldWritten(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, f *mirror.Field, v JValue)
	ExceptionCaught(t *Thread, exc *mirror.Object)
	Branch(t *Thread, m *mirror.Method, pc uint32, offset int32)
}

// BaseListener ignores every event; embed it to implement a subset.
type BaseListener struct{}

func (BaseListener) MethodEntered(*Thread, *mirror.Object, *mirror.Method, uint32)        {}
func (BaseListener) MethodExited(*Thread, *mirror.Object, *mirror.Method, uint32, JValue) {}
func (BaseListener) MethodUnwind(*Thread, *mirror.Object, *mirror.Method, uint32)         {}
func (BaseListener) DexPCMoved(*Thread, *mirror.Object, *mirror.Method, uint32)           {}
func (BaseListener) FieldRead(*Thread, *mirror.Object, *mirror.Method, uint32, *mirror.Field) {
}
func (BaseListener) FieldWritten(*Thread, *mirror.Object, *mirror.Method, uint32, *mirror.Field, JValue) {
}
func (BaseListener) ExceptionCaught(*Thread, *mirror.Object)       {}
func (BaseListener) Branch(*Thread, *mirror.Method, uint32, int32) {}

// Instrumentation dispatches events to registered listeners. Listener
// lists are copied on write so events fire without holding the lock.
type Instrumentation struct {
	mu        sync.Mutex
	listeners [numEvents]atomic.Pointer[[]Listener]
	active    atomic.Uint32
}

func eventIndex(e Events) int {
	for i := 0; i < numEvents; i++ {
		if e == 1<<i {
			return i
		}
	}
	panic("instrumentation: not a single event")
}

// AddListener registers l for every event in mask.
func (in *Instrumentation) AddListener(l Listener, mask Events) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := 0; i < numEvents; i++ {
		e := Events(1) << i
		if mask&e == 0 {
			continue
		}
		var cur []Listener
		if p := in.listeners[i].Load(); p != nil {
			cur = *p
		}
		if slices.Contains(cur, l) {
			continue
		}
		next := append(slices.Clone(cur), l)
		in.listeners[i].Store(&next)
		in.active.Store(in.active.Load() | uint32(e))
	}
}

// RemoveListener unregisters l from every event in mask.
func (in *Instrumentation) RemoveListener(l Listener, mask Events) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := 0; i < numEvents; i++ {
		e := Events(1) << i
		p := in.listeners[i].Load()
		if mask&e == 0 || p == nil {
			continue
		}
		next := slices.DeleteFunc(slices.Clone(*p), func(x Listener) bool { return x == l })
		in.listeners[i].Store(&next)
		if len(next) == 0 {
			in.active.Store(in.active.Load() &^ uint32(e))
		}
	}
}

// Has reports whether any listener is registered for e.
func (in *Instrumentation) Has(e Events) bool {
	return in != nil && in.active.Load()&uint32(e) != 0
}

// IsActive reports whether any listener is registered at all.
func (in *Instrumentation) IsActive() bool {
	return in != nil && in.active.Load() != 0
}

func (in *Instrumentation) each(e Events, fn func(Listener)) {
	p := in.listeners[eventIndex(e)].Load()
	if p == nil {
		return
	}
	for _, l := range *p {
		fn(l)
	}
}

func (in *Instrumentation) MethodEnterEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32) {
	in.each(EventMethodEntered, func(l Listener) { l.MethodEntered(t, this, m, pc) })
}

func (in *Instrumentation) MethodExitEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, ret JValue) {
	in.each(EventMethodExited, func(l Listener) { l.MethodExited(t, this, m, pc, ret) })
}

func (in *Instrumentation) MethodUnwindEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32) {
	in.each(EventMethodUnwind, func(l Listener) { l.MethodUnwind(t, this, m, pc) })
}

func (in *Instrumentation) DexPCMovedEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32) {
	in.each(EventDexPCMoved, func(l Listener) { l.DexPCMoved(t, this, m, pc) })
}

func (in *Instrumentation) FieldReadEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, f *mirror.Field) {
	in.each(EventFieldRead, func(l Listener) { l.FieldRead(t, this, m, pc, f) })
}

func (in *Instrumentation) FieldWriteEvent(t *Thread, this *mirror.Object, m *mirror.Method, pc uint32, f *mirror.Field, v JValue) {
	in.each(EventFieldWritten, func(l Listener) { l.FieldWritten(t, this, m, pc, f, v) })
}

func (in *Instrumentation) ExceptionCaughtEvent(t *Thread, exc *mirror.Object) {
	in.each(EventExceptionCaught, func(l Listener) { l.ExceptionCaught(t, exc) })
}

func (in *Instrumentation) BranchEvent(t *Thread, m *mirror.Method, pc uint32, offset int32) {
	in.each(EventBranch, func(l Listener) { l.Branch(t, m, pc, offset) })
}
