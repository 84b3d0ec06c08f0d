package interp

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/mirror"
)

// ThreadState tells the suspension protocol whether a thread may touch the
// heap.
type ThreadState int32

const (
	StateRunnable ThreadState = iota
	StateSuspended
	StateBlocked
	StateNative
	StateTerminated
)

func (s ThreadState) String() string {
	switch s {
	case StateRunnable:
		return "Runnable"
	case StateSuspended:
		return "Suspended"
	case StateBlocked:
		return "Blocked"
	case StateNative:
		return "Native"
	case StateTerminated:
		return "Terminated"
	}
	return "Unknown"
}

// frameOverhead approximates the bookkeeping bytes of one frame for the
// stack budget.
const frameOverhead = 96

func frameSize(numVRegs int) int64 {
	// scalar + reference view per register
	return frameOverhead + int64(numVRegs)*12
}

// Thread is an attached interpreter thread. It owns the pending exception
// and the shadow frame chain; other goroutines read the chain only while
// the thread is suspended.
type Thread struct {
	ID   uuid.UUID
	Name string

	rt        *Runtime
	exception *mirror.Object
	top       *ShadowFrame
	depth     int
	stackUsed int64
	tx        *Transaction
	state     atomic.Int32
	peer      *mirror.Object
}

func (t *Thread) Runtime() *Runtime      { return t.rt }
func (t *Thread) State() ThreadState     { return ThreadState(t.state.Load()) }
func (t *Thread) TopFrame() *ShadowFrame { return t.top }
func (t *Thread) Depth() int             { return t.depth }

func (t *Thread) String() string {
	return fmt.Sprintf("Thread[%s,%s]", t.Name, t.ID)
}

// Exception returns the pending exception, or nil.
func (t *Thread) Exception() *mirror.Object { return t.exception }

// IsExceptionPending reports whether an exception is pending.
func (t *Thread) IsExceptionPending() bool { return t.exception != nil }

// SetException makes exc the pending exception.
func (t *Thread) SetException(exc *mirror.Object) {
	if exc == nil {
		panic("SetException: nil throwable")
	}
	t.exception = exc
}

// ClearException drops the pending exception.
func (t *Thread) ClearException() { t.exception = nil }

// ThrowNew makes a new exception of class descriptor pending.
func (t *Thread) ThrowNew(descriptor, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	exc, err := t.rt.linker.NewThrowable(descriptor, msg, nil)
	if err != nil {
		t.throwAllocationFailure(err, descriptor)
		return
	}
	t.SetException(exc)
}

func (t *Thread) throwAllocationFailure(err error, descriptor string) {
	if errors.Is(err, mirror.ErrOutOfMemory) {
		t.SetException(t.rt.oome)
		return
	}
	Abort("cannot create %s: %v", mirror.PrettyName(descriptor), err)
}

// ThrowError converts a collaborator error into a pending exception.
// Managed exceptions keep their class, message and cause; allocation
// failures become OutOfMemoryError; anything else is an InternalError.
func (t *Thread) ThrowError(err error) {
	exc, err2 := t.throwableFor(err)
	if err2 != nil {
		t.throwAllocationFailure(err2, mirror.InternalError)
		return
	}
	t.SetException(exc)
}

func (t *Thread) throwableFor(err error) (*mirror.Object, error) {
	var je *mirror.JavaException
	switch {
	case errors.As(err, &je):
		if je.Object != nil {
			return je.Object, nil
		}
		var cause *mirror.Object
		if je.Cause != nil {
			var inner *mirror.JavaException
			if errors.As(je.Cause, &inner) {
				c, err := t.throwableFor(je.Cause)
				if err != nil {
					return nil, err
				}
				cause = c
			}
		}
		return t.rt.linker.NewThrowable(je.Descriptor, je.Message, cause)
	case errors.Is(err, mirror.ErrOutOfMemory):
		return t.rt.linker.NewThrowable(mirror.OutOfMemoryError, err.Error(), nil)
	}
	return t.rt.linker.NewThrowable(mirror.InternalError, err.Error(), nil)
}

// Transaction returns the active transaction, or nil.
func (t *Thread) Transaction() *Transaction { return t.tx }

// BeginTransaction makes tx active on t.
func (t *Thread) BeginTransaction(tx *Transaction) {
	if t.tx != nil {
		Abort("nested transaction on %s", t)
	}
	t.tx = tx
}

// EndTransaction deactivates the current transaction.
func (t *Thread) EndTransaction() { t.tx = nil }

// AbortTransaction aborts the active transaction and throws
// TransactionAbortError.
func (t *Thread) AbortTransaction(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Infof("aborting transaction: %s", msg)
	t.tx.Abort(msg)
	t.ThrowNew(mirror.TransactionAbortError, "%s", msg)
}

// checkStack throws StackOverflowError and returns false when a frame of
// numVRegs registers would exceed the depth or byte budget.
func (t *Thread) checkStack(numVRegs int) bool {
	opts := &t.rt.opts
	if t.depth >= opts.MaxDepth || t.stackUsed+frameSize(numVRegs) > opts.StackSize {
		log.Debugf("stack overflow on %s at depth %d (%d bytes)", t, t.depth, t.stackUsed)
		t.ThrowNew(mirror.StackOverflowError, "stack size %d bytes", opts.StackSize)
		return false
	}
	return true
}

// pushFrame links f on top of the chain.
func (t *Thread) pushFrame(f *ShadowFrame) {
	f.link = t.top
	t.depth++
	t.stackUsed += frameSize(f.NumberOfVRegs())
	t.top = f
}

func (t *Thread) popFrame(f *ShadowFrame) {
	t.depth--
	t.stackUsed -= frameSize(f.NumberOfVRegs())
	t.top = f.link
}

// PushShadowFrame links a frame built outside the interpreter. It returns
// false with StackOverflowError pending when the budget is exhausted.
func (t *Thread) PushShadowFrame(f *ShadowFrame) bool {
	if !t.checkStack(f.NumberOfVRegs()) {
		return false
	}
	t.pushFrame(f)
	return true
}

// PopShadowFrame unlinks f, which must be the top frame.
func (t *Thread) PopShadowFrame(f *ShadowFrame) { t.popFrame(f) }

// WalkStack visits frames from the top until fn returns false.
func (t *Thread) WalkStack(fn func(*ShadowFrame) bool) {
	for f := t.top; f != nil; f = f.Link() {
		if !fn(f) {
			return
		}
	}
}

// Peer returns the java.lang.Thread object of t, creating it on first use.
func (t *Thread) Peer() (*mirror.Object, error) {
	if t.peer != nil {
		return t.peer, nil
	}
	c, err := t.rt.linker.FindClass("Ljava/lang/Thread;")
	if err != nil {
		return nil, err
	}
	o, err := t.rt.heap.AllocObject(c, mirror.AllocatorTLAB)
	if err != nil {
		return nil, err
	}
	t.peer = o
	return o, nil
}

// Detach removes t from the runtime.
func (t *Thread) Detach() { t.rt.detach(t) }

// AbortError is the panic value of a fatal runtime error: an unused opcode,
// a native method with no implementation before the runtime has started.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string { return "runtime aborted: " + e.Message }

// Abort logs msg at critical level and panics with *AbortError.
func Abort(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Criticalf("%s", msg)
	panic(&AbortError{Message: msg})
}
