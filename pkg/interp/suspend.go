package interp

import (
	"context"
)

// SuspendAll requests every attached thread other than self to suspend and
// waits until each is suspended, blocked, in native code or detached.
// Threads observe the request at backward branches, method entry and
// returns. If ctx ends first the request is withdrawn and ctx.Err()
// returned.
func (rt *Runtime) SuspendAll(ctx context.Context, self *Thread) error {
	rt.suspendMu.Lock()
	defer rt.suspendMu.Unlock()
	rt.suspendCount++
	rt.suspendPending.Store(true)

	stop := context.AfterFunc(ctx, func() {
		rt.suspendMu.Lock()
		rt.suspendCond.Broadcast()
		rt.suspendMu.Unlock()
	})
	defer stop()

	for !rt.allSuspendedLocked(self) {
		if err := ctx.Err(); err != nil {
			rt.resumeLocked()
			return err
		}
		rt.suspendCond.Wait()
	}
	log.Debugf("all threads suspended")
	return nil
}

// ResumeAll withdraws one SuspendAll request.
func (rt *Runtime) ResumeAll() {
	rt.suspendMu.Lock()
	defer rt.suspendMu.Unlock()
	rt.resumeLocked()
}

func (rt *Runtime) resumeLocked() {
	if rt.suspendCount == 0 {
		Abort("ResumeAll without SuspendAll")
	}
	rt.suspendCount--
	if rt.suspendCount == 0 {
		rt.suspendPending.Store(false)
	}
	rt.suspendCond.Broadcast()
}

func (rt *Runtime) allSuspendedLocked(self *Thread) bool {
	for _, t := range rt.Threads() {
		if t != self && t.State() == StateRunnable {
			return false
		}
	}
	return true
}

// CheckSuspend parks t while a suspend-all request is outstanding.
func (t *Thread) CheckSuspend() {
	if !t.rt.suspendPending.Load() {
		return
	}
	t.becomeRunnable()
}

// becomeRunnable moves t to Runnable, first waiting out any suspend-all
// request.
func (t *Thread) becomeRunnable() {
	rt := t.rt
	rt.suspendMu.Lock()
	defer rt.suspendMu.Unlock()
	if rt.suspendCount > 0 {
		t.state.Store(int32(StateSuspended))
		rt.suspendCond.Broadcast()
		for rt.suspendCount > 0 {
			rt.suspendCond.Wait()
		}
	}
	t.state.Store(int32(StateRunnable))
}

// transitionTo leaves Runnable for a state in which t does not touch
// managed state, such as blocking on a monitor.
func (t *Thread) transitionTo(s ThreadState) {
	rt := t.rt
	rt.suspendMu.Lock()
	t.state.Store(int32(s))
	rt.suspendCond.Broadcast()
	rt.suspendMu.Unlock()
}

// runBlocking runs fn with t in state s, then returns to Runnable.
func (t *Thread) runBlocking(s ThreadState, fn func()) {
	t.transitionTo(s)
	defer t.becomeRunnable()
	fn()
}
