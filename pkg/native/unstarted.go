package native

import (
	"github.com/daimatz/godex/pkg/interp"
)

// Unstarted serves calls while the runtime has not started: invoke
// handlers replace selected methods at every call site, jni handlers
// implement native methods.
type Unstarted struct {
	t *tables
}

// NewUnstarted returns the intercepts over the initialized tables.
func NewUnstarted() *Unstarted { return &Unstarted{t: loaded()} }

func (u *Unstarted) Invoke(self *interp.Thread, frame *interp.ShadowFrame, result *interp.JValue, argOffset int) bool {
	name := frame.Method().PrettyMethod()
	h, ok := u.t.invoke[name]
	if !ok {
		return false
	}
	log.Debugf("intercepting %s", name)
	h(self, newArgs(frame, argOffset), result)
	return true
}

func (u *Unstarted) InvokeNative(self *interp.Thread, frame *interp.ShadowFrame, result *interp.JValue, argOffset int) {
	name := frame.Method().PrettyMethod()
	h, ok := u.t.jni[name]
	if !ok {
		if self.Transaction() != nil {
			self.AbortTransaction("Attempt to invoke native method in non-started runtime: %s", name)
			return
		}
		interp.Abort("Calling native method %s in an unstarted non-transactional runtime", name)
	}
	h(self, newArgs(frame, argOffset), result)
}
