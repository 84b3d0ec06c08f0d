package native

import (
	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

// args reads the arguments of a call in declaration order, starting at the
// first argument register of the callee frame. The receiver of an instance
// method comes first.
type args struct {
	frame *interp.ShadowFrame
	next  int
}

func newArgs(frame *interp.ShadowFrame, argOffset int) *args {
	return &args{frame: frame, next: argOffset}
}

func (a *args) ref() *mirror.Object {
	o := a.frame.VRegReference(a.next)
	a.next++
	return o
}

func (a *args) i32() int32 {
	v := a.frame.VReg(a.next)
	a.next++
	return v
}

func (a *args) bool() bool { return a.i32() != 0 }

func (a *args) f32() float32 {
	v := a.frame.VRegFloat(a.next)
	a.next++
	return v
}

func (a *args) i64() int64 {
	v := a.frame.VRegLong(a.next)
	a.next += 2
	return v
}

func (a *args) f64() float64 {
	v := a.frame.VRegDouble(a.next)
	a.next += 2
	return v
}
