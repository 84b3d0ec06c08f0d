package native

import (
	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

// Bridge is the native bridge of a started runtime.
type Bridge struct {
	t *tables
}

// NewBridge returns a bridge over the initialized tables.
func NewBridge() *Bridge { return &Bridge{t: loaded()} }

func (b *Bridge) Call(self *interp.Thread, frame *interp.ShadowFrame, argOffset int) (interp.JValue, error) {
	name := frame.Method().PrettyMethod()
	h, ok := b.t.bridge[name]
	if !ok {
		return interp.JValue{}, mirror.NewJavaException(mirror.UnsatisfiedLinkError, "No implementation found for %s", name)
	}
	var result interp.JValue
	h(self, newArgs(frame, argOffset), &result)
	return result, nil
}
