package native

import (
	"fmt"

	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

func systemArraycopy(self *interp.Thread, a *args, result *interp.JValue) {
	src, srcPos, dst, dstPos, n := a.ref(), a.i32(), a.ref(), a.i32(), a.i32()
	switch {
	case src == nil:
		self.ThrowNew(mirror.NullPointerException, "src == null")
		return
	case dst == nil:
		self.ThrowNew(mirror.NullPointerException, "dst == null")
		return
	case !src.IsArray():
		self.ThrowNew(mirror.ArrayStoreException, "source of type %s is not an array", src.Class().Name())
		return
	case !dst.IsArray():
		self.ThrowNew(mirror.ArrayStoreException, "destination of type %s is not an array", dst.Class().Name())
		return
	}
	sc, dc := src.Class().Component, dst.Class().Component
	if sc.IsPrimitive() || dc.IsPrimitive() {
		if sc != dc {
			self.ThrowNew(mirror.ArrayStoreException, "Incompatible types: src=%s, dst=%s", src.Class().Name(), dst.Class().Name())
			return
		}
	}
	srcLen, dstLen := int32(src.ArrayLength()), int32(dst.ArrayLength())
	if srcPos < 0 || dstPos < 0 || n < 0 || srcPos > srcLen-n || dstPos > dstLen-n {
		self.ThrowNew(mirror.ArrayIndexOutOfBoundsException,
			"src.length=%d srcPos=%d dst.length=%d dstPos=%d length=%d", srcLen, srcPos, dstLen, dstPos, n)
		return
	}
	elems := make([]mirror.Slot, n)
	for i := range elems {
		elems[i] = *src.ElemSlot(int(srcPos) + i)
	}
	checked := !sc.IsPrimitive() && !dc.IsAssignableFrom(sc)
	tx := self.Transaction()
	for i, e := range elems {
		if checked && e.Ref != nil && !dc.IsAssignableFrom(e.Ref.Class()) {
			self.ThrowNew(mirror.ArrayStoreException,
				"source[%d] of type %s cannot be stored in destination array of type %s",
				int(srcPos)+i, e.Ref.Class().Name(), dst.Class().Name())
			return
		}
		j := int(dstPos) + i
		if tx != nil {
			tx.RecordArrayWrite(dst, j)
		}
		*dst.ElemSlot(j) = e
	}
}

func consolePrint(newline bool) handler {
	return func(self *interp.Thread, a *args, result *interp.JValue) {
		s := "null"
		if o := a.ref(); o != nil {
			s = o.GoString()
		}
		if newline {
			s += "\n"
		}
		write(self, s)
	}
}

func consolePrintln(self *interp.Thread, a *args, result *interp.JValue) {
	write(self, "\n")
}

func consolePrintInt(self *interp.Thread, a *args, result *interp.JValue) {
	write(self, fmt.Sprintf("%d\n", a.i32()))
}

func consolePrintLong(self *interp.Thread, a *args, result *interp.JValue) {
	write(self, fmt.Sprintf("%d\n", a.i64()))
}

func write(self *interp.Thread, s string) {
	w := self.Runtime().Stdout()
	if w == nil {
		return
	}
	if _, err := fmt.Fprint(w, s); err != nil {
		log.Warningf("console write: %v", err)
	}
}
