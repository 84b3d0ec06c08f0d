package native

import (
	"strings"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

// cloner is implemented by allocators that copy objects themselves.
type cloner interface {
	Clone(o *mirror.Object) (*mirror.Object, error)
}

func setString(self *interp.Thread, s string, result *interp.JValue) {
	o, err := self.Runtime().Linker().NewString(s)
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(o)
}

func setClassMirror(self *interp.Thread, c *mirror.Class, result *interp.JValue) {
	m, err := self.Runtime().Linker().ClassMirror(c)
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(m)
}

func classForName(self *interp.Thread, name *mirror.Object, initialize bool, result *interp.JValue) {
	if name == nil {
		self.ThrowNew(mirror.NullPointerException, "name == null")
		return
	}
	c, err := self.Runtime().Linker().FindClass(dex.ClassDescriptor(name.GoString()))
	if err != nil {
		log.Debugf("forName(%s): %v", name.GoString(), err)
		self.ThrowNew(mirror.ClassNotFoundException, "%s", name.GoString())
		return
	}
	if initialize && !self.EnsureInitialized(c) {
		return
	}
	setClassMirror(self, c, result)
}

func classNewInstance(self *interp.Thread, a *args, result *interp.JValue) {
	c := a.ref().AsClass()
	if !c.IsInstantiable() {
		self.ThrowNew(mirror.InstantiationException, "%s", c.Name())
		return
	}
	ctor := c.FindDeclaredDirectMethod("<init>", "()V")
	if ctor == nil {
		self.ThrowNew(mirror.InstantiationException, "%s has no zero argument constructor", c.Name())
		return
	}
	if !self.EnsureInitialized(c) {
		return
	}
	if self.Transaction() != nil && c.Finalizable {
		self.AbortTransaction("Allocating finalizable object in transaction: %s", c.Name())
		return
	}
	o, err := self.Runtime().Heap().AllocObject(c, mirror.AllocatorTLAB)
	if err != nil {
		self.ThrowError(err)
		return
	}
	self.Invoke(ctor, o)
	if self.IsExceptionPending() {
		return
	}
	result.SetRef(o)
}

// javaName is the name Class.getName reports: binary names for arrays
// ("[Ljava.lang.String;") and source names otherwise.
func javaName(c *mirror.Class) string {
	if c.IsArray() {
		return strings.ReplaceAll(c.Descriptor, "/", ".")
	}
	return c.Name()
}

func classGetName(self *interp.Thread, a *args, result *interp.JValue) {
	setString(self, javaName(a.ref().AsClass()), result)
}

func objectHashCode(self *interp.Thread, a *args, result *interp.JValue) {
	o := a.ref()
	if o == nil {
		result.SetInt(0)
		return
	}
	result.SetInt(o.IdentityHashCode())
}

func objectGetClass(self *interp.Thread, a *args, result *interp.JValue) {
	setClassMirror(self, a.ref().Class(), result)
}

func objectInternalClone(self *interp.Thread, a *args, result *interp.JValue) {
	o := a.ref()
	if self.Transaction() != nil && o.Class().Finalizable {
		self.AbortTransaction("Allocating finalizable object in transaction: %s", o.Class().Name())
		return
	}
	heap, ok := self.Runtime().Heap().(cloner)
	if !ok {
		self.ThrowNew(mirror.InternalError, "allocator cannot clone %s", o.Class().Name())
		return
	}
	c, err := heap.Clone(o)
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(c)
}

func stringLength(self *interp.Thread, a *args, result *interp.JValue) {
	result.SetInt(int32(a.ref().StringLength()))
}

func stringCharAt(self *interp.Thread, a *args, result *interp.JValue) {
	s, i := a.ref(), a.i32()
	chars := s.Chars()
	if i < 0 || int(i) >= len(chars) {
		self.ThrowNew(mirror.StringIndexOutOfBoundsException, "length=%d; index=%d", len(chars), i)
		return
	}
	result.SetInt(int32(chars[i]))
}

func stringToCharArray(self *interp.Thread, a *args, result *interp.JValue) {
	chars := a.ref().Chars()
	c, err := self.Runtime().Linker().FindClass("[C")
	if err != nil {
		self.ThrowError(err)
		return
	}
	arr, err := self.Runtime().Heap().AllocArray(c, len(chars), mirror.AllocatorTLAB)
	if err != nil {
		self.ThrowError(err)
		return
	}
	for i, ch := range chars {
		arr.ElemSlot(i).Prim = uint64(ch)
	}
	result.SetRef(arr)
}

func stringFastSubstring(self *interp.Thread, a *args, result *interp.JValue) {
	s, start, n := a.ref(), a.i32(), a.i32()
	chars := s.Chars()
	if start < 0 || n < 0 || int(start) > len(chars)-int(n) {
		self.ThrowNew(mirror.StringIndexOutOfBoundsException, "length=%d; regionStart=%d; regionLength=%d", len(chars), start, n)
		return
	}
	o, err := self.Runtime().Linker().NewStringFromChars(chars[start : start+n])
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(o)
}

func stringIntern(self *interp.Thread, a *args, result *interp.JValue) {
	o, err := self.Runtime().Linker().Intern(a.ref())
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(o)
}

func stringCompareTo(self *interp.Thread, a *args, result *interp.JValue) {
	s, other := a.ref(), a.ref()
	if other == nil {
		self.ThrowNew(mirror.NullPointerException, "rhs == null")
		return
	}
	result.SetInt(mirror.CompareStrings(s, other))
}

func stringFastIndexOf(self *interp.Thread, a *args, result *interp.JValue) {
	s, ch, start := a.ref(), a.i32(), a.i32()
	result.SetInt(mirror.IndexOf(s, ch, start))
}

func threadCurrentThread(self *interp.Thread, a *args, result *interp.JValue) {
	peer, err := self.Peer()
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(peer)
}
