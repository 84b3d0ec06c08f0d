package native

import (
	"sync"

	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

// arrayBaseOffset is the offset reported for element 0 of every array.
// Field offsets are slot indices.
const arrayBaseOffset = 16

// casMu serializes the compare-and-swap natives.
var casMu sync.Mutex

func unsafeArrayBaseOffset(self *interp.Thread, a *args, result *interp.JValue) {
	a.ref()
	result.SetInt(arrayBaseOffset)
}

func unsafeArrayIndexScale(self *interp.Thread, a *args, result *interp.JValue) {
	c := a.ref()
	if c == nil {
		self.ThrowNew(mirror.NullPointerException, "component type == null")
		return
	}
	result.SetInt(int32(mirror.PrimitiveSize(c.AsClass().Primitive)))
}

// slotAt maps an Unsafe offset on o to its storage and records the write
// when a transaction is active. It throws and returns nil when the offset
// does not name a slot of o.
func slotAt(self *interp.Thread, o *mirror.Object, offset int64) *mirror.Slot {
	if o == nil {
		self.ThrowNew(mirror.NullPointerException, "object == null")
		return nil
	}
	if o.IsArray() {
		scale := int64(o.Class().ComponentSize())
		rel := offset - arrayBaseOffset
		if rel < 0 || rel%scale != 0 || rel/scale >= int64(o.ArrayLength()) {
			self.ThrowNew(mirror.IllegalArgumentException, "invalid offset %d for %s", offset, o.Class().Name())
			return nil
		}
		i := int(rel / scale)
		if tx := self.Transaction(); tx != nil {
			tx.RecordArrayWrite(o, i)
		}
		return o.ElemSlot(i)
	}
	if offset < 0 || offset >= int64(o.NumFieldSlots()) {
		self.ThrowNew(mirror.IllegalArgumentException, "invalid offset %d for %s", offset, o.Class().Name())
		return nil
	}
	if tx := self.Transaction(); tx != nil {
		if f := o.Class().FindInstanceFieldWithOffset(int(offset)); f != nil {
			tx.RecordFieldWrite(f, o)
		}
	}
	return o.FieldSlot(int(offset))
}

func unsafeCASInt(self *interp.Thread, a *args, result *interp.JValue) {
	a.ref()
	o, offset, expected, update := a.ref(), a.i64(), a.i32(), a.i32()
	casPrim(self, o, offset, uint64(uint32(expected)), uint64(uint32(update)), result)
}

func unsafeCASLong(self *interp.Thread, a *args, result *interp.JValue) {
	a.ref()
	o, offset, expected, update := a.ref(), a.i64(), a.i64(), a.i64()
	casPrim(self, o, offset, uint64(expected), uint64(update), result)
}

func casPrim(self *interp.Thread, o *mirror.Object, offset int64, expected, update uint64, result *interp.JValue) {
	casMu.Lock()
	defer casMu.Unlock()
	s := slotAt(self, o, offset)
	if s == nil {
		return
	}
	swapped := s.Prim == expected
	if swapped {
		s.Prim = update
	}
	*result = interp.BoolValue(swapped)
}

func unsafeCASObject(self *interp.Thread, a *args, result *interp.JValue) {
	a.ref()
	o, offset, expected, update := a.ref(), a.i64(), a.ref(), a.ref()
	casMu.Lock()
	defer casMu.Unlock()
	s := slotAt(self, o, offset)
	if s == nil {
		return
	}
	swapped := s.Ref == expected
	if swapped {
		s.Ref = update
	}
	*result = interp.BoolValue(swapped)
}

func arrayCreateObjectArray(self *interp.Thread, a *args, result *interp.JValue) {
	comp, n := a.ref(), a.i32()
	if comp == nil {
		self.ThrowNew(mirror.NullPointerException, "component type == null")
		return
	}
	if n < 0 {
		self.ThrowNew(mirror.NegativeArraySizeException, "%d", n)
		return
	}
	c := comp.AsClass()
	if c.IsPrimitive() {
		self.ThrowNew(mirror.IllegalArgumentException, "%s is a primitive type", c.Name())
		return
	}
	arrayClass, err := self.Runtime().Linker().FindClass("[" + c.Descriptor)
	if err != nil {
		self.ThrowError(err)
		return
	}
	arr, err := self.Runtime().Heap().AllocArray(arrayClass, int(n), mirror.AllocatorTLAB)
	if err != nil {
		self.ThrowError(err)
		return
	}
	result.SetRef(arr)
}
