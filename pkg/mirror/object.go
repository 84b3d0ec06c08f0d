package mirror

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf16"
)

var nextObjectID atomic.Uint32

func newObjectID() uint32 {
	for {
		if id := nextObjectID.Add(1); id != 0 {
			return id
		}
	}
}

// Object is a heap instance: a plain object, an array, a string or a
// java.lang.Class mirror.
type Object struct {
	class *Class
	id    uint32

	fields   []Slot
	fieldsMu sync.Mutex

	elems []Slot   // arrays
	chars []uint16 // strings

	classRef *Class // java.lang.Class mirrors

	monitor Monitor
}

func newObject(c *Class) *Object {
	return &Object{class: c, id: newObjectID(), fields: make([]Slot, c.NumInstanceSlots)}
}

// Class returns the runtime class of o.
func (o *Object) Class() *Class { return o.class }

// ID returns the non-zero identity of o, also its identity hash code.
func (o *Object) ID() uint32 { return o.id }

// IdentityHashCode returns the hash used by Object.hashCode.
func (o *Object) IdentityHashCode() int32 { return int32(o.id & 0x7fffffff) }

// InstanceOf reports whether o is an instance of c.
func (o *Object) InstanceOf(c *Class) bool { return c.IsAssignableFrom(o.class) }

// IsArray reports whether o is an array.
func (o *Object) IsArray() bool { return o.class.IsArray() }

// FieldSlot returns instance slot i.
func (o *Object) FieldSlot(i int) *Slot { return &o.fields[i] }

// NumFieldSlots returns the number of instance slots.
func (o *Object) NumFieldSlots() int { return len(o.fields) }

// ArrayLength returns the element count of an array.
func (o *Object) ArrayLength() int { return len(o.elems) }

// ElemSlot returns array element i.
func (o *Object) ElemSlot(i int) *Slot { return &o.elems[i] }

// InBounds reports whether i indexes an element.
func (o *Object) InBounds(i int32) bool { return i >= 0 && int(i) < len(o.elems) }

// AsClass returns the class represented by a java.lang.Class mirror.
func (o *Object) AsClass() *Class { return o.classRef }

// IsString reports whether o is a java.lang.String.
func (o *Object) IsString() bool { return o.class.IsStringClass() }

// Chars returns the UTF-16 contents of a string.
func (o *Object) Chars() []uint16 { return o.chars }

// StringLength returns the length in UTF-16 units.
func (o *Object) StringLength() int { return len(o.chars) }

// GoString converts a java.lang.String to a Go string.
func (o *Object) GoString() string {
	if o == nil {
		return "null"
	}
	return string(utf16.Decode(o.chars))
}

// Monitor returns the lock of o.
func (o *Object) Monitor() *Monitor { return &o.monitor }

func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	switch {
	case o.IsString():
		return fmt.Sprintf("%q", o.GoString())
	case o.classRef != nil:
		return "class " + o.classRef.Name()
	case o.IsArray():
		return fmt.Sprintf("%s[%d]@%x", o.class.Component.Name(), len(o.elems), o.id)
	}
	return fmt.Sprintf("%s@%x", o.class.Name(), o.id)
}

// StringEquals compares two strings by contents.
func StringEquals(a, b *Object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || len(a.chars) != len(b.chars) {
		return false
	}
	for i := range a.chars {
		if a.chars[i] != b.chars[i] {
			return false
		}
	}
	return true
}

// CompareStrings orders strings the way String.compareTo does.
func CompareStrings(a, b *Object) int32 {
	n := min(len(a.chars), len(b.chars))
	for i := 0; i < n; i++ {
		if a.chars[i] != b.chars[i] {
			return int32(a.chars[i]) - int32(b.chars[i])
		}
	}
	return int32(len(a.chars) - len(b.chars))
}

// IndexOf returns the index of ch in s at or after start, or -1.
func IndexOf(s *Object, ch int32, start int32) int32 {
	if start < 0 {
		start = 0
	}
	for i := int(start); i < len(s.chars); i++ {
		if int32(s.chars[i]) == ch {
			return int32(i)
		}
	}
	return -1
}
