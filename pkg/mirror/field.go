package mirror

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/daimatz/godex/pkg/dex"
)

// Slot is one field, static or array element. Primitive values live in Prim
// (narrow types as a sign- or zero-extended 32-bit pattern), references in Ref.
// Slots are 16 bytes on every platform so that Prim stays 64-bit aligned in
// slices, as volatile accesses require.
type Slot struct {
	Prim uint64
	_    [8 - unsafe.Sizeof(uintptr(0))]byte
	Ref  *Object
}

// Field is a resolved field.
type Field struct {
	Declaring   *Class
	Name        string
	Type        string
	AccessFlags uint32
	// Offset is the slot index in the object (instance) or in the declaring
	// class statics.
	Offset int
}

func (f *Field) IsStatic() bool   { return f.AccessFlags&dex.AccStatic != 0 }
func (f *Field) IsFinal() bool    { return f.AccessFlags&dex.AccFinal != 0 }
func (f *Field) IsVolatile() bool { return f.AccessFlags&dex.AccVolatile != 0 }

// TypeChar returns the shorty character of the field type.
func (f *Field) TypeChar() byte { return dex.ShortyChar(f.Type) }

// IsReference reports whether the field holds an object reference.
func (f *Field) IsReference() bool { return dex.IsReference(f.Type) }

// PrettyField renders "int Foo.count".
func (f *Field) PrettyField() string {
	return fmt.Sprintf("%s %s.%s", dex.PrettyDescriptor(f.Type), f.Declaring.Name(), f.Name)
}

func (f *Field) String() string { return f.PrettyField() }

func (f *Field) slot(o *Object) *Slot {
	if f.IsStatic() {
		return &f.Declaring.Statics[f.Offset]
	}
	return &o.fields[f.Offset]
}

// SlotFor returns the storage of f in o, or in the declaring class statics.
func (f *Field) SlotFor(o *Object) *Slot { return f.slot(o) }

// GetPrim reads a primitive field of o; o is ignored for statics.
func (f *Field) GetPrim(o *Object) uint64 {
	s := f.slot(o)
	if f.IsVolatile() {
		return atomic.LoadUint64(&s.Prim)
	}
	return s.Prim
}

// SetPrim writes a primitive field.
func (f *Field) SetPrim(o *Object, v uint64) {
	s := f.slot(o)
	if f.IsVolatile() {
		atomic.StoreUint64(&s.Prim, v)
		return
	}
	s.Prim = v
}

// GetRef reads a reference field.
func (f *Field) GetRef(o *Object) *Object {
	s := f.slot(o)
	if f.IsVolatile() {
		mu := f.lockFor(o)
		mu.Lock()
		defer mu.Unlock()
	}
	return s.Ref
}

// SetRef writes a reference field.
func (f *Field) SetRef(o *Object, v *Object) {
	s := f.slot(o)
	if f.IsVolatile() {
		mu := f.lockFor(o)
		mu.Lock()
		defer mu.Unlock()
	}
	s.Ref = v
}

func (f *Field) lockFor(o *Object) *sync.Mutex {
	if f.IsStatic() {
		return &f.Declaring.staticsMu
	}
	return &o.fieldsMu
}
