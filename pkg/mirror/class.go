package mirror

import (
	"sync"
	"sync/atomic"

	"github.com/daimatz/godex/pkg/dex"
)

// ClassStatus is the lifecycle state of a class.
type ClassStatus int32

const (
	StatusError ClassStatus = iota - 1
	StatusNotReady
	StatusLoaded
	StatusResolved
	StatusInitializing
	StatusInitialized
)

func (s ClassStatus) String() string {
	switch s {
	case StatusError:
		return "Error"
	case StatusNotReady:
		return "NotReady"
	case StatusLoaded:
		return "Loaded"
	case StatusResolved:
		return "Resolved"
	case StatusInitializing:
		return "Initializing"
	case StatusInitialized:
		return "Initialized"
	}
	return "Unknown"
}

const objectDescriptor = "Ljava/lang/Object;"

// Class is the runtime representation of a loaded type.
type Class struct {
	Descriptor  string
	AccessFlags uint32
	Super       *Class
	Interfaces  []*Class

	// Component is the element type of an array class.
	Component *Class
	// Primitive is the descriptor letter of a primitive class, 0 otherwise.
	Primitive byte

	InstanceFields []*Field
	StaticFields   []*Field
	DirectMethods  []*Method
	VirtualMethods []*Method
	VTable         []*Method

	// NumInstanceSlots counts instance field slots including superclasses.
	NumInstanceSlots int
	Statics          []Slot
	staticsMu        sync.Mutex

	Dex         *dex.File
	Finalizable bool
	SourceFile  string

	// Loader is the loader that defined the class, nil for the boot loader.
	Loader any

	status atomic.Int32
	mirror atomic.Pointer[Object]
}

// Status returns the lifecycle state.
func (c *Class) Status() ClassStatus { return ClassStatus(c.status.Load()) }

// SetStatus moves the class to s.
func (c *Class) SetStatus(s ClassStatus) { c.status.Store(int32(s)) }

// IsInitialized reports whether <clinit> completed.
func (c *Class) IsInitialized() bool { return c.Status() == StatusInitialized }

// IsErroneous reports whether initialization failed.
func (c *Class) IsErroneous() bool { return c.Status() == StatusError }

// Mirror returns the java.lang.Class instance of c, if one was created.
func (c *Class) Mirror() *Object { return c.mirror.Load() }

// SetMirror installs the java.lang.Class instance of c unless one exists,
// and returns the installed one.
func (c *Class) SetMirror(o *Object) *Object {
	if c.mirror.CompareAndSwap(nil, o) {
		return o
	}
	return c.mirror.Load()
}

// Name returns the source-level name, e.g. "java.lang.String" or "int[]".
func (c *Class) Name() string { return dex.PrettyDescriptor(c.Descriptor) }

func (c *Class) String() string { return c.Name() }

func (c *Class) IsPrimitive() bool { return c.Primitive != 0 }
func (c *Class) IsArray() bool     { return c.Component != nil }
func (c *Class) IsInterface() bool { return c.AccessFlags&dex.AccInterface != 0 }
func (c *Class) IsAbstract() bool  { return c.AccessFlags&dex.AccAbstract != 0 }
func (c *Class) IsFinal() bool     { return c.AccessFlags&dex.AccFinal != 0 }
func (c *Class) IsPublic() bool    { return c.AccessFlags&dex.AccPublic != 0 }

// IsObjectClass reports whether c is java.lang.Object.
func (c *Class) IsObjectClass() bool { return c.Descriptor == objectDescriptor }

// IsStringClass reports whether c is java.lang.String.
func (c *Class) IsStringClass() bool { return c.Descriptor == "Ljava/lang/String;" }

// IsClassClass reports whether c is java.lang.Class.
func (c *Class) IsClassClass() bool { return c.Descriptor == "Ljava/lang/Class;" }

// IsInstantiable reports whether new-instance may allocate c.
func (c *Class) IsInstantiable() bool {
	return !c.IsPrimitive() && !c.IsArray() && !c.IsInterface() && !c.IsAbstract()
}

// IsReferenceArray reports whether c is an array of references.
func (c *Class) IsReferenceArray() bool {
	return c.IsArray() && !c.Component.IsPrimitive()
}

// PackageName returns the descriptor package, "java/lang" for
// "Ljava/lang/String;".
func (c *Class) PackageName() string {
	k := c
	for k.Component != nil {
		k = k.Component
	}
	d := k.Descriptor
	if len(d) < 2 || d[0] != 'L' {
		return ""
	}
	for i := len(d) - 1; i > 0; i-- {
		if d[i] == '/' {
			return d[1:i]
		}
	}
	return ""
}

// IsInSamePackage compares runtime packages: package name and loader.
func (c *Class) IsInSamePackage(other *Class) bool {
	if c == other {
		return true
	}
	return c.Loader == other.Loader && c.PackageName() == other.PackageName()
}

// IsSubClass reports whether other is c or one of its superclasses.
func (c *Class) IsSubClass(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// Implements reports whether c or a superclass implements iface, directly
// or through superinterfaces.
func (c *Class) Implements(iface *Class) bool {
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// IsAssignableFrom reports whether a value of class src can be stored in a
// location of type c.
func (c *Class) IsAssignableFrom(src *Class) bool {
	if c == src {
		return true
	}
	if c.IsObjectClass() {
		return !src.IsPrimitive()
	}
	if c.IsInterface() {
		return src.Implements(c)
	}
	if src.IsArray() {
		return c.IsArray() && c.Component.IsAssignableFrom(src.Component)
	}
	return !src.IsInterface() && src.IsSubClass(c)
}

// CanAccess reports whether code in c may refer to class other.
func (c *Class) CanAccess(other *Class) bool {
	for other.IsArray() {
		other = other.Component
	}
	return other.IsPublic() || other.IsPrimitive() || c.IsInSamePackage(other)
}

// CanAccessMember reports whether code in c may use a member of declaring
// with the given flags.
func (c *Class) CanAccessMember(declaring *Class, flags uint32) bool {
	switch {
	case flags&dex.AccPublic != 0:
		return true
	case flags&dex.AccPrivate != 0:
		return c == declaring
	case flags&dex.AccProtected != 0:
		if c.IsSubClass(declaring) {
			return true
		}
	}
	return c.IsInSamePackage(declaring)
}

// FindDeclaredDirectMethod looks for a direct method declared by c.
func (c *Class) FindDeclaredDirectMethod(name, desc string) *Method {
	for _, m := range c.DirectMethods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// FindDeclaredVirtualMethod looks for a virtual method declared by c.
func (c *Class) FindDeclaredVirtualMethod(name, desc string) *Method {
	for _, m := range c.VirtualMethods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// FindDirectMethod searches c and its superclasses.
func (c *Class) FindDirectMethod(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.FindDeclaredDirectMethod(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// FindVirtualMethod searches c and its superclasses.
func (c *Class) FindVirtualMethod(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.FindDeclaredVirtualMethod(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// FindInterfaceMethod searches c and its superinterfaces.
func (c *Class) FindInterfaceMethod(name, desc string) *Method {
	if m := c.FindDeclaredVirtualMethod(name, desc); m != nil {
		return m
	}
	for _, i := range c.Interfaces {
		if m := i.FindInterfaceMethod(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// FindMethod searches direct then virtual methods of c and its superclasses,
// then the interfaces it implements.
func (c *Class) FindMethod(name, desc string) *Method {
	if m := c.FindDirectMethod(name, desc); m != nil {
		return m
	}
	if m := c.FindVirtualMethod(name, desc); m != nil {
		return m
	}
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if m := i.FindInterfaceMethod(name, desc); m != nil {
				return m
			}
		}
	}
	return nil
}

// FindVirtualMethodForInterface returns the implementation of the
// interface method m in c's vtable.
func (c *Class) FindVirtualMethodForInterface(m *Method) *Method {
	for _, v := range c.VTable {
		if v.Name == m.Name && v.Descriptor == m.Descriptor {
			return v
		}
	}
	return nil
}

// FindVirtualMethodForVirtualOrInterface dispatches m on a receiver of
// class c.
func (c *Class) FindVirtualMethodForVirtualOrInterface(m *Method) *Method {
	if m.IsDirect() {
		return m
	}
	if m.Declaring.IsInterface() {
		return c.FindVirtualMethodForInterface(m)
	}
	if m.VTableIndex < len(c.VTable) {
		return c.VTable[m.VTableIndex]
	}
	return nil
}

// FindInstanceField searches c and its superclasses.
func (c *Class) FindInstanceField(name, typ string) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.InstanceFields {
			if f.Name == name && f.Type == typ {
				return f
			}
		}
	}
	return nil
}

// FindStaticField searches c, its interfaces and its superclasses, in the
// order field resolution requires.
func (c *Class) FindStaticField(name, typ string) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.StaticFields {
			if f.Name == name && f.Type == typ {
				return f
			}
		}
		for _, i := range k.Interfaces {
			if f := i.FindStaticField(name, typ); f != nil {
				return f
			}
		}
	}
	return nil
}

// FindInstanceFieldWithOffset returns the instance field stored at slot
// offset, used by the quickened field opcodes.
func (c *Class) FindInstanceFieldWithOffset(offset int) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.InstanceFields {
			if f.Offset == offset {
				return f
			}
		}
	}
	return nil
}

// ClassInitializer returns <clinit>, or nil.
func (c *Class) ClassInitializer() *Method {
	return c.FindDeclaredDirectMethod("<clinit>", "()V")
}

// ComponentSize returns the element width in bytes of an array class.
func (c *Class) ComponentSize() int {
	return PrimitiveSize(c.Component.Primitive)
}

// PrimitiveSize returns the storage width of a primitive type letter;
// references report 4.
func PrimitiveSize(p byte) int {
	switch p {
	case 'Z', 'B':
		return 1
	case 'C', 'S':
		return 2
	case 'J', 'D':
		return 8
	}
	return 4
}
