package mirror

import (
	"strings"
	"sync/atomic"

	"github.com/daimatz/godex/pkg/dex"
)

// Method is a resolved method.
type Method struct {
	Declaring   *Class
	Name        string
	Descriptor  string
	AccessFlags uint32
	Code        *dex.CodeItem

	// VTableIndex is the method's slot in the vtable; -1 for direct methods.
	VTableIndex int

	shorty  string
	params  []string
	ret     string
	hotness atomic.Uint32
}

// NewMethod builds a method, precomputing its shorty. It panics on a
// malformed descriptor since definitions are validated when loaded.
func NewMethod(declaring *Class, name, desc string, flags uint32, code *dex.CodeItem) *Method {
	params, ret, err := dex.ParseMethodDescriptor(desc)
	if err != nil {
		panic(err)
	}
	shorty, _ := dex.Shorty(desc)
	return &Method{
		Declaring:   declaring,
		Name:        name,
		Descriptor:  desc,
		AccessFlags: flags,
		Code:        code,
		VTableIndex: -1,
		shorty:      shorty,
		params:      params,
		ret:         ret,
	}
}

func (m *Method) IsStatic() bool       { return m.AccessFlags&dex.AccStatic != 0 }
func (m *Method) IsNative() bool       { return m.AccessFlags&dex.AccNative != 0 }
func (m *Method) IsAbstract() bool     { return m.AccessFlags&dex.AccAbstract != 0 }
func (m *Method) IsPrivate() bool      { return m.AccessFlags&dex.AccPrivate != 0 }
func (m *Method) IsFinal() bool        { return m.AccessFlags&dex.AccFinal != 0 }
func (m *Method) IsSynchronized() bool { return m.AccessFlags&dex.AccSynchronized != 0 }
func (m *Method) IsConstructor() bool  { return m.AccessFlags&dex.AccConstructor != 0 }

// IsDirect reports whether the method is dispatched without a vtable.
func (m *Method) IsDirect() bool {
	return m.IsStatic() || m.IsPrivate() || m.Name == "<init>" || m.Name == "<clinit>"
}

// IsClassInitializer reports whether m is <clinit>.
func (m *Method) IsClassInitializer() bool { return m.Name == "<clinit>" && m.IsStatic() }

// Shorty returns the short descriptor, return type first.
func (m *Method) Shorty() string { return m.shorty }

// ParamTypes returns the parameter type descriptors.
func (m *Method) ParamTypes() []string { return m.params }

// ReturnType returns the return type descriptor.
func (m *Method) ReturnType() string { return m.ret }

// NumArgRegisters counts the registers the arguments occupy, including
// the receiver of instance methods.
func (m *Method) NumArgRegisters() int {
	n := 0
	if !m.IsStatic() {
		n++
	}
	for i := 1; i < len(m.shorty); i++ {
		n++
		if dex.IsWide(m.shorty[i]) {
			n++
		}
	}
	return n
}

// PrettyMethod renders "int Foo.add(int, int)". The intercept tables are
// keyed by this string.
func (m *Method) PrettyMethod() string {
	var b strings.Builder
	b.WriteString(dex.PrettyDescriptor(m.ret))
	b.WriteByte(' ')
	b.WriteString(m.Declaring.Name())
	b.WriteByte('.')
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dex.PrettyDescriptor(p))
	}
	b.WriteByte(')')
	return b.String()
}

func (m *Method) String() string { return m.PrettyMethod() }

// DexFile returns the pools the method's code indexes into.
func (m *Method) DexFile() *dex.File { return m.Declaring.Dex }

// AddHotness adds n samples and returns the new count.
func (m *Method) AddHotness(n uint32) uint32 { return m.hotness.Add(n) }

// Hotness returns the sample count.
func (m *Method) Hotness() uint32 { return m.hotness.Load() }
