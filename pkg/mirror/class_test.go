package mirror

import (
	"testing"

	"github.com/daimatz/godex/pkg/dex"
)

type testClasses struct {
	object, str, cloneable, runnable, base, derived, impl *Class
	intClass, intArray, objArray, strArray, strArray2     *Class
}

func newTestClasses() *testClasses {
	tc := &testClasses{}
	tc.object = &Class{Descriptor: "Ljava/lang/Object;", AccessFlags: dex.AccPublic}
	tc.str = &Class{Descriptor: "Ljava/lang/String;", AccessFlags: dex.AccPublic | dex.AccFinal, Super: tc.object}
	tc.cloneable = &Class{Descriptor: "Ljava/lang/Cloneable;", AccessFlags: dex.AccPublic | dex.AccInterface | dex.AccAbstract}
	tc.runnable = &Class{Descriptor: "Ljava/lang/Runnable;", AccessFlags: dex.AccPublic | dex.AccInterface | dex.AccAbstract}
	tc.base = &Class{Descriptor: "Lapp/Base;", Super: tc.object}
	tc.derived = &Class{Descriptor: "Lapp/Derived;", Super: tc.base}
	tc.impl = &Class{Descriptor: "Lapp/Task;", Super: tc.derived, Interfaces: []*Class{tc.runnable}}
	tc.intClass = &Class{Descriptor: "I", Primitive: 'I', AccessFlags: dex.AccPublic}
	arrayIfaces := []*Class{tc.cloneable}
	tc.intArray = &Class{Descriptor: "[I", Super: tc.object, Component: tc.intClass, Interfaces: arrayIfaces}
	tc.objArray = &Class{Descriptor: "[Ljava/lang/Object;", Super: tc.object, Component: tc.object, Interfaces: arrayIfaces}
	tc.strArray = &Class{Descriptor: "[Ljava/lang/String;", Super: tc.object, Component: tc.str, Interfaces: arrayIfaces}
	tc.strArray2 = &Class{Descriptor: "[[Ljava/lang/String;", Super: tc.object, Component: tc.strArray, Interfaces: arrayIfaces}
	return tc
}

func TestIsAssignableFrom(t *testing.T) {
	tc := newTestClasses()
	tests := []struct {
		name     string
		dst, src *Class
		want     bool
	}{
		{"same class", tc.base, tc.base, true},
		{"object from anything", tc.object, tc.impl, true},
		{"object from array", tc.object, tc.intArray, true},
		{"object from primitive", tc.object, tc.intClass, false},
		{"super from sub", tc.base, tc.impl, true},
		{"sub from super", tc.derived, tc.base, false},
		{"interface from implementor", tc.runnable, tc.impl, true},
		{"interface from non implementor", tc.runnable, tc.base, false},
		{"class from interface", tc.base, tc.runnable, false},
		{"covariant arrays", tc.objArray, tc.strArray, true},
		{"nested arrays", tc.objArray, tc.strArray2, true},
		{"contravariant arrays", tc.strArray, tc.objArray, false},
		{"primitive array to object array", tc.objArray, tc.intArray, false},
		{"cloneable from array", tc.cloneable, tc.intArray, true},
		{"array from class", tc.strArray, tc.str, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dst.IsAssignableFrom(tt.src); got != tt.want {
				t.Errorf("%s.IsAssignableFrom(%s): got %v, want %v", tt.dst, tt.src, got, tt.want)
			}
		})
	}
}

func TestPrettyMethod(t *testing.T) {
	tc := newTestClasses()
	cls := &Class{Descriptor: "Ljava/lang/Class;", Super: tc.object}
	tests := []struct {
		class *Class
		name  string
		desc  string
		flags uint32
		want  string
	}{
		{cls, "newInstance", "()Ljava/lang/Object;", 0, "java.lang.Object java.lang.Class.newInstance()"},
		{cls, "forName", "(Ljava/lang/String;ZLjava/lang/ClassLoader;)Ljava/lang/Class;", dex.AccStatic,
			"java.lang.Class java.lang.Class.forName(java.lang.String, boolean, java.lang.ClassLoader)"},
		{tc.base, "add", "(II)I", 0, "int app.Base.add(int, int)"},
		{tc.str, "toCharArray", "()[C", 0, "char[] java.lang.String.toCharArray()"},
	}
	for _, tt := range tests {
		m := NewMethod(tt.class, tt.name, tt.desc, tt.flags, nil)
		if got := m.PrettyMethod(); got != tt.want {
			t.Errorf("PrettyMethod: got %q, want %q", got, tt.want)
		}
	}
}

func TestNumArgRegisters(t *testing.T) {
	tc := newTestClasses()
	tests := []struct {
		desc  string
		flags uint32
		want  int
	}{
		{"()V", dex.AccStatic, 0},
		{"()V", 0, 1},
		{"(IJ)V", dex.AccStatic, 3},
		{"(DLjava/lang/Object;[J)V", 0, 5},
	}
	for _, tt := range tests {
		m := NewMethod(tc.base, "m", tt.desc, tt.flags, nil)
		if got := m.NumArgRegisters(); got != tt.want {
			t.Errorf("%s flags=%#x: got %d, want %d", tt.desc, tt.flags, got, tt.want)
		}
	}
}

func TestVirtualDispatch(t *testing.T) {
	tc := newTestClasses()
	run := NewMethod(tc.runnable, "run", "()V", dex.AccPublic|dex.AccAbstract, nil)
	tc.runnable.VirtualMethods = []*Method{run}

	baseRun := NewMethod(tc.base, "run", "()V", dex.AccPublic, nil)
	baseRun.VTableIndex = 0
	tc.base.VirtualMethods = []*Method{baseRun}
	tc.base.VTable = []*Method{baseRun}

	implRun := NewMethod(tc.impl, "run", "()V", dex.AccPublic, nil)
	implRun.VTableIndex = 0
	tc.impl.VirtualMethods = []*Method{implRun}
	tc.impl.VTable = []*Method{implRun}

	if got := tc.impl.FindVirtualMethodForVirtualOrInterface(baseRun); got != implRun {
		t.Errorf("virtual: got %v, want %v", got, implRun)
	}
	if got := tc.impl.FindVirtualMethodForVirtualOrInterface(run); got != implRun {
		t.Errorf("interface: got %v, want %v", got, implRun)
	}
	if got := tc.impl.FindMethod("run", "()V"); got != implRun {
		t.Errorf("FindMethod: got %v, want %v", got, implRun)
	}
}

func TestAccessChecks(t *testing.T) {
	tc := newTestClasses()
	other := &Class{Descriptor: "Lother/Thing;", Super: tc.object}
	if !tc.base.CanAccess(tc.derived) {
		t.Error("same package class should be accessible")
	}
	if tc.base.CanAccess(other) {
		t.Error("package-private class in another package should not be accessible")
	}
	if !other.CanAccessMember(tc.base, dex.AccPublic) {
		t.Error("public member should be accessible")
	}
	if other.CanAccessMember(tc.base, dex.AccPrivate) {
		t.Error("private member should not be accessible")
	}
	if !tc.derived.CanAccessMember(tc.base, dex.AccProtected) {
		t.Error("protected member should be accessible from subclass")
	}
}

func TestClassStatus(t *testing.T) {
	c := &Class{Descriptor: "LFoo;"}
	if c.Status() != StatusNotReady {
		t.Errorf("initial status: got %s, want NotReady", c.Status())
	}
	c.SetStatus(StatusInitialized)
	if !c.IsInitialized() {
		t.Error("expected initialized")
	}
	c.SetStatus(StatusError)
	if !c.IsErroneous() {
		t.Error("expected erroneous")
	}
}
