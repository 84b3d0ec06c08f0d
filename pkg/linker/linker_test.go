package linker

import (
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/mirror"
)

func mustEncode(t *testing.T, op dex.Opcode, a, b, c int) []uint16 {
	t.Helper()
	u, err := dex.Encode(op, a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func codeOf(t *testing.T, regs, ins uint16, insns ...[]uint16) []byte {
	t.Helper()
	c := &dex.CodeItem{RegistersSize: regs, InsSize: ins}
	for _, in := range insns {
		c.Insns = append(c.Insns, in...)
	}
	b, err := c.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// testImage defines:
//
//	class Foo { int x; static int count = 5; static String name = "foo";
//	            int get() { return 1; } static void <clinit>() {} }
//	class Bar extends Foo { int y; int get() { return 1; } }
//	class other.Baz { private int secret; private static void hide() {} }
//	class other.Hidden (package-private)
func testImage(t *testing.T) (*image.Image, *dex.Pool) {
	t.Helper()
	pool := dex.NewPool("test")
	name := "foo"
	ret1 := codeOf(t, 1, 1, mustEncode(t, dex.OpConst4, 0, 1, 0), mustEncode(t, dex.OpReturn, 0, 0, 0))
	retVoid := codeOf(t, 0, 0, mustEncode(t, dex.OpReturnVoid, 0, 0, 0))
	img := &image.Image{
		Location: "test",
		Classes: []image.ClassDef{
			{
				Descriptor: "LFoo;", Super: objectClass, Flags: dex.AccPublic,
				Fields: []image.FieldDef{
					{Name: "x", Type: "I"},
					{Name: "count", Type: "I", Flags: dex.AccStatic, Value: 5},
					{Name: "name", Type: stringClass, Flags: dex.AccStatic, StringValue: &name},
				},
				Methods: []image.MethodDef{
					{Name: "get", Descriptor: "()I", Flags: dex.AccPublic, Code: ret1},
					{Name: "<clinit>", Descriptor: "()V", Flags: dex.AccStatic | dex.AccConstructor, Code: retVoid},
				},
			},
			{
				Descriptor: "LBar;", Super: "LFoo;", Flags: dex.AccPublic,
				Fields:  []image.FieldDef{{Name: "y", Type: "I"}},
				Methods: []image.MethodDef{{Name: "get", Descriptor: "()I", Flags: dex.AccPublic, Code: ret1}},
			},
			{
				Descriptor: "Lother/Baz;", Super: objectClass, Flags: dex.AccPublic,
				Fields: []image.FieldDef{{Name: "secret", Type: "I", Flags: dex.AccPrivate}},
				Methods: []image.MethodDef{
					{Name: "hide", Descriptor: "()V", Flags: dex.AccPrivate | dex.AccStatic, Code: retVoid},
				},
			},
			{Descriptor: "Lother/Hidden;", Super: objectClass},
		},
	}
	return img, pool
}

func newTestLinker(t *testing.T) *Linker {
	t.Helper()
	img, pool := testImage(t)
	img.SetPools(pool.File())
	return New(mirror.NewHeap(0), NewImageLoader(img, nil))
}

func wantException(t *testing.T, err error, desc string) {
	t.Helper()
	var je *mirror.JavaException
	if !errors.As(err, &je) {
		t.Fatalf("got %v, want %s", err, mirror.PrettyName(desc))
	}
	if je.Descriptor != desc {
		t.Errorf("got %s, want %s", mirror.PrettyName(je.Descriptor), mirror.PrettyName(desc))
	}
}

func TestBootClasses(t *testing.T) {
	l := New(mirror.NewHeap(0), nil)

	t.Run("hierarchy", func(t *testing.T) {
		npe, err := l.FindClass(mirror.NullPointerException)
		if err != nil {
			t.Fatal(err)
		}
		rte, err := l.FindClass(mirror.RuntimeException)
		if err != nil {
			t.Fatal(err)
		}
		if !npe.IsSubClass(rte) {
			t.Errorf("%s is not a subclass of %s", npe, rte)
		}
		throwable := l.LookupClass(throwableClass)
		if throwable == nil || !npe.IsSubClass(throwable) {
			t.Errorf("%s is not a throwable", npe)
		}
		if npe.Loader != nil {
			t.Errorf("boot class loader: got %v, want nil", npe.Loader)
		}
	})

	t.Run("string implements CharSequence", func(t *testing.T) {
		str := l.LookupClass(stringClass)
		cs, err := l.FindClass("Ljava/lang/CharSequence;")
		if err != nil {
			t.Fatal(err)
		}
		if !cs.IsAssignableFrom(str) {
			t.Error("CharSequence is not assignable from String")
		}
	})

	t.Run("primitive", func(t *testing.T) {
		c, err := l.FindClass("I")
		if err != nil {
			t.Fatal(err)
		}
		if !c.IsPrimitive() || !c.IsInitialized() {
			t.Errorf("int: primitive=%v initialized=%v", c.IsPrimitive(), c.IsInitialized())
		}
	})

	t.Run("arrays", func(t *testing.T) {
		c, err := l.FindClass("[[Ljava/lang/String;")
		if err != nil {
			t.Fatal(err)
		}
		if c.Component.Descriptor != "[Ljava/lang/String;" {
			t.Errorf("component: got %s", c.Component.Descriptor)
		}
		if !c.Super.IsObjectClass() {
			t.Errorf("super: got %s, want java.lang.Object", c.Super)
		}
		cloneable := l.LookupClass("Ljava/lang/Cloneable;")
		if !cloneable.IsAssignableFrom(c) {
			t.Error("array is not Cloneable")
		}
		again, _ := l.FindClass("[[Ljava/lang/String;")
		if again != c {
			t.Error("array class defined twice")
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := l.FindClass("Lno/Such;")
		wantException(t, err, mirror.NoClassDefFoundError)
		if !errors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want ErrClassNotFound cause", err)
		}
	})
}

func TestDefineClass(t *testing.T) {
	l := newTestLinker(t)
	foo, err := l.FindClass("LFoo;")
	if err != nil {
		t.Fatal(err)
	}
	bar, err := l.FindClass("LBar;")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("layout", func(t *testing.T) {
		if foo.NumInstanceSlots != 1 || bar.NumInstanceSlots != 2 {
			t.Errorf("slots: got %d/%d, want 1/2", foo.NumInstanceSlots, bar.NumInstanceSlots)
		}
		y := bar.FindInstanceField("y", "I")
		if y == nil || y.Offset != 1 {
			t.Fatalf("field y: got %v", y)
		}
		if got := bar.FindInstanceFieldWithOffset(0); got == nil || got.Name != "x" {
			t.Errorf("slot 0: got %v, want x", got)
		}
	})

	t.Run("static initial values", func(t *testing.T) {
		count := foo.FindStaticField("count", "I")
		if got := count.GetPrim(nil); got != 5 {
			t.Errorf("count: got %d, want 5", got)
		}
		name := foo.FindStaticField("name", stringClass)
		s := name.GetRef(nil)
		if s.GoString() != "foo" {
			t.Errorf("name: got %s, want foo", s)
		}
		interned, err := l.InternString("foo")
		if err != nil {
			t.Fatal(err)
		}
		if interned != s {
			t.Error("static string value is not interned")
		}
	})

	t.Run("vtable override", func(t *testing.T) {
		fooGet := foo.FindDeclaredVirtualMethod("get", "()I")
		barGet := bar.FindDeclaredVirtualMethod("get", "()I")
		if fooGet.VTableIndex != barGet.VTableIndex {
			t.Errorf("vtable index: got %d, want %d", barGet.VTableIndex, fooGet.VTableIndex)
		}
		if got := bar.FindVirtualMethodForVirtualOrInterface(fooGet); got != barGet {
			t.Errorf("dispatch: got %v, want %v", got, barGet)
		}
		hash := foo.FindVirtualMethod("hashCode", "()I")
		if hash == nil || bar.VTable[hash.VTableIndex] != hash {
			t.Error("inherited hashCode missing from vtable")
		}
	})

	t.Run("redefinition", func(t *testing.T) {
		def, err := l.boot.LoadClass(objectClass)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.DefineClass(def); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("interface without superclass", func(t *testing.T) {
		img := &image.Image{Location: "iface", Classes: []image.ClassDef{
			{Descriptor: "LShape;", Flags: dex.AccPublic | dex.AccInterface | dex.AccAbstract,
				Methods: []image.MethodDef{{Name: "area", Descriptor: "()I", Flags: dex.AccPublic | dex.AccAbstract}}},
		}}
		c, err := l.DefineClass(&Definition{Class: &img.Classes[0], File: img.File()})
		if err != nil {
			t.Fatal(err)
		}
		if c.Super == nil || !c.Super.IsObjectClass() {
			t.Errorf("super: got %v, want java.lang.Object", c.Super)
		}
		if m := c.FindDeclaredVirtualMethod("area", "()I"); m == nil || !m.IsAbstract() {
			t.Errorf("area: got %v, want an abstract method", m)
		}
		serializable := l.LookupClass("Ljava/io/Serializable;")
		if serializable == nil || serializable.Super == nil || !serializable.Super.IsObjectClass() {
			t.Errorf("boot interface Serializable: got %v", serializable)
		}
	})

	t.Run("class without superclass", func(t *testing.T) {
		img := &image.Image{Location: "orphan", Classes: []image.ClassDef{
			{Descriptor: "LOrphan;", Flags: dex.AccPublic},
		}}
		if _, err := l.DefineClass(&Definition{Class: &img.Classes[0], File: img.File()}); err == nil {
			t.Error("defined a class with no superclass")
		}
	})

	t.Run("final superclass", func(t *testing.T) {
		img := &image.Image{Location: "bad", Classes: []image.ClassDef{
			{Descriptor: "LMyString;", Super: stringClass},
		}}
		_, err := l.DefineClass(&Definition{Class: &img.Classes[0], File: img.File()})
		wantException(t, err, mirror.IncompatibleClassChangeError)
	})
}

func TestResolve(t *testing.T) {
	img, pool := testImage(t)
	x := pool.FieldIndex(dex.FieldID{Class: "LFoo;", Name: "x", Type: "I"})
	count := pool.FieldIndex(dex.FieldID{Class: "LBar;", Name: "count", Type: "I"})
	missing := pool.FieldIndex(dex.FieldID{Class: "LFoo;", Name: "nope", Type: "I"})
	secret := pool.FieldIndex(dex.FieldID{Class: "Lother/Baz;", Name: "secret", Type: "I"})
	get := pool.MethodIndex(dex.MethodID{Class: "LBar;", Name: "get", Descriptor: "()I"})
	hide := pool.MethodIndex(dex.MethodID{Class: "Lother/Baz;", Name: "hide", Descriptor: "()V"})
	noMethod := pool.MethodIndex(dex.MethodID{Class: "LFoo;", Name: "nope", Descriptor: "()V"})
	hashCode := pool.MethodIndex(dex.MethodID{Class: "Ljava/lang/Runnable;", Name: "hashCode", Descriptor: "()I"})
	hidden := pool.TypeIndex("Lother/Hidden;")
	hello := pool.StringIndex("hello")
	// インデックスを全部積んでからプールを確定させる
	img.SetPools(pool.File())
	l := New(mirror.NewHeap(0), NewImageLoader(img, nil))
	foo, err := l.FindClass("LFoo;")
	if err != nil {
		t.Fatal(err)
	}
	referrer := foo.FindDeclaredVirtualMethod("get", "()I")

	t.Run("instance field", func(t *testing.T) {
		f, err := l.ResolveField(x, referrer, false, true)
		if err != nil {
			t.Fatal(err)
		}
		if f.Name != "x" || f.Declaring != foo {
			t.Errorf("got %v", f)
		}
		if l.LookupResolvedField(x, referrer) != f {
			t.Error("resolved field not cached")
		}
	})

	t.Run("inherited static field", func(t *testing.T) {
		f, err := l.ResolveField(count, referrer, true, true)
		if err != nil {
			t.Fatal(err)
		}
		if f.Declaring != foo {
			t.Errorf("declaring: got %s, want Foo", f.Declaring)
		}
	})

	tests := []struct {
		name    string
		resolve func() error
		want    string
	}{
		{"missing field", func() error {
			_, err := l.ResolveField(missing, referrer, false, false)
			return err
		}, mirror.NoSuchFieldError},
		{"static as instance", func() error {
			_, err := l.ResolveField(count, referrer, false, false)
			return err
		}, mirror.IncompatibleClassChangeError},
		{"private field", func() error {
			_, err := l.ResolveField(secret, referrer, false, true)
			return err
		}, mirror.IllegalAccessError},
		{"missing method", func() error {
			_, err := l.ResolveMethod(noMethod, referrer, mirror.InvokeVirtual, false)
			return err
		}, mirror.NoSuchMethodError},
		{"virtual as static", func() error {
			_, err := l.ResolveMethod(get, referrer, mirror.InvokeStatic, false)
			return err
		}, mirror.IncompatibleClassChangeError},
		{"private method", func() error {
			_, err := l.ResolveMethod(hide, referrer, mirror.InvokeStatic, true)
			return err
		}, mirror.IllegalAccessError},
		{"class as interface", func() error {
			_, err := l.ResolveMethod(get, referrer, mirror.InvokeInterface, true)
			return err
		}, mirror.IncompatibleClassChangeError},
		{"package-private class", func() error {
			_, err := l.ResolveTypeChecked(hidden, referrer, true)
			return err
		}, mirror.IllegalAccessError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantException(t, tt.resolve(), tt.want)
		})
	}

	t.Run("access checks off", func(t *testing.T) {
		if _, err := l.ResolveField(secret, referrer, false, false); err != nil {
			t.Errorf("got %v, want success", err)
		}
		if _, err := l.ResolveTypeChecked(hidden, referrer, false); err != nil {
			t.Errorf("got %v, want success", err)
		}
	})

	t.Run("interface method falls back to Object", func(t *testing.T) {
		m, err := l.ResolveMethod(hashCode, referrer, mirror.InvokeInterface, true)
		if err != nil {
			t.Fatal(err)
		}
		if !m.Declaring.IsObjectClass() {
			t.Errorf("declaring: got %s, want java.lang.Object", m.Declaring)
		}
	})

	t.Run("string", func(t *testing.T) {
		s, err := l.ResolveString(hello, referrer)
		if err != nil {
			t.Fatal(err)
		}
		again, _ := l.InternString("hello")
		if s != again || s.GoString() != "hello" {
			t.Errorf("got %v, want interned hello", s)
		}
	})

	t.Run("bad index", func(t *testing.T) {
		_, err := l.ResolveType(9999, referrer)
		wantException(t, err, mirror.VirtualMachineError)
	})
}

func TestEnsureInitialized(t *testing.T) {
	t.Run("runs once across goroutines", func(t *testing.T) {
		l := newTestLinker(t)
		foo, _ := l.FindClass("LFoo;")
		var calls atomic.Int32
		run := func(clinit *mirror.Method) error {
			calls.Add(1)
			return nil
		}
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			owner := i
			g.Go(func() error { return l.EnsureInitialized(foo, owner, run) })
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		if calls.Load() != 1 {
			t.Errorf("<clinit> calls: got %d, want 1", calls.Load())
		}
		if !foo.IsInitialized() {
			t.Errorf("status: got %s, want Initialized", foo.Status())
		}
	})

	t.Run("recursive initialization by owner", func(t *testing.T) {
		l := newTestLinker(t)
		foo, _ := l.FindClass("LFoo;")
		var run func(*mirror.Method) error
		run = func(clinit *mirror.Method) error {
			return l.EnsureInitialized(clinit.Declaring, "main", run)
		}
		if err := l.EnsureInitialized(foo, "main", run); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("subclass initializes superclass", func(t *testing.T) {
		l := newTestLinker(t)
		bar, _ := l.FindClass("LBar;")
		var ran []string
		run := func(clinit *mirror.Method) error {
			ran = append(ran, clinit.Declaring.Name())
			return nil
		}
		if err := l.EnsureInitialized(bar, "main", run); err != nil {
			t.Fatal(err)
		}
		if len(ran) != 1 || ran[0] != "Foo" || !bar.Super.IsInitialized() {
			t.Errorf("initializers: got %v, want [Foo]", ran)
		}
	})

	t.Run("failure", func(t *testing.T) {
		l := newTestLinker(t)
		foo, _ := l.FindClass("LFoo;")
		run := func(*mirror.Method) error {
			return mirror.NewJavaException(mirror.RuntimeException, "boom")
		}
		err := l.EnsureInitialized(foo, "main", run)
		wantException(t, err, mirror.ExceptionInInitializerError)
		var cause *mirror.JavaException
		if !errors.As(errors.Unwrap(err), &cause) || cause.Message != "boom" {
			t.Errorf("cause: got %v", errors.Unwrap(err))
		}
		if !foo.IsErroneous() {
			t.Errorf("status: got %s, want Error", foo.Status())
		}
		err = l.EnsureInitialized(foo, "main", run)
		wantException(t, err, mirror.NoClassDefFoundError)
	})

	t.Run("errors are not wrapped", func(t *testing.T) {
		l := newTestLinker(t)
		foo, _ := l.FindClass("LFoo;")
		run := func(*mirror.Method) error {
			return mirror.NewJavaException(mirror.TransactionAbortError, "aborted")
		}
		wantException(t, l.EnsureInitialized(foo, "main", run), mirror.TransactionAbortError)
	})
}

func TestLoaders(t *testing.T) {
	img, _ := testImage(t)
	dir := t.TempDir()
	if err := image.Save(filepath.Join(dir, "app.gdxz"), img); err != nil {
		t.Fatal(err)
	}
	parentImg := &image.Image{Location: "parent", Classes: []image.ClassDef{
		{Descriptor: "LFoo;", Super: objectClass, Flags: dex.AccPublic | dex.AccFinal},
	}}
	parent := NewImageLoader(parentImg, nil)

	t.Run("dir loader", func(t *testing.T) {
		cl := NewDirLoader(dir, nil)
		def, err := cl.LoadClass("LBar;")
		if err != nil {
			t.Fatal(err)
		}
		if def.Class.Super != "LFoo;" || def.Loader != Loader(cl) {
			t.Errorf("got %+v", def)
		}
		if _, err := cl.LoadClass("LNope;"); !errors.Is(err, ErrClassNotFound) {
			t.Errorf("got %v, want ErrClassNotFound", err)
		}
	})

	t.Run("parent first", func(t *testing.T) {
		cl := NewDirLoader(dir, parent)
		def, err := cl.LoadClass("LFoo;")
		if err != nil {
			t.Fatal(err)
		}
		if def.Loader != Loader(parent) {
			t.Errorf("loader: got %T, want parent", def.Loader)
		}
	})

	t.Run("linked through loader", func(t *testing.T) {
		cl := NewDirLoader(dir, nil)
		l := New(mirror.NewHeap(0), cl)
		bar, err := l.FindClass("LBar;")
		if err != nil {
			t.Fatal(err)
		}
		if bar.Loader != any(cl) || bar.Super.Loader != any(cl) {
			t.Errorf("loader: got %v", bar.Loader)
		}
		other, _ := l.FindClass("Lother/Hidden;")
		foo := bar.Super
		if foo.IsInSamePackage(other) {
			t.Error("different packages reported equal")
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		cl := NewDirLoader(filepath.Join(dir, "nope"), nil)
		if _, err := cl.LoadClass("LFoo;"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestThrowable(t *testing.T) {
	l := New(mirror.NewHeap(0), nil)
	cause, err := l.NewThrowable(mirror.ArithmeticException, "divide by zero", nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := l.NewThrowable(mirror.RuntimeException, "wrapped", cause)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.ThrowableMessage(e); got != "wrapped" {
		t.Errorf("message: got %q, want %q", got, "wrapped")
	}
	if l.ThrowableCause(e) != cause {
		t.Error("cause not set")
	}
	want := "java.lang.RuntimeException: wrapped; caused by java.lang.ArithmeticException: divide by zero"
	if got := l.Describe(e); got != want {
		t.Errorf("Describe: got %q, want %q", got, want)
	}
}
