package interp

import (
	"testing"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/linker"
	"github.com/daimatz/godex/pkg/mirror"
)

const (
	objectClass    = "Ljava/lang/Object;"
	stringClass    = "Ljava/lang/String;"
	throwableClass = "Ljava/lang/Throwable;"
)

// program collects the classes of a test image. Pool indices must be taken
// through its helpers before env is called.
type program struct {
	t       *testing.T
	pool    *dex.Pool
	classes []*image.ClassDef
}

func newProgram(t *testing.T) *program {
	t.Helper()
	return &program{t: t, pool: dex.NewPool("test")}
}

func (p *program) class(desc, super string, flags uint32, fields ...image.FieldDef) *image.ClassDef {
	c := &image.ClassDef{Descriptor: desc, Super: super, Flags: flags | dex.AccPublic, Fields: fields}
	p.classes = append(p.classes, c)
	return c
}

// method adds a method whose body is emitted by body.
func (p *program) method(c *image.ClassDef, name, desc string, flags uint32, regs, ins int, body func(b *dex.Builder)) {
	p.t.Helper()
	b := dex.NewBuilder()
	body(b)
	code, err := b.Build(regs, ins, 0)
	if err != nil {
		p.t.Fatalf("%s.%s%s: %v", c.Descriptor, name, desc, err)
	}
	md := image.MethodDef{Name: name, Descriptor: desc, Flags: flags}
	if err := md.SetCodeItem(code); err != nil {
		p.t.Fatal(err)
	}
	c.Methods = append(c.Methods, md)
}

// bodiless adds an abstract or native method.
func (p *program) bodiless(c *image.ClassDef, name, desc string, flags uint32) {
	c.Methods = append(c.Methods, image.MethodDef{Name: name, Descriptor: desc, Flags: flags})
}

func (p *program) meth(class, name, desc string) int {
	return int(p.pool.MethodIndex(dex.MethodID{Class: class, Name: name, Descriptor: desc}))
}

func (p *program) field(class, name, typ string) int {
	return int(p.pool.FieldIndex(dex.FieldID{Class: class, Name: name, Type: typ}))
}

func (p *program) typ(desc string) int { return int(p.pool.TypeIndex(desc)) }
func (p *program) str(s string) int    { return int(p.pool.StringIndex(s)) }

type env struct {
	t      *testing.T
	linker *linker.Linker
	rt     *Runtime
	self   *Thread
}

func (p *program) env(opts Options) *env {
	p.t.Helper()
	return p.envWith(opts, nil)
}

// envWith is env with the class linker seen by the runtime replaced by
// wrap(l).
func (p *program) envWith(opts Options, wrap func(ClassLinker) ClassLinker) *env {
	p.t.Helper()
	img := &image.Image{Version: image.Version, Location: "test"}
	for _, c := range p.classes {
		img.Classes = append(img.Classes, *c)
	}
	img.SetPools(p.pool.File())
	if err := img.Validate(); err != nil {
		p.t.Fatal(err)
	}
	l := linker.New(mirror.NewHeap(0), linker.NewImageLoader(img, nil))
	var cl ClassLinker = l
	if wrap != nil {
		cl = wrap(l)
	}
	rt, err := NewRuntime(cl, l.Heap(), opts)
	if err != nil {
		p.t.Fatal(err)
	}
	self := rt.AttachThread("main")
	p.t.Cleanup(self.Detach)
	return &env{t: p.t, linker: l, rt: rt, self: self}
}

func optionsFor(engine Engine) Options {
	opts := DefaultOptions()
	opts.Engine = engine
	return opts
}

// forEachEngine runs fn once per dispatch driver.
func forEachEngine(t *testing.T, fn func(t *testing.T, engine Engine)) {
	t.Helper()
	for _, e := range []Engine{EngineSwitch, EngineTable} {
		t.Run(e.String(), func(t *testing.T) { fn(t, e) })
	}
}

func (e *env) class(desc string) *mirror.Class {
	e.t.Helper()
	c, err := e.linker.FindClass(desc)
	if err != nil {
		e.t.Fatal(err)
	}
	return c
}

func (e *env) method(class, name, desc string) *mirror.Method {
	e.t.Helper()
	m := e.class(class).FindMethod(name, desc)
	if m == nil {
		e.t.Fatalf("no method %s.%s%s", class, name, desc)
	}
	return m
}

// call invokes a static method.
func (e *env) call(class, name, desc string, args ...JValue) JValue {
	e.t.Helper()
	return e.self.Invoke(e.method(class, name, desc), nil, args...)
}

func (e *env) newObject(desc string) *mirror.Object {
	e.t.Helper()
	o, err := e.linker.Heap().AllocObject(e.class(desc), mirror.AllocatorTLAB)
	if err != nil {
		e.t.Fatal(err)
	}
	return o
}

func (e *env) noException() {
	e.t.Helper()
	if exc := e.self.Exception(); exc != nil {
		e.t.Fatalf("unexpected exception %s", e.linker.Describe(exc))
	}
}

// exception checks that an exception of class desc is pending, clears it
// and returns its message.
func (e *env) exception(desc string) string {
	e.t.Helper()
	exc := e.self.Exception()
	if exc == nil {
		e.t.Fatalf("no exception pending, want %s", mirror.PrettyName(desc))
	}
	e.self.ClearException()
	if exc.Class().Descriptor != desc {
		e.t.Fatalf("got %s, want %s", e.linker.Describe(exc), mirror.PrettyName(desc))
	}
	return e.linker.ThrowableMessage(exc)
}

func (e *env) staticField(class, name, typ string) *mirror.Field {
	e.t.Helper()
	f := e.class(class).FindStaticField(name, typ)
	if f == nil {
		e.t.Fatalf("no static field %s.%s", class, name)
	}
	return f
}

func fieldDef(name, typ string, flags uint32) image.FieldDef {
	return image.FieldDef{Name: name, Type: typ, Flags: flags | dex.AccPublic}
}
