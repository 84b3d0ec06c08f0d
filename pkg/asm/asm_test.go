package asm

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/linker"
	"github.com/daimatz/godex/pkg/mirror"
	"github.com/daimatz/godex/pkg/native"
)

func TestMain(m *testing.M) {
	native.Initialize()
	os.Exit(m.Run())
}

const calcSource = `
# Arithmetic helpers.
.class public LCalc;
.super Ljava/lang/Object;
.source "Calc.dasm"

.field public static base:I = 10
.field public static name:Ljava/lang/String; = "calc"
.field public static ratio:D = 0.25

.method public static fact(I)I
    .registers 3
    const/4 v0, 1
:loop
    if-lez p0, :done
    mul-int/2addr v0, p0
    add-int/lit8 p0, p0, -1
    goto :loop
:done
    return v0
.end method

.method public static sum()I
    .registers 5
    const/4 v0, 4
    new-array v0, v0, [I
    fill-array-data v0, 4, {1, 2, 3, 4}
    const/4 v1, 0       # sum
    const/4 v2, 0       # index
:loop
    array-length v3, v0
    if-ge v2, v3, :done
    aget v4, v0, v2
    add-int/2addr v1, v4
    add-int/lit8 v2, v2, 1
    goto :loop
:done
    return v1
.end method

.method public static classify(I)I
    .registers 2
    sparse-switch p0, {-5 -> :neg, 100 -> :big}
    const/4 v0, 0
    return v0
:neg
    const/4 v0, -1
    return v0
:big
    const/16 v0, 100
    return v0
.end method

.method public static ordinal(I)I
    .registers 2
    packed-switch p0, 1, {:one, :two}
    const/4 v0, 0
    return v0
:one
    const/16 v0, 10
    return v0
:two
    const/16 v0, 20
    return v0
.end method

.method public static safeDiv(II)I
    .registers 3
:start
    div-int v0, p0, p1
:end
    return v0
:handler
    const/4 v0, -1
    return v0
    .catch Ljava/lang/ArithmeticException; {:start .. :end} :handler
.end method

.method public static base()I
    .registers 1
    sget v0, LCalc;->base:I
    return v0
.end method

.method public static name()Ljava/lang/String;
    .registers 1
    sget-object v0, LCalc;->name:Ljava/lang/String;
    return-object v0
.end method

.method public static scaled(D)D
    .registers 4
    sget-wide v0, LCalc;->ratio:D
    mul-double/2addr v0, p0
    return-wide v0
.end method

.method public static constants()J
    .registers 4
    const/high16 v0, 1.5f
    float-to-int v0, v0
    int-to-long v0, v0
    const-wide v2, 0x100000000L
    add-long/2addr v0, v2
    return-wide v0
.end method
`

const counterSource = `
.class public LCounter;
.field private count:I

.method public constructor <init>()V
    .registers 1
    invoke-direct {p0}, Ljava/lang/Object;-><init>()V
    return-void
.end method

.method public inc()I
    .registers 2
    iget v0, p0, LCounter;->count:I
    add-int/lit8 v0, v0, 1
    iput v0, p0, LCounter;->count:I
    return v0
.end method

.method public static twice()I
    .registers 2
    new-instance v0, LCounter;
    invoke-direct {v0}, LCounter;-><init>()V
    invoke-virtual {v0}, LCounter;->inc()I
    invoke-virtual/range {v0 .. v0}, LCounter;->inc()I
    move-result v1
    return v1
.end method

.method public static hello()V
    .registers 1
    const-string v0, "hello, world"
    invoke-static {v0}, Lgodex/io/Console;->println(Ljava/lang/String;)V
    return-void
.end method

.method public native ping()V
.end method

.class public interface LShape;
.method public abstract area()I
.end method
`

type env struct {
	t    *testing.T
	l    *linker.Linker
	self *interp.Thread
	out  *bytes.Buffer
}

func run(t *testing.T, img *image.Image) *env {
	t.Helper()
	l := linker.New(mirror.NewHeap(0), linker.NewImageLoader(img, nil))
	out := &bytes.Buffer{}
	opts := interp.DefaultOptions()
	opts.Stdout = out
	rt, err := interp.NewRuntime(l, l.Heap(), opts)
	if err != nil {
		t.Fatal(err)
	}
	rt.SetNativeBridge(native.NewBridge())
	self := rt.AttachThread("main")
	t.Cleanup(self.Detach)
	return &env{t: t, l: l, self: self, out: out}
}

func (e *env) call(class, name, desc string, args ...interp.JValue) interp.JValue {
	e.t.Helper()
	c, err := e.l.FindClass(class)
	if err != nil {
		e.t.Fatal(err)
	}
	m := c.FindMethod(name, desc)
	if m == nil {
		e.t.Fatalf("no method %s.%s%s", class, name, desc)
	}
	v := e.self.Invoke(m, nil, args...)
	if exc := e.self.Exception(); exc != nil {
		e.t.Fatalf("%s%s: %s", name, desc, e.l.Describe(exc))
	}
	return v
}

func TestAssembleAndRun(t *testing.T) {
	a := New("test")
	if err := a.AddSource("Calc.dasm", calcSource); err != nil {
		t.Fatal(err)
	}
	if err := a.AddSource("Counter.dasm", counterSource); err != nil {
		t.Fatal(err)
	}
	img, err := a.Image()
	if err != nil {
		t.Fatal(err)
	}
	e := run(t, img)

	ints := []struct {
		name, desc string
		args       []interp.JValue
		want       int32
	}{
		{"fact", "(I)I", []interp.JValue{interp.IntValue(5)}, 120},
		{"fact", "(I)I", []interp.JValue{interp.IntValue(0)}, 1},
		{"sum", "()I", nil, 10},
		{"classify", "(I)I", []interp.JValue{interp.IntValue(-5)}, -1},
		{"classify", "(I)I", []interp.JValue{interp.IntValue(100)}, 100},
		{"classify", "(I)I", []interp.JValue{interp.IntValue(7)}, 0},
		{"ordinal", "(I)I", []interp.JValue{interp.IntValue(1)}, 10},
		{"ordinal", "(I)I", []interp.JValue{interp.IntValue(2)}, 20},
		{"ordinal", "(I)I", []interp.JValue{interp.IntValue(3)}, 0},
		{"safeDiv", "(II)I", []interp.JValue{interp.IntValue(9), interp.IntValue(3)}, 3},
		{"safeDiv", "(II)I", []interp.JValue{interp.IntValue(9), interp.IntValue(0)}, -1},
		{"base", "()I", nil, 10},
	}
	for _, tt := range ints {
		if got := e.call("LCalc;", tt.name, tt.desc, tt.args...).Int(); got != tt.want {
			t.Errorf("%s%v: got %d, want %d", tt.name, tt.args, got, tt.want)
		}
	}
	if got := e.call("LCalc;", "name", "()Ljava/lang/String;").Ref().GoString(); got != "calc" {
		t.Errorf("name: got %q, want %q", got, "calc")
	}
	if got := e.call("LCalc;", "scaled", "(D)D", interp.DoubleValue(8)).Double(); got != 2 {
		t.Errorf("scaled: got %v, want 2", got)
	}
	if got := e.call("LCalc;", "constants", "()J").Long(); got != 1<<32+1 {
		t.Errorf("constants: got %d, want %d", got, int64(1<<32+1))
	}
	if got := e.call("LCounter;", "twice", "()I").Int(); got != 2 {
		t.Errorf("twice: got %d, want 2", got)
	}
	e.call("LCounter;", "hello", "()V")
	if got := e.out.String(); got != "hello, world\n" {
		t.Errorf("output: got %q", got)
	}
}

func TestClassShape(t *testing.T) {
	img, err := Assemble("Counter.dasm", counterSource)
	if err != nil {
		t.Fatal(err)
	}
	counter := img.FindClass("LCounter;")
	if counter == nil {
		t.Fatal("LCounter; not assembled")
	}
	if counter.Super != "Ljava/lang/Object;" {
		t.Errorf("super: got %q, want java.lang.Object", counter.Super)
	}
	flags := map[string]uint32{}
	for _, m := range counter.Methods {
		flags[m.Name] = m.Flags
	}
	if flags["<init>"]&dex.AccConstructor == 0 {
		t.Error("<init> is not a constructor")
	}
	if flags["ping"]&dex.AccNative == 0 {
		t.Error("ping is not native")
	}
	shape := img.FindClass("LShape;")
	if shape == nil || shape.Flags&(dex.AccInterface|dex.AccAbstract) != dex.AccInterface|dex.AccAbstract {
		t.Errorf("LShape; flags: got %+v", shape)
	}
}

func TestRegistersAndTries(t *testing.T) {
	src := `
.class public LRegs;
.method public static f(JI)V
    .registers 6
:a
    move-wide v0, p0
    move v2, p2
    invoke-static {v0, v1, v2}, LRegs;->f(JI)V
:b
    return-void
:h1
    return-void
:h2
    return-void
:h3
    return-void
    .catch Ljava/lang/ArithmeticException; {:a .. :b} :h1
    .catch Ljava/lang/NullPointerException; {:a .. :b} :h2
    .catchall {:a .. :b} :h3
.end method
`
	img, err := Assemble("Regs.dasm", src)
	if err != nil {
		t.Fatal(err)
	}
	code, err := img.FindClass("LRegs;").Methods[0].CodeItem()
	if err != nil {
		t.Fatal(err)
	}
	if code.RegistersSize != 6 || code.InsSize != 3 || code.OutsSize != 3 {
		t.Errorf("sizes: got registers=%d ins=%d outs=%d, want 6, 3, 3", code.RegistersSize, code.InsSize, code.OutsSize)
	}
	first := code.Instruction(0)
	if first.VRegB() != 3 {
		t.Errorf("p0: got v%d, want v3", first.VRegB())
	}
	second := code.Instruction(uint32(first.SizeInCodeUnits()))
	if second.VRegB() != 5 {
		t.Errorf("p2: got v%d, want v5", second.VRegB())
	}
	if len(code.Tries) != 1 {
		t.Fatalf("tries: got %d, want 1", len(code.Tries))
	}
	if try := code.Tries[0]; len(try.Handlers) != 2 || !try.HasCatchAll {
		t.Errorf("try: got %d handlers, catch-all %v", len(try.Handlers), try.HasCatchAll)
	}
}

func TestFloatConstants(t *testing.T) {
	src := `
.class public LF;
.method public static f()V
    .registers 4
    const v0, 1.5f
    const v1, 0xffffffff
    const-wide v2, -Infinity
    return-void
.end method
`
	img, err := Assemble("F.dasm", src)
	if err != nil {
		t.Fatal(err)
	}
	code, err := img.FindClass("LF;").Methods[0].CodeItem()
	if err != nil {
		t.Fatal(err)
	}
	pc := uint32(0)
	next := func() dex.Instruction {
		in := code.Instruction(pc)
		pc += uint32(in.SizeInCodeUnits())
		return in
	}
	if got := uint32(next().VRegB()); got != math.Float32bits(1.5) {
		t.Errorf("const 1.5f: got %#x", got)
	}
	if got := next().VRegB(); got != -1 {
		t.Errorf("const 0xffffffff: got %d, want -1", got)
	}
	if got := next().WideVRegB(); got != int64(math.Float64bits(math.Inf(-1))) {
		t.Errorf("const-wide -Infinity: got %#x", got)
	}
}

func TestErrors(t *testing.T) {
	method := func(body string) string {
		return ".class public LBad;\n.method public static f(I)V\n" + body + ".end method\n"
	}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", ".class public\n", "syntax error"},
		{"unknown instruction", method("    .registers 1\n    frob v0\n"), `test.dasm:4:5: unknown instruction "frob"`},
		{"missing registers", method("    return-void\n"), "missing .registers"},
		{"too few registers", method("    .registers 0\n    return-void\n"), "cannot hold 1 argument registers"},
		{"argument register", method("    .registers 2\n    move v0, p1\n"), "p1 is not an argument register"},
		{"register range", method("    .registers 2\n    move v0, v2\n"), "v2 out of range"},
		{"operand count", method("    .registers 2\n    move v0\n"), "move takes 2 operands, got 1"},
		{"operand kind", method("    .registers 2\n    const-string v0, 5\n"), "want a string"},
		{"undefined label", method("    .registers 2\n    goto :nowhere\n"), `undefined label "nowhere"`},
		{"literal range", method("    .registers 2\n    const/4 v0, 8\n"), "literal"},
		{"high16 low bits", method("    .registers 2\n    const/high16 v0, 0x12345\n"), "bits below the top 16"},
		{"native body", ".class public LBad;\n.method public native f()V\n    return-void\n.end method\n", "have no body"},
		{"modifier", ".class publik LBad;\n", `unknown modifier "publik"`},
		{"instance value", ".class public LBad;\n.field public x:I = 1\n", "only static fields"},
		{"duplicate class", ".class public LBad;\n.class public LBad;\n", "defined twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble("test.dasm", tt.src)
			if err == nil {
				t.Fatal("assembled without error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestAddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Calc.dasm")
	if err := os.WriteFile(path, []byte(calcSource), 0o644); err != nil {
		t.Fatal(err)
	}
	a := New("files")
	if err := a.AddFile(path); err != nil {
		t.Fatal(err)
	}
	if err := a.AddFile(filepath.Join(t.TempDir(), "missing.dasm")); err == nil {
		t.Error("missing file assembled")
	}
	img, err := a.Image()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.FindClass("LCalc;").SourceFile; got != "Calc.dasm" {
		t.Errorf("source file: got %q", got)
	}
}
