package interp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

func recursiveProgram(t *testing.T) *program {
	p := newProgram(t)
	c := p.class("LRec;", objectClass, 0)
	rec := p.meth("LRec;", "rec", "()V")
	p.method(c, "rec", "()V", dex.AccStatic, 4, 0, func(b *dex.Builder) {
		b.Invoke(dex.OpInvokeStatic, rec)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	return p
}

func TestStackOverflow(t *testing.T) {
	depthLimited := DefaultOptions()
	depthLimited.MaxDepth = 50
	sizeLimited := DefaultOptions()
	sizeLimited.StackSize = 10 * frameSize(4)
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"depth", depthLimited, fmt.Sprintf("stack size %d bytes", depthLimited.StackSize)},
		{"bytes", sizeLimited, fmt.Sprintf("stack size %d bytes", sizeLimited.StackSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := recursiveProgram(t).env(tt.opts)
			e.call("LRec;", "rec", "()V")
			if got := e.exception(mirror.StackOverflowError); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if d := e.self.Depth(); d != 0 {
				t.Errorf("depth after overflow = %d, want 0", d)
			}
			if e.self.stackUsed != 0 {
				t.Errorf("stack bytes after overflow = %d, want 0", e.self.stackUsed)
			}
		})
	}
}

func TestSuspendAll(t *testing.T) {
	p := newProgram(t)
	c := p.class("LSpin;", objectClass, 0, fieldDef("stop", "I", dex.AccStatic))
	stop := p.field("LSpin;", "stop", "I")
	p.method(c, "spin", "()V", dex.AccStatic, 1, 0, func(b *dex.Builder) {
		b.Label("loop")
		b.Op(dex.OpSget, 0, stop, 0)
		b.Branch(dex.OpIfEqz, "loop", 0)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})

	forEachEngine(t, func(t *testing.T, engine Engine) {
		e := p.env(optionsFor(engine))
		spin := e.method("LSpin;", "spin", "()V")
		if !e.self.EnsureInitialized(spin.Declaring) {
			t.Fatal("Spin did not initialize")
		}
		spinner := e.rt.AttachThread("spinner")

		var g errgroup.Group
		g.Go(func() error {
			defer spinner.Detach()
			spinner.Invoke(spin, nil)
			if exc := spinner.Exception(); exc != nil {
				return errors.New(e.linker.Describe(exc))
			}
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.rt.SuspendAll(ctx, e.self); err != nil {
			t.Fatalf("SuspendAll: %v", err)
		}
		if s := spinner.State(); s != StateSuspended {
			t.Errorf("spinner state = %s, want %s", s, StateSuspended)
		}
		e.staticField("LSpin;", "stop", "I").SetPrim(nil, 1)
		e.rt.ResumeAll()

		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		if s := spinner.State(); s != StateTerminated {
			t.Errorf("spinner state = %s, want %s", s, StateTerminated)
		}
	})
}

func TestSuspendAllTimeout(t *testing.T) {
	e := newProgram(t).env(DefaultOptions())
	idle := e.rt.AttachThread("idle")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.rt.SuspendAll(ctx, e.self); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want %v", err, context.DeadlineExceeded)
	}
	if e.rt.suspendPending.Load() {
		t.Error("suspend request still pending after timeout")
	}

	idle.Detach()
	if err := e.rt.SuspendAll(context.Background(), e.self); err != nil {
		t.Fatalf("SuspendAll without other threads: %v", err)
	}
	e.rt.ResumeAll()
}

func TestVisitRoots(t *testing.T) {
	p := newProgram(t)
	p.class("LObj;", objectClass, 0)
	e := p.env(DefaultOptions())
	other := e.rt.AttachThread("other")
	defer other.Detach()
	if other.ID == e.self.ID {
		t.Error("threads share an id")
	}

	held := e.newObject("LObj;")
	f := NewShadowFrame(2, nil, nil, 0)
	f.SetVRegReference(1, held)
	if !other.PushShadowFrame(f) {
		t.Fatal("PushShadowFrame failed")
	}
	defer other.PopShadowFrame(f)
	exc, err := e.linker.NewThrowable(runtimeException, "pending", nil)
	if err != nil {
		t.Fatal(err)
	}
	e.self.SetException(exc)
	defer e.self.ClearException()

	seen := map[*mirror.Object]bool{}
	e.rt.VisitRoots(func(o *mirror.Object) { seen[o] = true })
	if !seen[held] {
		t.Error("frame reference not visited")
	}
	if !seen[exc] {
		t.Error("pending exception not visited")
	}
}

func monitorProgram(t *testing.T) *program {
	p := newProgram(t)
	c := p.class("LCounter;", objectClass, 0, fieldDef("n", "I", dex.AccStatic))
	n := p.field("LCounter;", "n", "I")
	increment := func(b *dex.Builder) {
		b.Op(dex.OpSget, 0, n, 0)
		b.Op(dex.OpAddIntLit8, 0, 0, 1)
		b.Op(dex.OpSput, 0, n, 0)
	}
	p.method(c, "inc", "(Ljava/lang/Object;)V", dex.AccStatic, 2, 1, func(b *dex.Builder) {
		b.Op(dex.OpMonitorEnter, 1, 0, 0)
		increment(b)
		b.Op(dex.OpMonitorExit, 1, 0, 0)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	p.method(c, "syncInc", "()V", dex.AccStatic|dex.AccSynchronized, 1, 0, func(b *dex.Builder) {
		increment(b)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	p.method(c, "syncIncArg", "(Ljava/lang/Object;)V", dex.AccStatic|dex.AccSynchronized, 2, 1, func(b *dex.Builder) {
		increment(b)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	p.method(c, "exitOnly", "(Ljava/lang/Object;)V", dex.AccStatic, 1, 1, func(b *dex.Builder) {
		b.Op(dex.OpMonitorExit, 0, 0, 0)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	return p
}

func TestMonitors(t *testing.T) {
	const workers, rounds = 4, 200
	tests := []struct {
		name   string
		method string
		desc   string
	}{
		{"monitor-enter", "inc", "(Ljava/lang/Object;)V"},
		{"synchronized", "syncInc", "()V"},
		{"synchronized with argument", "syncIncArg", "(Ljava/lang/Object;)V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachEngine(t, func(t *testing.T, engine Engine) {
				e := monitorProgram(t).env(optionsFor(engine))
				lock := e.newObject(objectClass)
				m := e.method("LCounter;", tt.method, tt.desc)
				var args []JValue
				if len(m.ParamTypes()) == 1 {
					args = []JValue{RefValue(lock)}
				}

				var g errgroup.Group
				for w := 0; w < workers; w++ {
					th := e.rt.AttachThread(fmt.Sprintf("worker-%d", w))
					g.Go(func() error {
						defer th.Detach()
						for i := 0; i < rounds; i++ {
							th.Invoke(m, nil, args...)
							if exc := th.Exception(); exc != nil {
								return errors.New(e.linker.Describe(exc))
							}
						}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					t.Fatal(err)
				}
				if got := int32(e.staticField("LCounter;", "n", "I").GetPrim(nil)); got != workers*rounds {
					t.Errorf("counter = %d, want %d", got, workers*rounds)
				}
				if owner, _ := lock.Monitor().Owner(); owner != nil {
					t.Errorf("lock still owned by %v", owner)
				}
				classLock, err := e.linker.ClassMirror(e.class("LCounter;"))
				if err != nil {
					t.Fatal(err)
				}
				if owner, _ := classLock.Monitor().Owner(); owner != nil {
					t.Errorf("class lock still owned by %v", owner)
				}
			})
		})
	}
}

func TestMonitorExitNotOwner(t *testing.T) {
	e := monitorProgram(t).env(DefaultOptions())
	e.call("LCounter;", "exitOnly", "(Ljava/lang/Object;)V", RefValue(e.newObject(objectClass)))
	want := "did not lock monitor on object of type 'java.lang.Object' before unlocking"
	if got := e.exception(mirror.IllegalMonitorStateException); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestClassInitializedOnce(t *testing.T) {
	p := newProgram(t)
	c := p.class("LOnce;", objectClass, 0, fieldDef("runs", "I", dex.AccStatic))
	runs := p.field("LOnce;", "runs", "I")
	p.method(c, "<clinit>", "()V", clinitFlags, 1, 0, func(b *dex.Builder) {
		b.Op(dex.OpSget, 0, runs, 0)
		b.Op(dex.OpAddIntLit8, 0, 0, 1)
		b.Op(dex.OpSput, 0, runs, 0)
		b.Op(dex.OpReturnVoid, 0, 0, 0)
	})
	e := p.env(DefaultOptions())
	once := e.class("LOnce;")

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		th := e.rt.AttachThread(fmt.Sprintf("init-%d", w))
		g.Go(func() error {
			defer th.Detach()
			if !th.EnsureInitialized(once) {
				return errors.New(e.linker.Describe(th.Exception()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := e.staticField("LOnce;", "runs", "I").GetPrim(nil); got != 1 {
		t.Errorf("<clinit> ran %d times, want 1", got)
	}
}
