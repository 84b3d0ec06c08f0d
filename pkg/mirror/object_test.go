package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/daimatz/godex/pkg/dex"
	"golang.org/x/sync/errgroup"
)

func TestObjectFields(t *testing.T) {
	tc := newTestClasses()
	point := &Class{Descriptor: "Lapp/Point;", Super: tc.object, NumInstanceSlots: 3}
	x := &Field{Declaring: point, Name: "x", Type: "I", Offset: 0}
	y := &Field{Declaring: point, Name: "y", Type: "J", Offset: 1, AccessFlags: dex.AccVolatile}
	next := &Field{Declaring: point, Name: "next", Type: "Lapp/Point;", Offset: 2}
	point.InstanceFields = []*Field{x, y, next}
	h := NewHeap(0)

	p, err := h.AllocObject(point, AllocatorTLAB)
	if err != nil {
		t.Fatal(err)
	}
	q, err := h.AllocObject(point, AllocatorTLAB)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("primitive", func(t *testing.T) {
		v := int32(-42)
		x.SetPrim(p, uint64(uint32(v)))
		if got := int32(x.GetPrim(p)); got != -42 {
			t.Errorf("x: got %d, want -42", got)
		}
		if got := x.GetPrim(q); got != 0 {
			t.Errorf("q.x: got %d, want 0", got)
		}
	})

	t.Run("volatile wide", func(t *testing.T) {
		y.SetPrim(p, 1<<40+7)
		if got := y.GetPrim(p); got != 1<<40+7 {
			t.Errorf("y: got %d, want %d", got, uint64(1<<40+7))
		}
	})

	t.Run("reference", func(t *testing.T) {
		next.SetRef(p, q)
		if got := next.GetRef(p); got != q {
			t.Errorf("next: got %v, want %v", got, q)
		}
		if got := next.GetRef(q); got != nil {
			t.Errorf("q.next: got %v, want nil", got)
		}
	})

	t.Run("offset lookup", func(t *testing.T) {
		if got := point.FindInstanceFieldWithOffset(2); got != next {
			t.Errorf("offset 2: got %v, want %v", got, next)
		}
		if got := next.PrettyField(); got != "app.Point app.Point.next" {
			t.Errorf("PrettyField: got %q", got)
		}
	})

	t.Run("identity", func(t *testing.T) {
		if p.ID() == 0 || p.ID() == q.ID() {
			t.Errorf("ids: got %d and %d, want distinct non-zero", p.ID(), q.ID())
		}
	})
}

func TestStaticField(t *testing.T) {
	c := &Class{Descriptor: "LCounter;", Statics: make([]Slot, 1)}
	f := &Field{Declaring: c, Name: "count", Type: "I", AccessFlags: dex.AccStatic, Offset: 0}
	f.SetPrim(nil, 9)
	if got := f.GetPrim(nil); got != 9 {
		t.Errorf("static: got %d, want 9", got)
	}
}

func TestVolatileStaticSlots(t *testing.T) {
	if got := unsafe.Sizeof(Slot{}); got != 16 {
		t.Fatalf("Slot size: got %d, want 16", got)
	}
	c := &Class{Descriptor: "LCounters;", Statics: make([]Slot, 3)}
	for i := range c.Statics {
		if p := uintptr(unsafe.Pointer(&c.Statics[i].Prim)); p%8 != 0 {
			t.Errorf("slot %d: Prim at %#x is not 8-byte aligned", i, p)
		}
	}

	f := &Field{Declaring: c, Name: "n", Type: "J", AccessFlags: dex.AccStatic | dex.AccVolatile, Offset: 1}
	var g errgroup.Group
	for i := uint64(1); i <= 8; i++ {
		g.Go(func() error {
			f.SetPrim(nil, i<<32|i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if v := f.GetPrim(nil); v>>32 != v&0xffffffff || v == 0 {
		t.Errorf("torn value %#x", v)
	}
}

func TestStrings(t *testing.T) {
	tc := newTestClasses()
	h := NewHeap(0)
	a, _ := h.AllocGoString(tc.str, "héllo")
	b, _ := h.AllocGoString(tc.str, "héllo")
	c, _ := h.AllocGoString(tc.str, "help")

	if a.GoString() != "héllo" {
		t.Errorf("GoString: got %q", a.GoString())
	}
	if !StringEquals(a, b) || StringEquals(a, c) {
		t.Error("StringEquals mismatch")
	}
	if got := CompareStrings(a, b); got != 0 {
		t.Errorf("CompareStrings(equal): got %d, want 0", got)
	}
	if CompareStrings(a, c) <= 0 || CompareStrings(c, a) >= 0 {
		t.Errorf("CompareStrings: got %d and %d, want positive and negative", CompareStrings(a, c), CompareStrings(c, a))
	}
	if got := IndexOf(a, 'l', 0); got != 2 {
		t.Errorf("IndexOf: got %d, want 2", got)
	}
	if got := IndexOf(a, 'l', 4); got != -1 {
		t.Errorf("IndexOf from 4: got %d, want -1", got)
	}
}

func TestHeapLimit(t *testing.T) {
	tc := newTestClasses()
	h := NewHeap(64)
	if _, err := h.AllocArray(tc.intArray, 4, AllocatorTLAB); err != nil {
		t.Fatalf("small array: %v", err)
	}
	_, err := h.AllocArray(tc.intArray, 100, AllocatorTLAB)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("large array: got %v, want ErrOutOfMemory", err)
	}
	if got := h.Stats().Objects; got != 1 {
		t.Errorf("objects: got %d, want 1", got)
	}
	if _, err := h.AllocArray(tc.intArray, -1, AllocatorTLAB); err == nil {
		t.Error("negative length: expected error")
	}
}

func TestClone(t *testing.T) {
	tc := newTestClasses()
	h := NewHeap(0)
	arr, _ := h.AllocArray(tc.intArray, 3, AllocatorTLAB)
	arr.ElemSlot(1).Prim = 5
	c, err := h.Clone(arr)
	if err != nil {
		t.Fatal(err)
	}
	if c == arr || c.ID() == arr.ID() {
		t.Fatal("clone shares identity")
	}
	arr.ElemSlot(1).Prim = 6
	if c.ElemSlot(1).Prim != 5 {
		t.Errorf("clone element: got %d, want 5", c.ElemSlot(1).Prim)
	}
}

func TestMonitor(t *testing.T) {
	t.Run("reentrant", func(t *testing.T) {
		var m Monitor
		m.Enter("a")
		m.Enter("a")
		if owner, n := m.Owner(); owner != "a" || n != 2 {
			t.Errorf("owner: got %v/%d, want a/2", owner, n)
		}
		if m.TryEnter("b") {
			t.Error("b acquired a held monitor")
		}
		if err := m.Exit("b"); !errors.Is(err, ErrIllegalMonitorState) {
			t.Errorf("exit by non-owner: got %v", err)
		}
		if err := m.Exit("a"); err != nil {
			t.Fatal(err)
		}
		if err := m.Exit("a"); err != nil {
			t.Fatal(err)
		}
		if err := m.Exit("a"); !errors.Is(err, ErrIllegalMonitorState) {
			t.Errorf("exit of free monitor: got %v", err)
		}
	})

	t.Run("mutual exclusion", func(t *testing.T) {
		var m Monitor
		var inside, peak atomic.Int32
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g, _ := errgroup.WithContext(ctx)
		for i := 0; i < 8; i++ {
			owner := i
			g.Go(func() error {
				for j := 0; j < 100; j++ {
					m.Enter(owner)
					n := inside.Add(1)
					if n > peak.Load() {
						peak.Store(n)
					}
					inside.Add(-1)
					if err := m.Exit(owner); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		if peak.Load() != 1 {
			t.Errorf("max concurrent holders: got %d, want 1", peak.Load())
		}
	})
}
