package mirror

import (
	"sync/atomic"
	"unicode/utf16"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// AllocatorType selects the space an allocation is served from.
type AllocatorType int

const (
	AllocatorTLAB AllocatorType = iota
	AllocatorRosAlloc
	AllocatorNonMoving
	AllocatorLargeObject
)

func (a AllocatorType) String() string {
	switch a {
	case AllocatorTLAB:
		return "tlab"
	case AllocatorRosAlloc:
		return "rosalloc"
	case AllocatorNonMoving:
		return "non-moving"
	case AllocatorLargeObject:
		return "large-object"
	}
	return "unknown"
}

// ErrOutOfMemory is the cause of every failed allocation.
var ErrOutOfMemory = errors.New("out of memory")

// Allocator creates heap objects.
type Allocator interface {
	AllocObject(c *Class, kind AllocatorType) (*Object, error)
	AllocArray(c *Class, length int, kind AllocatorType) (*Object, error)
}

const (
	objectHeaderSize = 16
	slotSize         = 8
	largeObjectSize  = 12 * 1024
)

// Heap is a byte-budgeted allocator. It does not collect; the budget only
// makes allocation failure observable.
type Heap struct {
	limit   int64
	used    atomic.Int64
	objects atomic.Int64
	large   atomic.Int64
}

// NewHeap returns a heap that fails allocations beyond limit bytes; zero
// means unlimited.
func NewHeap(limit int64) *Heap {
	return &Heap{limit: limit}
}

func (h *Heap) reserve(size int64, kind AllocatorType) error {
	n := h.used.Add(size)
	if h.limit > 0 && n > h.limit {
		h.used.Add(-size)
		return errors.Wrapf(ErrOutOfMemory, "failed to allocate %s with %s free (%s allocator)",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max(h.limit-n+size, 0))), kind)
	}
	h.objects.Add(1)
	if kind == AllocatorLargeObject || size >= largeObjectSize {
		h.large.Add(1)
	}
	return nil
}

// AllocObject allocates an instance of c with zeroed fields.
func (h *Heap) AllocObject(c *Class, kind AllocatorType) (*Object, error) {
	if err := h.reserve(objectHeaderSize+int64(c.NumInstanceSlots)*slotSize, kind); err != nil {
		return nil, err
	}
	return newObject(c), nil
}

// AllocArray allocates an array of class c.
func (h *Heap) AllocArray(c *Class, length int, kind AllocatorType) (*Object, error) {
	if length < 0 {
		return nil, errors.Errorf("negative array length %d", length)
	}
	size := objectHeaderSize + int64(length)*int64(c.ComponentSize())
	if err := h.reserve(size, kind); err != nil {
		return nil, err
	}
	o := newObject(c)
	o.elems = make([]Slot, length)
	return o, nil
}

// AllocString allocates a java.lang.String of class c holding chars.
func (h *Heap) AllocString(c *Class, chars []uint16) (*Object, error) {
	if err := h.reserve(objectHeaderSize+int64(len(chars))*2, AllocatorTLAB); err != nil {
		return nil, err
	}
	o := newObject(c)
	o.chars = append([]uint16(nil), chars...)
	return o, nil
}

// AllocGoString allocates a java.lang.String from a Go string.
func (h *Heap) AllocGoString(c *Class, s string) (*Object, error) {
	return h.AllocString(c, utf16.Encode([]rune(s)))
}

// AllocClassMirror allocates the java.lang.Class instance for target.
func (h *Heap) AllocClassMirror(classClass, target *Class) (*Object, error) {
	if err := h.reserve(objectHeaderSize+int64(classClass.NumInstanceSlots)*slotSize, AllocatorNonMoving); err != nil {
		return nil, err
	}
	o := newObject(classClass)
	o.classRef = target
	return o, nil
}

// Clone makes a shallow copy of o with a fresh identity.
func (h *Heap) Clone(o *Object) (*Object, error) {
	size := objectHeaderSize + int64(len(o.fields)+len(o.elems))*slotSize + int64(len(o.chars))*2
	if err := h.reserve(size, AllocatorTLAB); err != nil {
		return nil, err
	}
	c := newObject(o.class)
	copy(c.fields, o.fields)
	if o.elems != nil {
		c.elems = append([]Slot(nil), o.elems...)
	}
	if o.chars != nil {
		c.chars = append([]uint16(nil), o.chars...)
	}
	c.classRef = o.classRef
	return c, nil
}

// HeapStats summarises allocation activity.
type HeapStats struct {
	BytesAllocated int64
	Objects        int64
	LargeObjects   int64
	Limit          int64
}

// Stats returns a snapshot of the counters.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		BytesAllocated: h.used.Load(),
		Objects:        h.objects.Load(),
		LargeObjects:   h.large.Load(),
		Limit:          h.limit,
	}
}

func (s HeapStats) String() string {
	limit := "unlimited"
	if s.Limit > 0 {
		limit = humanize.IBytes(uint64(s.Limit))
	}
	return humanize.Comma(s.Objects) + " objects, " + humanize.IBytes(uint64(s.BytesAllocated)) + " of " + limit
}
