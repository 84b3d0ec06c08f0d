package interp

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/daimatz/godex/pkg/mirror"
)

// MaxVRegs is the largest register count a frame may have.
const MaxVRegs = 65535

// ShadowFrame is the interpreter's frame: a dense array of 32-bit virtual
// registers with a parallel reference view. A register written through the
// reference setters has its bit set in the reference bitmap and holds the
// object identity in its scalar view; any scalar write clears the bit.
type ShadowFrame struct {
	method *mirror.Method
	link   *ShadowFrame
	dexPC  uint32

	vregs   []uint32
	refs    []*mirror.Object
	refBits []uint64
}

// NewShadowFrame allocates a zeroed frame. It panics when numVRegs exceeds
// MaxVRegs.
func NewShadowFrame(numVRegs int, link *ShadowFrame, method *mirror.Method, dexPC uint32) *ShadowFrame {
	if numVRegs < 0 || numVRegs > MaxVRegs {
		panic(fmt.Sprintf("shadow frame: %d registers exceeds limit %d", numVRegs, MaxVRegs))
	}
	return &ShadowFrame{
		method:  method,
		link:    link,
		dexPC:   dexPC,
		vregs:   make([]uint32, numVRegs),
		refs:    make([]*mirror.Object, numVRegs),
		refBits: make([]uint64, (numVRegs+63)/64),
	}
}

func (f *ShadowFrame) Method() *mirror.Method    { return f.method }
func (f *ShadowFrame) Link() *ShadowFrame        { return f.link }
func (f *ShadowFrame) SetLink(link *ShadowFrame) { f.link = link }
func (f *ShadowFrame) DexPC() uint32             { return f.dexPC }
func (f *ShadowFrame) SetDexPC(pc uint32)        { f.dexPC = pc }
func (f *ShadowFrame) NumberOfVRegs() int        { return len(f.vregs) }

func (f *ShadowFrame) clearRef(i int) {
	f.refs[i] = nil
	f.refBits[i>>6] &^= 1 << (i & 63)
}

// VReg reads register i as a 32-bit integer.
func (f *ShadowFrame) VReg(i int) int32 { return int32(f.vregs[i]) }

// SetVReg writes a 32-bit integer, clearing the reference bit.
func (f *ShadowFrame) SetVReg(i int, v int32) {
	f.vregs[i] = uint32(v)
	f.clearRef(i)
}

func (f *ShadowFrame) VRegFloat(i int) float32 { return math.Float32frombits(f.vregs[i]) }

func (f *ShadowFrame) SetVRegFloat(i int, v float32) {
	f.vregs[i] = math.Float32bits(v)
	f.clearRef(i)
}

// VRegLong reads the pair (i, i+1), low half first.
func (f *ShadowFrame) VRegLong(i int) int64 {
	return int64(uint64(f.vregs[i]) | uint64(f.vregs[i+1])<<32)
}

// SetVRegLong writes the pair (i, i+1).
func (f *ShadowFrame) SetVRegLong(i int, v int64) {
	f.vregs[i] = uint32(v)
	f.vregs[i+1] = uint32(uint64(v) >> 32)
	f.clearRef(i)
	f.clearRef(i + 1)
}

func (f *ShadowFrame) VRegDouble(i int) float64 {
	return math.Float64frombits(uint64(f.VRegLong(i)))
}

func (f *ShadowFrame) SetVRegDouble(i int, v float64) {
	f.SetVRegLong(i, int64(math.Float64bits(v)))
}

// VRegReference returns the object in register i, nil when the register
// holds a scalar.
func (f *ShadowFrame) VRegReference(i int) *mirror.Object { return f.refs[i] }

// SetVRegReference writes a reference. The scalar view receives the object
// identity so that zero tests on the register are null tests.
func (f *ShadowFrame) SetVRegReference(i int, o *mirror.Object) {
	if o == nil {
		f.vregs[i] = 0
		f.clearRef(i)
		return
	}
	f.vregs[i] = o.ID()
	f.refs[i] = o
	f.refBits[i>>6] |= 1 << (i & 63)
}

// IsReference reports whether register i holds a live reference.
func (f *ShadowFrame) IsReference(i int) bool {
	return f.refBits[i>>6]&(1<<(i&63)) != 0
}

// VisitRoots calls fn for every register holding a reference.
func (f *ShadowFrame) VisitRoots(fn func(*mirror.Object)) {
	for w, word := range f.refBits {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			fn(f.refs[w*64+b])
			word &^= 1 << b
		}
	}
}

// ThisObject returns the receiver of an instance method whose ins occupy
// the last numIns registers.
func (f *ShadowFrame) ThisObject(numIns int) *mirror.Object {
	if f.method == nil || f.method.IsStatic() || numIns == 0 {
		return nil
	}
	return f.refs[len(f.vregs)-numIns]
}

// thisObject returns the receiver using the method's own argument layout.
func (f *ShadowFrame) thisObject() *mirror.Object {
	if f.method == nil {
		return nil
	}
	return f.ThisObject(f.method.NumArgRegisters())
}

func (f *ShadowFrame) String() string {
	name := "<nil>"
	if f.method != nil {
		name = f.method.PrettyMethod()
	}
	return fmt.Sprintf("%s@%d", name, f.dexPC)
}
