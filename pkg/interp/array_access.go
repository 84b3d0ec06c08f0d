package interp

import (
	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

// variantKinds gives the value kind of the seven members of the aget,
// aput, iget, iput, sget and sput families, in encoding order.
const variantKinds = "IJLZBCS"

// narrow converts a 32-bit register value to the slot representation of
// kind: booleans and chars zero-extended, bytes and shorts sign-extended.
func narrow(kind byte, v int32) uint64 {
	switch kind {
	case 'Z':
		return uint64(uint8(v))
	case 'B':
		return uint64(uint32(int32(int8(v))))
	case 'C':
		return uint64(uint16(v))
	case 'S':
		return uint64(uint32(int32(int16(v))))
	}
	return uint64(uint32(v))
}

// element returns the array and index of an aget or aput, or nil with
// NullPointerException or ArrayIndexOutOfBoundsException pending.
func (st *state) element(inst dex.Instruction, write bool) (*mirror.Object, int) {
	arr := st.frame.VRegReference(inst.VRegB())
	if arr == nil {
		verb := "read from"
		if write {
			verb = "write to"
		}
		st.self.ThrowNew(mirror.NullPointerException, "Attempt to %s null array", verb)
		return nil, 0
	}
	i := st.frame.VReg(inst.VRegC())
	if !arr.InBounds(i) {
		st.self.ThrowNew(mirror.ArrayIndexOutOfBoundsException, "length=%d; index=%d", arr.ArrayLength(), i)
		return nil, 0
	}
	return arr, int(i)
}

func opAget(st *state, inst dex.Instruction) {
	arr, i := st.element(inst, false)
	if arr == nil {
		return
	}
	s := arr.ElemSlot(i)
	a := inst.VRegA()
	switch variantKinds[inst.Opcode()-dex.OpAget] {
	case 'J':
		st.frame.SetVRegLong(a, int64(s.Prim))
	case 'L':
		st.frame.SetVRegReference(a, s.Ref)
	default:
		st.frame.SetVReg(a, int32(uint32(s.Prim)))
	}
}

func opAput(st *state, inst dex.Instruction) {
	arr, i := st.element(inst, true)
	if arr == nil {
		return
	}
	a := inst.VRegA()
	kind := variantKinds[inst.Opcode()-dex.OpAput]
	var val mirror.Slot
	switch kind {
	case 'J':
		val.Prim = uint64(st.frame.VRegLong(a))
	case 'L':
		o := st.frame.VRegReference(a)
		if o != nil && !arr.Class().Component.IsAssignableFrom(o.Class()) {
			st.self.ThrowNew(mirror.ArrayStoreException, "%s cannot be stored in an array of type %s",
				o.Class().Name(), arr.Class().Name())
			return
		}
		val.Ref = o
	default:
		val.Prim = narrow(kind, st.frame.VReg(a))
	}
	if tx := st.self.tx; tx != nil {
		tx.RecordArrayWrite(arr, i)
	}
	*arr.ElemSlot(i) = val
}

func opFilledNewArray(st *state, inst dex.Instruction) {
	c := st.resolveType(uint32(inst.VRegB()))
	if c == nil {
		return
	}
	if !c.IsArray() {
		st.self.ThrowNew(mirror.VirtualMachineError, "filled-new-array of non-array type %s", c.Name())
		return
	}
	switch p := c.Component.Primitive; p {
	case 0, 'I':
	case 'J', 'D':
		st.self.ThrowNew(mirror.RuntimeException, "Bad filled array request for type %s", c.Component.Name())
		return
	default:
		st.self.ThrowNew(mirror.InternalError, "Found type %s; filled-new-array not implemented for anything but 'int'",
			c.Component.Name())
		return
	}
	args := inst.Args()
	arr, err := st.rt.heap.AllocArray(c, len(args), mirror.AllocatorTLAB)
	if err != nil {
		st.self.ThrowError(err)
		return
	}
	ref := c.Component.Primitive == 0
	for i, r := range args {
		s := arr.ElemSlot(i)
		if ref {
			s.Ref = st.frame.VRegReference(r)
		} else {
			s.Prim = uint64(uint32(st.frame.VReg(r)))
		}
	}
	st.result = RefValue(arr)
}

func opFillArrayData(st *state, inst dex.Instruction) {
	arr := st.frame.VRegReference(inst.VRegA())
	if arr == nil {
		st.self.ThrowNew(mirror.NullPointerException, "null array in FillArrayData")
		return
	}
	data := dex.DecodeArrayData(st.insns[int(st.pc)+inst.VRegB():])
	if data.Count > arr.ArrayLength() {
		st.self.ThrowNew(mirror.ArrayIndexOutOfBoundsException, "failed FillArrayData; length=%d, index=%d",
			arr.ArrayLength(), data.Count)
		return
	}
	kind := arr.Class().Component.Primitive
	tx := st.self.tx
	for i := 0; i < data.Count; i++ {
		if tx != nil {
			tx.RecordArrayWrite(arr, i)
		}
		v := data.Element(i)
		switch kind {
		case 'J', 'D':
			arr.ElemSlot(i).Prim = v
		default:
			arr.ElemSlot(i).Prim = narrow(kind, int32(uint32(v)))
		}
	}
}
