package interp

import (
	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

// resolveField resolves a field index of the current method. Static
// fields get their class initialized. On failure an exception is pending
// and nil is returned.
func (st *state) resolveField(idx uint32, isStatic bool) *mirror.Field {
	var f *mirror.Field
	if !st.accessChecks {
		f = st.rt.linker.LookupResolvedField(idx, st.method)
	}
	if f == nil {
		var err error
		f, err = st.rt.linker.ResolveField(idx, st.method, isStatic, st.accessChecks)
		if err != nil {
			st.self.ThrowError(err)
			return nil
		}
	}
	if isStatic && !st.self.EnsureInitialized(f.Declaring) {
		return nil
	}
	return f
}

func (st *state) throwNullField(idx uint32, write bool) {
	verb := "read from"
	if write {
		verb = "write to"
	}
	name := "?"
	if id, err := st.method.DexFile().FieldAt(idx); err == nil {
		name = id.Pretty()
	}
	st.self.ThrowNew(mirror.NullPointerException, "Attempt to %s field '%s' on a null object reference", verb, name)
}

// loadField copies field f of o (nil for statics) into register a.
func (st *state) loadField(f *mirror.Field, o *mirror.Object, kind byte, a int) {
	if st.rt.instr.Has(EventFieldRead) {
		st.rt.instr.FieldReadEvent(st.self, o, st.method, st.pc, f)
	}
	switch kind {
	case 'J':
		st.frame.SetVRegLong(a, int64(f.GetPrim(o)))
	case 'L':
		st.frame.SetVRegReference(a, f.GetRef(o))
	default:
		st.frame.SetVReg(a, int32(uint32(f.GetPrim(o))))
	}
}

// storeField writes register a into field f of o (nil for statics).
func (st *state) storeField(f *mirror.Field, o *mirror.Object, kind byte, a int) {
	var v JValue
	switch kind {
	case 'J':
		v = LongValue(st.frame.VRegLong(a))
	case 'L':
		ref := st.frame.VRegReference(a)
		if st.accessChecks && ref != nil {
			fc, err := st.rt.linker.FindClass(f.Type)
			if err != nil {
				st.self.ThrowError(err)
				return
			}
			if !ref.InstanceOf(fc) {
				st.self.ThrowNew(mirror.VirtualMachineError, "Put '%s' that is not instance of field '%s' in '%s'",
					ref.Class().Name(), f.PrettyField(), f.Declaring.Name())
				return
			}
		}
		v = RefValue(ref)
	default:
		v = JValue{prim: narrow(kind, st.frame.VReg(a))}
	}
	if st.rt.instr.Has(EventFieldWritten) {
		st.rt.instr.FieldWriteEvent(st.self, o, st.method, st.pc, f, v)
	}
	if tx := st.self.tx; tx != nil {
		tx.RecordFieldWrite(f, o)
	}
	if kind == 'L' {
		f.SetRef(o, v.ref)
		return
	}
	f.SetPrim(o, v.prim)
}

func opIget(st *state, inst dex.Instruction) {
	idx := uint32(inst.VRegC())
	f := st.resolveField(idx, false)
	if f == nil {
		return
	}
	o := st.frame.VRegReference(inst.VRegB())
	if o == nil {
		st.throwNullField(idx, false)
		return
	}
	st.loadField(f, o, variantKinds[inst.Opcode()-dex.OpIget], inst.VRegA())
}

func opIput(st *state, inst dex.Instruction) {
	idx := uint32(inst.VRegC())
	f := st.resolveField(idx, false)
	if f == nil {
		return
	}
	o := st.frame.VRegReference(inst.VRegB())
	if o == nil {
		st.throwNullField(idx, true)
		return
	}
	st.storeField(f, o, variantKinds[inst.Opcode()-dex.OpIput], inst.VRegA())
}

func opSget(st *state, inst dex.Instruction) {
	if f := st.resolveField(uint32(inst.VRegB()), true); f != nil {
		st.loadField(f, nil, variantKinds[inst.Opcode()-dex.OpSget], inst.VRegA())
	}
}

func opSput(st *state, inst dex.Instruction) {
	if f := st.resolveField(uint32(inst.VRegB()), true); f != nil {
		st.storeField(f, nil, variantKinds[inst.Opcode()-dex.OpSput], inst.VRegA())
	}
}

func quickKind(op dex.Opcode) byte {
	switch op {
	case dex.OpIgetWideQuick, dex.OpIputWideQuick:
		return 'J'
	case dex.OpIgetObjectQuick, dex.OpIputObjectQuick:
		return 'L'
	case dex.OpIgetBooleanQuick, dex.OpIputBooleanQuick:
		return 'Z'
	case dex.OpIgetByteQuick, dex.OpIputByteQuick:
		return 'B'
	case dex.OpIgetCharQuick, dex.OpIputCharQuick:
		return 'C'
	case dex.OpIgetShortQuick, dex.OpIputShortQuick:
		return 'S'
	}
	return 'I'
}

// quickField returns the receiver and the field at the slot offset of a
// quickened access, or nil with an exception pending.
func (st *state) quickField(inst dex.Instruction, write bool) (*mirror.Object, *mirror.Field) {
	o := st.frame.VRegReference(inst.VRegB())
	offset := inst.VRegC()
	if o == nil {
		verb := "read from"
		if write {
			verb = "write to"
		}
		st.self.ThrowNew(mirror.NullPointerException, "Attempt to %s field at offset %d on a null object reference", verb, offset)
		return nil, nil
	}
	f := o.Class().FindInstanceFieldWithOffset(offset)
	if f == nil {
		st.self.ThrowNew(mirror.VirtualMachineError, "no field at offset %d in %s", offset, o.Class().Name())
		return nil, nil
	}
	return o, f
}

func opIgetQuick(st *state, inst dex.Instruction) {
	if o, f := st.quickField(inst, false); f != nil {
		st.loadField(f, o, quickKind(inst.Opcode()), inst.VRegA())
	}
}

func opIputQuick(st *state, inst dex.Instruction) {
	if o, f := st.quickField(inst, true); f != nil {
		st.storeField(f, o, quickKind(inst.Opcode()), inst.VRegA())
	}
}
