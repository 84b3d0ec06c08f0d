package interp

import (
	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

type handler func(st *state, inst dex.Instruction)

// handlers maps every opcode to its implementation. Each handler serves a
// family of opcodes and switches on the opcode where members differ.
var handlers [256]handler

func init() {
	for i := range handlers {
		handlers[i] = opUnused
	}
	set := func(h handler, ops ...dex.Opcode) {
		for _, op := range ops {
			handlers[op] = h
		}
	}
	set(opNop, dex.OpNop)
	set(opMove, dex.OpMove, dex.OpMoveFrom16, dex.OpMove16)
	set(opMoveWide, dex.OpMoveWide, dex.OpMoveWideFrom16, dex.OpMoveWide16)
	set(opMoveObject, dex.OpMoveObject, dex.OpMoveObjectFrom16, dex.OpMoveObject16)
	set(opMoveResult, dex.OpMoveResult, dex.OpMoveResultWide, dex.OpMoveResultObject)
	set(opMoveException, dex.OpMoveException)
	set(opReturnVoid, dex.OpReturnVoid, dex.OpReturnVoidNoBarrier)
	set(opReturn, dex.OpReturn, dex.OpReturnWide, dex.OpReturnObject)
	set(opConst, dex.OpConst4, dex.OpConst16, dex.OpConst, dex.OpConstHigh16)
	set(opConstWide, dex.OpConstWide16, dex.OpConstWide32, dex.OpConstWide, dex.OpConstWideHigh16)
	set(opConstString, dex.OpConstString, dex.OpConstStringJumbo)
	set(opConstClass, dex.OpConstClass)
	set(opMonitor, dex.OpMonitorEnter, dex.OpMonitorExit)
	set(opCheckCast, dex.OpCheckCast)
	set(opInstanceOf, dex.OpInstanceOf)
	set(opArrayLength, dex.OpArrayLength)
	set(opNewInstance, dex.OpNewInstance)
	set(opNewArray, dex.OpNewArray)
	set(opFilledNewArray, dex.OpFilledNewArray, dex.OpFilledNewArrayRange)
	set(opFillArrayData, dex.OpFillArrayData)
	set(opThrow, dex.OpThrow)
	set(opGoto, dex.OpGoto, dex.OpGoto16, dex.OpGoto32)
	set(opSwitch, dex.OpPackedSwitch, dex.OpSparseSwitch)
	set(opCmp, dex.OpCmplFloat, dex.OpCmpgFloat, dex.OpCmplDouble, dex.OpCmpgDouble, dex.OpCmpLong)
	set(opIf, dex.OpIfEq, dex.OpIfNe, dex.OpIfLt, dex.OpIfGe, dex.OpIfGt, dex.OpIfLe)
	set(opIfz, dex.OpIfEqz, dex.OpIfNez, dex.OpIfLtz, dex.OpIfGez, dex.OpIfGtz, dex.OpIfLez)
	for op := dex.OpAget; op <= dex.OpAgetShort; op++ {
		set(opAget, op)
	}
	for op := dex.OpAput; op <= dex.OpAputShort; op++ {
		set(opAput, op)
	}
	for op := dex.OpIget; op <= dex.OpIgetShort; op++ {
		set(opIget, op)
	}
	for op := dex.OpIput; op <= dex.OpIputShort; op++ {
		set(opIput, op)
	}
	for op := dex.OpSget; op <= dex.OpSgetShort; op++ {
		set(opSget, op)
	}
	for op := dex.OpSput; op <= dex.OpSputShort; op++ {
		set(opSput, op)
	}
	set(opInvoke, dex.OpInvokeVirtual, dex.OpInvokeSuper, dex.OpInvokeDirect, dex.OpInvokeStatic, dex.OpInvokeInterface,
		dex.OpInvokeVirtualRange, dex.OpInvokeSuperRange, dex.OpInvokeDirectRange, dex.OpInvokeStaticRange, dex.OpInvokeInterfaceRange)
	for op := dex.OpNegInt; op <= dex.OpIntToShort; op++ {
		set(opUnary, op)
	}
	for op := dex.OpAddInt; op <= dex.OpRemDouble; op++ {
		set(opBinary, op)
	}
	for op := dex.OpAddInt2Addr; op <= dex.OpRemDouble2Addr; op++ {
		set(opBinary2Addr, op)
	}
	for op := dex.OpAddIntLit16; op <= dex.OpUshrIntLit8; op++ {
		set(opBinaryLit, op)
	}
	set(opIgetQuick, dex.OpIgetQuick, dex.OpIgetWideQuick, dex.OpIgetObjectQuick,
		dex.OpIgetBooleanQuick, dex.OpIgetByteQuick, dex.OpIgetCharQuick, dex.OpIgetShortQuick)
	set(opIputQuick, dex.OpIputQuick, dex.OpIputWideQuick, dex.OpIputObjectQuick,
		dex.OpIputBooleanQuick, dex.OpIputByteQuick, dex.OpIputCharQuick, dex.OpIputShortQuick)
	set(opInvokeQuick, dex.OpInvokeVirtualQuick, dex.OpInvokeVirtualRangeQuick)
}

func opUnused(st *state, inst dex.Instruction) {
	Abort("unexpected opcode 0x%02x at %s:%d", uint8(inst.Opcode()), st.method, st.pc)
}

func opNop(*state, dex.Instruction) {}

func opMove(st *state, inst dex.Instruction) {
	st.frame.SetVReg(inst.VRegA(), st.frame.VReg(inst.VRegB()))
}

func opMoveWide(st *state, inst dex.Instruction) {
	st.frame.SetVRegLong(inst.VRegA(), st.frame.VRegLong(inst.VRegB()))
}

func opMoveObject(st *state, inst dex.Instruction) {
	st.frame.SetVRegReference(inst.VRegA(), st.frame.VRegReference(inst.VRegB()))
}

func opMoveResult(st *state, inst dex.Instruction) {
	a := inst.VRegA()
	switch inst.Opcode() {
	case dex.OpMoveResult:
		st.frame.SetVReg(a, st.result.Int())
	case dex.OpMoveResultWide:
		st.frame.SetVRegLong(a, st.result.Long())
	default:
		st.frame.SetVRegReference(a, st.result.Ref())
	}
}

func opMoveException(st *state, inst dex.Instruction) {
	st.frame.SetVRegReference(inst.VRegA(), st.self.exception)
	st.self.ClearException()
}

func opReturnVoid(st *state, inst dex.Instruction) {
	if inst.Opcode() == dex.OpReturnVoid && !st.accessChecks {
		constructorFence()
	}
	st.doReturn(JValue{})
}

func opReturn(st *state, inst dex.Instruction) {
	a := inst.VRegA()
	switch inst.Opcode() {
	case dex.OpReturn:
		st.doReturn(IntValue(st.frame.VReg(a)))
	case dex.OpReturnWide:
		st.doReturn(LongValue(st.frame.VRegLong(a)))
	default:
		o := st.frame.VRegReference(a)
		if st.accessChecks && o != nil {
			c, err := st.rt.linker.FindClass(st.method.ReturnType())
			if err != nil {
				st.self.ThrowError(err)
				return
			}
			if !o.InstanceOf(c) {
				st.self.ThrowNew(mirror.VirtualMachineError, "Returning '%s' that is not instance of return type '%s'",
					o.Class().Name(), c.Name())
				return
			}
		}
		st.doReturn(RefValue(o))
	}
}

func opConst(st *state, inst dex.Instruction) {
	v := int32(inst.VRegB())
	if inst.Opcode() == dex.OpConstHigh16 {
		v <<= 16
	}
	st.frame.SetVReg(inst.VRegA(), v)
}

func opConstWide(st *state, inst dex.Instruction) {
	var v int64
	switch inst.Opcode() {
	case dex.OpConstWide:
		v = inst.WideVRegB()
	case dex.OpConstWideHigh16:
		v = int64(inst.VRegB()) << 48
	default:
		v = int64(inst.VRegB())
	}
	st.frame.SetVRegLong(inst.VRegA(), v)
}

func opConstString(st *state, inst dex.Instruction) {
	s, err := st.rt.linker.ResolveString(uint32(inst.VRegB()), st.method)
	if err != nil {
		st.self.ThrowError(err)
		return
	}
	st.frame.SetVRegReference(inst.VRegA(), s)
}

func opConstClass(st *state, inst dex.Instruction) {
	c := st.resolveType(uint32(inst.VRegB()))
	if c == nil {
		return
	}
	m, err := st.rt.linker.ClassMirror(c)
	if err != nil {
		st.self.ThrowError(err)
		return
	}
	st.frame.SetVRegReference(inst.VRegA(), m)
}

// resolveType resolves a type index of the current method, leaving an
// exception pending and returning nil on failure.
func (st *state) resolveType(idx uint32) *mirror.Class {
	c, err := st.rt.linker.ResolveTypeChecked(idx, st.method, st.accessChecks)
	if err != nil {
		st.self.ThrowError(err)
		return nil
	}
	return c
}

func opMonitor(st *state, inst dex.Instruction) {
	o := st.frame.VRegReference(inst.VRegA())
	if o == nil {
		st.self.ThrowNew(mirror.NullPointerException, "Attempt to %s on a null object reference", monitorVerb(inst.Opcode()))
		return
	}
	if inst.Opcode() == dex.OpMonitorEnter {
		st.self.monitorEnter(o)
		return
	}
	st.self.monitorExit(o)
}

func monitorVerb(op dex.Opcode) string {
	if op == dex.OpMonitorEnter {
		return "lock"
	}
	return "unlock"
}

func (t *Thread) monitorEnter(o *mirror.Object) {
	if o.Monitor().TryEnter(t) {
		return
	}
	t.runBlocking(StateBlocked, func() { o.Monitor().Enter(t) })
}

func (t *Thread) monitorExit(o *mirror.Object) {
	if err := o.Monitor().Exit(t); err != nil {
		t.ThrowNew(mirror.IllegalMonitorStateException, "did not lock monitor on object of type '%s' before unlocking",
			o.Class().Name())
	}
}

func opCheckCast(st *state, inst dex.Instruction) {
	c := st.resolveType(uint32(inst.VRegB()))
	if c == nil {
		return
	}
	o := st.frame.VRegReference(inst.VRegA())
	if o != nil && !o.InstanceOf(c) {
		st.self.ThrowNew(mirror.ClassCastException, "%s cannot be cast to %s", o.Class().Name(), c.Name())
	}
}

func opInstanceOf(st *state, inst dex.Instruction) {
	c := st.resolveType(uint32(inst.VRegC()))
	if c == nil {
		return
	}
	o := st.frame.VRegReference(inst.VRegB())
	st.frame.SetVReg(inst.VRegA(), boolToInt(o != nil && o.InstanceOf(c)))
}

func opArrayLength(st *state, inst dex.Instruction) {
	arr := st.frame.VRegReference(inst.VRegB())
	if arr == nil {
		st.self.ThrowNew(mirror.NullPointerException, "Attempt to get length of null array")
		return
	}
	st.frame.SetVReg(inst.VRegA(), int32(arr.ArrayLength()))
}

func opNewInstance(st *state, inst dex.Instruction) {
	c := st.resolveType(uint32(inst.VRegB()))
	if c == nil {
		return
	}
	if !c.IsInstantiable() {
		st.self.ThrowNew(mirror.InstantiationError, "%s", c.Name())
		return
	}
	if !st.self.EnsureInitialized(c) {
		return
	}
	if st.self.tx != nil && c.Finalizable {
		st.self.AbortTransaction("Allocating finalizable object in transaction: %s", c.Name())
		return
	}
	o, err := st.rt.heap.AllocObject(c, mirror.AllocatorTLAB)
	if err != nil {
		st.self.ThrowError(err)
		return
	}
	st.frame.SetVRegReference(inst.VRegA(), o)
}

func opNewArray(st *state, inst dex.Instruction) {
	n := st.frame.VReg(inst.VRegB())
	if n < 0 {
		st.self.ThrowNew(mirror.NegativeArraySizeException, "%d", n)
		return
	}
	c := st.resolveType(uint32(inst.VRegC()))
	if c == nil {
		return
	}
	arr, err := st.rt.heap.AllocArray(c, int(n), mirror.AllocatorTLAB)
	if err != nil {
		st.self.ThrowError(err)
		return
	}
	st.frame.SetVRegReference(inst.VRegA(), arr)
}

func opThrow(st *state, inst dex.Instruction) {
	exc := st.frame.VRegReference(inst.VRegA())
	if exc == nil {
		st.self.ThrowNew(mirror.NullPointerException, "throw with null exception")
		return
	}
	if st.accessChecks {
		throwable, err := st.rt.linker.FindClass("Ljava/lang/Throwable;")
		if err != nil {
			st.self.ThrowError(err)
			return
		}
		if !exc.InstanceOf(throwable) {
			st.self.ThrowNew(mirror.VirtualMachineError, "Throwing '%s' that is not instance of Throwable", exc.Class().Name())
			return
		}
	}
	st.self.SetException(exc)
}

func opGoto(st *state, inst dex.Instruction) {
	st.branch(int32(inst.VRegA()))
}

func opSwitch(st *state, inst dex.Instruction) {
	payload := st.insns[int(st.pc)+inst.VRegB():]
	v := st.frame.VReg(inst.VRegA())
	if inst.Opcode() == dex.OpPackedSwitch {
		st.branch(dex.PackedSwitch(payload, v))
		return
	}
	st.branch(dex.SparseSwitch(payload, v))
}

func opIf(st *state, inst dex.Instruction) {
	x, y := st.frame.VReg(inst.VRegA()), st.frame.VReg(inst.VRegB())
	var taken bool
	switch inst.Opcode() {
	case dex.OpIfEq:
		taken = x == y
	case dex.OpIfNe:
		taken = x != y
	case dex.OpIfLt:
		taken = x < y
	case dex.OpIfGe:
		taken = x >= y
	case dex.OpIfGt:
		taken = x > y
	case dex.OpIfLe:
		taken = x <= y
	}
	if taken {
		st.branch(int32(inst.VRegC()))
	}
}

func opIfz(st *state, inst dex.Instruction) {
	x := st.frame.VReg(inst.VRegA())
	var taken bool
	switch inst.Opcode() {
	case dex.OpIfEqz:
		taken = x == 0
	case dex.OpIfNez:
		taken = x != 0
	case dex.OpIfLtz:
		taken = x < 0
	case dex.OpIfGez:
		taken = x >= 0
	case dex.OpIfGtz:
		taken = x > 0
	case dex.OpIfLez:
		taken = x <= 0
	}
	if taken {
		st.branch(int32(inst.VRegB()))
	}
}
