package interp

import (
	"github.com/daimatz/godex/pkg/dex"
)

// executeSwitch is the switch-dispatch driver. It shares the handlers of
// the table driver, so both engines have identical semantics.
func executeSwitch(st *state) {
	for {
		inst := st.fetch()
		if st.instrumented {
			st.dexPCMoved()
		}
		switch inst.Opcode() {
		case dex.OpNop:
		case dex.OpMove, dex.OpMoveFrom16, dex.OpMove16:
			opMove(st, inst)
		case dex.OpMoveWide, dex.OpMoveWideFrom16, dex.OpMoveWide16:
			opMoveWide(st, inst)
		case dex.OpMoveObject, dex.OpMoveObjectFrom16, dex.OpMoveObject16:
			opMoveObject(st, inst)
		case dex.OpMoveResult, dex.OpMoveResultWide, dex.OpMoveResultObject:
			opMoveResult(st, inst)
		case dex.OpMoveException:
			opMoveException(st, inst)
		case dex.OpReturnVoid, dex.OpReturnVoidNoBarrier:
			opReturnVoid(st, inst)
		case dex.OpReturn, dex.OpReturnWide, dex.OpReturnObject:
			opReturn(st, inst)
		case dex.OpConst4, dex.OpConst16, dex.OpConst, dex.OpConstHigh16:
			opConst(st, inst)
		case dex.OpConstWide16, dex.OpConstWide32, dex.OpConstWide, dex.OpConstWideHigh16:
			opConstWide(st, inst)
		case dex.OpConstString, dex.OpConstStringJumbo:
			opConstString(st, inst)
		case dex.OpConstClass:
			opConstClass(st, inst)
		case dex.OpMonitorEnter, dex.OpMonitorExit:
			opMonitor(st, inst)
		case dex.OpCheckCast:
			opCheckCast(st, inst)
		case dex.OpInstanceOf:
			opInstanceOf(st, inst)
		case dex.OpArrayLength:
			opArrayLength(st, inst)
		case dex.OpNewInstance:
			opNewInstance(st, inst)
		case dex.OpNewArray:
			opNewArray(st, inst)
		case dex.OpFilledNewArray, dex.OpFilledNewArrayRange:
			opFilledNewArray(st, inst)
		case dex.OpFillArrayData:
			opFillArrayData(st, inst)
		case dex.OpThrow:
			opThrow(st, inst)
		case dex.OpGoto, dex.OpGoto16, dex.OpGoto32:
			opGoto(st, inst)
		case dex.OpPackedSwitch, dex.OpSparseSwitch:
			opSwitch(st, inst)
		case dex.OpCmplFloat, dex.OpCmpgFloat, dex.OpCmplDouble, dex.OpCmpgDouble, dex.OpCmpLong:
			opCmp(st, inst)
		case dex.OpIfEq, dex.OpIfNe, dex.OpIfLt, dex.OpIfGe, dex.OpIfGt, dex.OpIfLe:
			opIf(st, inst)
		case dex.OpIfEqz, dex.OpIfNez, dex.OpIfLtz, dex.OpIfGez, dex.OpIfGtz, dex.OpIfLez:
			opIfz(st, inst)
		case dex.OpAget, dex.OpAgetWide, dex.OpAgetObject, dex.OpAgetBoolean, dex.OpAgetByte, dex.OpAgetChar, dex.OpAgetShort:
			opAget(st, inst)
		case dex.OpAput, dex.OpAputWide, dex.OpAputObject, dex.OpAputBoolean, dex.OpAputByte, dex.OpAputChar, dex.OpAputShort:
			opAput(st, inst)
		case dex.OpIget, dex.OpIgetWide, dex.OpIgetObject, dex.OpIgetBoolean, dex.OpIgetByte, dex.OpIgetChar, dex.OpIgetShort:
			opIget(st, inst)
		case dex.OpIput, dex.OpIputWide, dex.OpIputObject, dex.OpIputBoolean, dex.OpIputByte, dex.OpIputChar, dex.OpIputShort:
			opIput(st, inst)
		case dex.OpSget, dex.OpSgetWide, dex.OpSgetObject, dex.OpSgetBoolean, dex.OpSgetByte, dex.OpSgetChar, dex.OpSgetShort:
			opSget(st, inst)
		case dex.OpSput, dex.OpSputWide, dex.OpSputObject, dex.OpSputBoolean, dex.OpSputByte, dex.OpSputChar, dex.OpSputShort:
			opSput(st, inst)
		case dex.OpInvokeVirtual, dex.OpInvokeSuper, dex.OpInvokeDirect, dex.OpInvokeStatic, dex.OpInvokeInterface,
			dex.OpInvokeVirtualRange, dex.OpInvokeSuperRange, dex.OpInvokeDirectRange, dex.OpInvokeStaticRange,
			dex.OpInvokeInterfaceRange:
			opInvoke(st, inst)
		case dex.OpNegInt, dex.OpNotInt, dex.OpNegLong, dex.OpNotLong, dex.OpNegFloat, dex.OpNegDouble,
			dex.OpIntToLong, dex.OpIntToFloat, dex.OpIntToDouble, dex.OpLongToInt, dex.OpLongToFloat, dex.OpLongToDouble,
			dex.OpFloatToInt, dex.OpFloatToLong, dex.OpFloatToDouble, dex.OpDoubleToInt, dex.OpDoubleToLong,
			dex.OpDoubleToFloat, dex.OpIntToByte, dex.OpIntToChar, dex.OpIntToShort:
			opUnary(st, inst)
		case dex.OpAddInt, dex.OpSubInt, dex.OpMulInt, dex.OpDivInt, dex.OpRemInt, dex.OpAndInt, dex.OpOrInt,
			dex.OpXorInt, dex.OpShlInt, dex.OpShrInt, dex.OpUshrInt,
			dex.OpAddLong, dex.OpSubLong, dex.OpMulLong, dex.OpDivLong, dex.OpRemLong, dex.OpAndLong, dex.OpOrLong,
			dex.OpXorLong, dex.OpShlLong, dex.OpShrLong, dex.OpUshrLong,
			dex.OpAddFloat, dex.OpSubFloat, dex.OpMulFloat, dex.OpDivFloat, dex.OpRemFloat,
			dex.OpAddDouble, dex.OpSubDouble, dex.OpMulDouble, dex.OpDivDouble, dex.OpRemDouble:
			opBinary(st, inst)
		case dex.OpAddInt2Addr, dex.OpSubInt2Addr, dex.OpMulInt2Addr, dex.OpDivInt2Addr, dex.OpRemInt2Addr,
			dex.OpAndInt2Addr, dex.OpOrInt2Addr, dex.OpXorInt2Addr, dex.OpShlInt2Addr, dex.OpShrInt2Addr,
			dex.OpUshrInt2Addr,
			dex.OpAddLong2Addr, dex.OpSubLong2Addr, dex.OpMulLong2Addr, dex.OpDivLong2Addr, dex.OpRemLong2Addr,
			dex.OpAndLong2Addr, dex.OpOrLong2Addr, dex.OpXorLong2Addr, dex.OpShlLong2Addr, dex.OpShrLong2Addr,
			dex.OpUshrLong2Addr,
			dex.OpAddFloat2Addr, dex.OpSubFloat2Addr, dex.OpMulFloat2Addr, dex.OpDivFloat2Addr, dex.OpRemFloat2Addr,
			dex.OpAddDouble2Addr, dex.OpSubDouble2Addr, dex.OpMulDouble2Addr, dex.OpDivDouble2Addr,
			dex.OpRemDouble2Addr:
			opBinary2Addr(st, inst)
		case dex.OpAddIntLit16, dex.OpRsubInt, dex.OpMulIntLit16, dex.OpDivIntLit16, dex.OpRemIntLit16,
			dex.OpAndIntLit16, dex.OpOrIntLit16, dex.OpXorIntLit16,
			dex.OpAddIntLit8, dex.OpRsubIntLit8, dex.OpMulIntLit8, dex.OpDivIntLit8, dex.OpRemIntLit8,
			dex.OpAndIntLit8, dex.OpOrIntLit8, dex.OpXorIntLit8, dex.OpShlIntLit8, dex.OpShrIntLit8, dex.OpUshrIntLit8:
			opBinaryLit(st, inst)
		case dex.OpIgetQuick, dex.OpIgetWideQuick, dex.OpIgetObjectQuick, dex.OpIgetBooleanQuick,
			dex.OpIgetByteQuick, dex.OpIgetCharQuick, dex.OpIgetShortQuick:
			opIgetQuick(st, inst)
		case dex.OpIputQuick, dex.OpIputWideQuick, dex.OpIputObjectQuick, dex.OpIputBooleanQuick,
			dex.OpIputByteQuick, dex.OpIputCharQuick, dex.OpIputShortQuick:
			opIputQuick(st, inst)
		case dex.OpInvokeVirtualQuick, dex.OpInvokeVirtualRangeQuick:
			opInvokeQuick(st, inst)
		default:
			opUnused(st, inst)
		}
		if st.advance() {
			return
		}
	}
}
