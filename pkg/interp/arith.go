package interp

import (
	"math"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

// arithOp is the operation of a binary opcode, independent of operand
// width and encoding.
type arithOp uint8

const (
	arithAdd arithOp = iota
	arithSub
	arithMul
	arithDiv
	arithRem
	arithAnd
	arithOr
	arithXor
	arithShl
	arithShr
	arithUshr
	arithRsub
)

// litOps lists the operations of the lit16 and lit8 opcodes in encoding
// order.
var litOps = [...]arithOp{
	arithAdd, arithRsub, arithMul, arithDiv, arithRem, arithAnd, arithOr, arithXor,
	arithAdd, arithRsub, arithMul, arithDiv, arithRem, arithAnd, arithOr, arithXor,
	arithShl, arithShr, arithUshr,
}

func (st *state) throwDivideByZero() {
	st.self.ThrowNew(mirror.ArithmeticException, "divide by zero")
}

// intArith computes x op y with Java semantics. It returns false with
// ArithmeticException pending on division by zero.
func (st *state) intArith(op arithOp, x, y int32) (int32, bool) {
	switch op {
	case arithAdd:
		return x + y, true
	case arithSub:
		return x - y, true
	case arithRsub:
		return y - x, true
	case arithMul:
		return x * y, true
	case arithDiv, arithRem:
		if y == 0 {
			st.throwDivideByZero()
			return 0, false
		}
		if x == math.MinInt32 && y == -1 {
			if op == arithDiv {
				return x, true
			}
			return 0, true
		}
		if op == arithDiv {
			return x / y, true
		}
		return x % y, true
	case arithAnd:
		return x & y, true
	case arithOr:
		return x | y, true
	case arithXor:
		return x ^ y, true
	case arithShl:
		return x << (y & 0x1f), true
	case arithShr:
		return x >> (y & 0x1f), true
	case arithUshr:
		return int32(uint32(x) >> (y & 0x1f)), true
	}
	panic("intArith: bad operation")
}

// longArith is intArith for 64-bit operands. Shift counts come from an int
// register and use their low six bits.
func (st *state) longArith(op arithOp, x, y int64) (int64, bool) {
	switch op {
	case arithAdd:
		return x + y, true
	case arithSub:
		return x - y, true
	case arithMul:
		return x * y, true
	case arithDiv, arithRem:
		if y == 0 {
			st.throwDivideByZero()
			return 0, false
		}
		if x == math.MinInt64 && y == -1 {
			if op == arithDiv {
				return x, true
			}
			return 0, true
		}
		if op == arithDiv {
			return x / y, true
		}
		return x % y, true
	case arithAnd:
		return x & y, true
	case arithOr:
		return x | y, true
	case arithXor:
		return x ^ y, true
	case arithShl:
		return x << (y & 0x3f), true
	case arithShr:
		return x >> (y & 0x3f), true
	case arithUshr:
		return int64(uint64(x) >> (y & 0x3f)), true
	}
	panic("longArith: bad operation")
}

func floatArith(op arithOp, x, y float32) float32 {
	switch op {
	case arithAdd:
		return x + y
	case arithSub:
		return x - y
	case arithMul:
		return x * y
	case arithDiv:
		return x / y
	case arithRem:
		return float32(math.Mod(float64(x), float64(y)))
	}
	panic("floatArith: bad operation")
}

func doubleArith(op arithOp, x, y float64) float64 {
	switch op {
	case arithAdd:
		return x + y
	case arithSub:
		return x - y
	case arithMul:
		return x * y
	case arithDiv:
		return x / y
	case arithRem:
		return math.Mod(x, y)
	}
	panic("doubleArith: bad operation")
}

// binop applies the 23x or 2addr opcode op (normalized to its 23x form) to
// registers b and c, storing into a.
func (st *state) binop(op dex.Opcode, a, b, c int) {
	f := st.frame
	switch {
	case op <= dex.OpUshrInt:
		if v, ok := st.intArith(arithOp(op-dex.OpAddInt), f.VReg(b), f.VReg(c)); ok {
			f.SetVReg(a, v)
		}
	case op <= dex.OpUshrLong:
		k := arithOp(op - dex.OpAddLong)
		var y int64
		if k >= arithShl {
			y = int64(f.VReg(c))
		} else {
			y = f.VRegLong(c)
		}
		if v, ok := st.longArith(k, f.VRegLong(b), y); ok {
			f.SetVRegLong(a, v)
		}
	case op <= dex.OpRemFloat:
		f.SetVRegFloat(a, floatArith(arithOp(op-dex.OpAddFloat), f.VRegFloat(b), f.VRegFloat(c)))
	default:
		f.SetVRegDouble(a, doubleArith(arithOp(op-dex.OpAddDouble), f.VRegDouble(b), f.VRegDouble(c)))
	}
}

func opBinary(st *state, inst dex.Instruction) {
	st.binop(inst.Opcode(), inst.VRegA(), inst.VRegB(), inst.VRegC())
}

func opBinary2Addr(st *state, inst dex.Instruction) {
	a := inst.VRegA()
	st.binop(inst.Opcode()-(dex.OpAddInt2Addr-dex.OpAddInt), a, a, inst.VRegB())
}

func opBinaryLit(st *state, inst dex.Instruction) {
	op := litOps[inst.Opcode()-dex.OpAddIntLit16]
	if v, ok := st.intArith(op, st.frame.VReg(inst.VRegB()), int32(inst.VRegC())); ok {
		st.frame.SetVReg(inst.VRegA(), v)
	}
}

// float2int and friends convert with Java semantics: NaN becomes zero and
// out-of-range values saturate.
func float2int(v float64) int32 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func float2long(v float64) int64 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func opUnary(st *state, inst dex.Instruction) {
	f := st.frame
	a, b := inst.VRegA(), inst.VRegB()
	switch inst.Opcode() {
	case dex.OpNegInt:
		f.SetVReg(a, -f.VReg(b))
	case dex.OpNotInt:
		f.SetVReg(a, ^f.VReg(b))
	case dex.OpNegLong:
		f.SetVRegLong(a, -f.VRegLong(b))
	case dex.OpNotLong:
		f.SetVRegLong(a, ^f.VRegLong(b))
	case dex.OpNegFloat:
		f.SetVRegFloat(a, -f.VRegFloat(b))
	case dex.OpNegDouble:
		f.SetVRegDouble(a, -f.VRegDouble(b))
	case dex.OpIntToLong:
		f.SetVRegLong(a, int64(f.VReg(b)))
	case dex.OpIntToFloat:
		f.SetVRegFloat(a, float32(f.VReg(b)))
	case dex.OpIntToDouble:
		f.SetVRegDouble(a, float64(f.VReg(b)))
	case dex.OpLongToInt:
		f.SetVReg(a, int32(f.VRegLong(b)))
	case dex.OpLongToFloat:
		f.SetVRegFloat(a, float32(f.VRegLong(b)))
	case dex.OpLongToDouble:
		f.SetVRegDouble(a, float64(f.VRegLong(b)))
	case dex.OpFloatToInt:
		f.SetVReg(a, float2int(float64(f.VRegFloat(b))))
	case dex.OpFloatToLong:
		f.SetVRegLong(a, float2long(float64(f.VRegFloat(b))))
	case dex.OpFloatToDouble:
		f.SetVRegDouble(a, float64(f.VRegFloat(b)))
	case dex.OpDoubleToInt:
		f.SetVReg(a, float2int(f.VRegDouble(b)))
	case dex.OpDoubleToLong:
		f.SetVRegLong(a, float2long(f.VRegDouble(b)))
	case dex.OpDoubleToFloat:
		f.SetVRegFloat(a, float32(f.VRegDouble(b)))
	case dex.OpIntToByte:
		f.SetVReg(a, int32(int8(f.VReg(b))))
	case dex.OpIntToChar:
		f.SetVReg(a, int32(uint16(f.VReg(b))))
	case dex.OpIntToShort:
		f.SetVReg(a, int32(int16(f.VReg(b))))
	}
}

// cmp returns -1, 0 or 1; bias is the result when either operand is NaN.
func cmp[T int64 | float32 | float64](x, y T, bias int32) int32 {
	switch {
	case x > y:
		return 1
	case x == y:
		return 0
	case x < y:
		return -1
	}
	return bias
}

func opCmp(st *state, inst dex.Instruction) {
	f := st.frame
	a, b, c := inst.VRegA(), inst.VRegB(), inst.VRegC()
	var r int32
	switch inst.Opcode() {
	case dex.OpCmplFloat:
		r = cmp(f.VRegFloat(b), f.VRegFloat(c), -1)
	case dex.OpCmpgFloat:
		r = cmp(f.VRegFloat(b), f.VRegFloat(c), 1)
	case dex.OpCmplDouble:
		r = cmp(f.VRegDouble(b), f.VRegDouble(c), -1)
	case dex.OpCmpgDouble:
		r = cmp(f.VRegDouble(b), f.VRegDouble(c), 1)
	default:
		r = cmp(f.VRegLong(b), f.VRegLong(c), 0)
	}
	f.SetVReg(a, r)
}
