package interp

import (
	"fmt"
	"math"

	"github.com/daimatz/godex/pkg/mirror"
)

// JValue holds a value of any primitive width or a reference: the result
// register and the return value of an invocation.
type JValue struct {
	prim uint64
	ref  *mirror.Object
}

func IntValue(v int32) JValue          { return JValue{prim: uint64(uint32(v))} }
func LongValue(v int64) JValue         { return JValue{prim: uint64(v)} }
func FloatValue(v float32) JValue      { return JValue{prim: uint64(math.Float32bits(v))} }
func DoubleValue(v float64) JValue     { return JValue{prim: math.Float64bits(v)} }
func RefValue(o *mirror.Object) JValue { return JValue{ref: o} }
func BoolValue(b bool) JValue          { return IntValue(boolToInt(b)) }

func (v JValue) Int() int32          { return int32(v.prim) }
func (v JValue) Long() int64         { return int64(v.prim) }
func (v JValue) Float() float32      { return math.Float32frombits(uint32(v.prim)) }
func (v JValue) Double() float64     { return math.Float64frombits(v.prim) }
func (v JValue) Ref() *mirror.Object { return v.ref }
func (v JValue) Bool() bool          { return v.prim&0xff != 0 }
func (v JValue) Bits() uint64        { return v.prim }

func (v *JValue) SetInt(i int32)          { *v = IntValue(i) }
func (v *JValue) SetLong(l int64)         { *v = LongValue(l) }
func (v *JValue) SetFloat(f float32)      { *v = FloatValue(f) }
func (v *JValue) SetDouble(d float64)     { *v = DoubleValue(d) }
func (v *JValue) SetRef(o *mirror.Object) { *v = RefValue(o) }

func (v JValue) String() string {
	if v.ref != nil {
		return v.ref.String()
	}
	return fmt.Sprintf("%#x", v.prim)
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// slotValue converts a field or element slot of the given type character.
func slotValue(s *mirror.Slot, typeChar byte) JValue {
	if typeChar == 'L' || typeChar == '[' {
		return RefValue(s.Ref)
	}
	return JValue{prim: s.Prim}
}
