package native

import (
	"math"
	"strconv"

	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/mirror"
)

func integerParseInt(self *interp.Thread, a *args, result *interp.JValue) {
	o := a.ref()
	if o == nil {
		self.ThrowNew(mirror.NumberFormatException, "null")
		return
	}
	s := o.GoString()
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		self.ThrowNew(mirror.NumberFormatException, "For input string: \"%s\"", s)
		return
	}
	result.SetInt(int32(v))
}

func integerToString(self *interp.Thread, a *args, result *interp.JValue) {
	setString(self, strconv.FormatInt(int64(a.i32()), 10), result)
}

func floatToRawIntBits(self *interp.Thread, a *args, result *interp.JValue) {
	result.SetInt(int32(math.Float32bits(a.f32())))
}

func intBitsToFloat(self *interp.Thread, a *args, result *interp.JValue) {
	result.SetFloat(math.Float32frombits(uint32(a.i32())))
}

func doubleToRawLongBits(self *interp.Thread, a *args, result *interp.JValue) {
	result.SetLong(int64(math.Float64bits(a.f64())))
}

func longBitsToDouble(self *interp.Thread, a *args, result *interp.JValue) {
	result.SetDouble(math.Float64frombits(uint64(a.i64())))
}
