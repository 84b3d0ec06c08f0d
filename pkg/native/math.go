package native

import (
	"github.com/daimatz/godex/pkg/interp"
)

func mathUnary(fn func(float64) float64) handler {
	return func(self *interp.Thread, a *args, result *interp.JValue) {
		result.SetDouble(fn(a.f64()))
	}
}

func mathBinary(fn func(float64, float64) float64) handler {
	return func(self *interp.Thread, a *args, result *interp.JValue) {
		x, y := a.f64(), a.f64()
		result.SetDouble(fn(x, y))
	}
}
