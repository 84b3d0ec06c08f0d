// Package native holds the host implementations of the boot image's native
// methods: the intercept tables used while the runtime is not started and
// the bridge that serves native calls afterwards.
package native

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/daimatz/godex/pkg/interp"
)

var log = commonlog.GetLogger("godex.native")

// handler implements one method. Arguments are read through a; a handler
// that throws leaves the exception pending on self and result untouched.
type handler func(self *interp.Thread, a *args, result *interp.JValue)

type tables struct {
	invoke map[string]handler
	jni    map[string]handler
	// bridge serves every native method once the runtime has started.
	bridge map[string]handler
}

var current atomic.Pointer[tables]

// Initialize builds the handler tables. It must be called exactly once
// before Unstarted or Bridge is used.
func Initialize() {
	t := &tables{
		invoke: invokeHandlers(),
		jni:    jniHandlers(),
		bridge: map[string]handler{},
	}
	for _, m := range []map[string]handler{t.invoke, t.jni, bridgeHandlers()} {
		for k, h := range m {
			t.bridge[k] = h
		}
	}
	if !current.CompareAndSwap(nil, t) {
		panic("native: Initialize called twice")
	}
	log.Debugf("registered %d invoke and %d jni handlers", len(t.invoke), len(t.jni))
}

func loaded() *tables {
	t := current.Load()
	if t == nil {
		panic("native: Initialize has not been called")
	}
	return t
}

// InvokeKeys returns the signatures intercepted on bytecode-level calls.
func InvokeKeys() []string { return keys(loaded().invoke) }

// JNIKeys returns the native signatures served before the runtime starts.
func JNIKeys() []string { return keys(loaded().jni) }

func keys(m map[string]handler) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func invokeHandlers() map[string]handler {
	return map[string]handler{
		"java.lang.Class java.lang.Class.forName(java.lang.String)": func(self *interp.Thread, a *args, result *interp.JValue) {
			classForName(self, a.ref(), true, result)
		},
		"java.lang.Class java.lang.Class.forName(java.lang.String, boolean, java.lang.ClassLoader)": func(self *interp.Thread, a *args, result *interp.JValue) {
			name, initialize := a.ref(), a.bool()
			classForName(self, name, initialize, result)
		},
		"java.lang.Object java.lang.Class.newInstance()":                                     classNewInstance,
		"java.lang.String java.lang.Class.getName()":                                         classGetName,
		"void java.lang.System.arraycopy(java.lang.Object, int, java.lang.Object, int, int)": systemArraycopy,
		"void java.lang.System.arraycopy(char[], int, char[], int, int)":                     systemArraycopy,
		"void java.lang.System.arraycopy(int[], int, int[], int, int)":                       systemArraycopy,
		"int java.lang.System.identityHashCode(java.lang.Object)":                            objectHashCode,
		"double java.lang.Math.ceil(double)":                                                 mathUnary(math.Ceil),
		"double java.lang.Math.floor(double)":                                                mathUnary(math.Floor),
		"char java.lang.String.charAt(int)":                                                  stringCharAt,
		"int java.lang.String.length()":                                                      stringLength,
		"char[] java.lang.String.toCharArray()":                                              stringToCharArray,
		"java.lang.String java.lang.String.fastSubstring(int, int)":                          stringFastSubstring,
		"java.lang.Thread java.lang.Thread.currentThread()":                                  threadCurrentThread,
	}
}

func jniHandlers() map[string]handler {
	return map[string]handler{
		"java.lang.Object java.lang.Object.internalClone()":                                                        objectInternalClone,
		"int java.lang.Object.hashCode()":                                                                          objectHashCode,
		"java.lang.Class java.lang.Object.getClass()":                                                              objectGetClass,
		"java.lang.String java.lang.String.intern()":                                                               stringIntern,
		"int java.lang.String.compareTo(java.lang.String)":                                                         stringCompareTo,
		"int java.lang.String.fastIndexOf(int, int)":                                                               stringFastIndexOf,
		"int java.lang.Float.floatToRawIntBits(float)":                                                             floatToRawIntBits,
		"float java.lang.Float.intBitsToFloat(int)":                                                                intBitsToFloat,
		"long java.lang.Double.doubleToRawLongBits(double)":                                                        doubleToRawLongBits,
		"double java.lang.Double.longBitsToDouble(long)":                                                           longBitsToDouble,
		"double java.lang.Math.sqrt(double)":                                                                       mathUnary(math.Sqrt),
		"double java.lang.Math.sin(double)":                                                                        mathUnary(math.Sin),
		"double java.lang.Math.cos(double)":                                                                        mathUnary(math.Cos),
		"double java.lang.Math.exp(double)":                                                                        mathUnary(math.Exp),
		"double java.lang.Math.log(double)":                                                                        mathUnary(math.Log),
		"double java.lang.Math.pow(double, double)":                                                                mathBinary(math.Pow),
		"double java.lang.Math.atan2(double, double)":                                                              mathBinary(math.Atan2),
		"boolean sun.misc.Unsafe.compareAndSwapInt(java.lang.Object, long, int, int)":                              unsafeCASInt,
		"boolean sun.misc.Unsafe.compareAndSwapLong(java.lang.Object, long, long, long)":                           unsafeCASLong,
		"boolean sun.misc.Unsafe.compareAndSwapObject(java.lang.Object, long, java.lang.Object, java.lang.Object)": unsafeCASObject,
		"int sun.misc.Unsafe.getArrayBaseOffsetForComponentType(java.lang.Class)":                                  unsafeArrayBaseOffset,
		"int sun.misc.Unsafe.getArrayIndexScaleForComponentType(java.lang.Class)":                                  unsafeArrayIndexScale,
		"java.lang.Object java.lang.reflect.Array.createObjectArray(java.lang.Class, int)":                         arrayCreateObjectArray,
	}
}

// bridgeHandlers are served only by the started runtime.
func bridgeHandlers() map[string]handler {
	return map[string]handler{
		"void godex.io.Console.print(java.lang.String)":    consolePrint(false),
		"void godex.io.Console.println(java.lang.String)":  consolePrint(true),
		"void godex.io.Console.println()":                  consolePrintln,
		"void godex.io.Console.println(int)":               consolePrintInt,
		"void godex.io.Console.println(long)":              consolePrintLong,
		"int java.lang.Integer.parseInt(java.lang.String)": integerParseInt,
		"java.lang.String java.lang.Integer.toString(int)": integerToString,
	}
}
