package interp

import (
	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

func invokeType(op dex.Opcode) mirror.InvokeType {
	switch op {
	case dex.OpInvokeSuper, dex.OpInvokeSuperRange:
		return mirror.InvokeSuper
	case dex.OpInvokeDirect, dex.OpInvokeDirectRange:
		return mirror.InvokeDirect
	case dex.OpInvokeStatic, dex.OpInvokeStaticRange:
		return mirror.InvokeStatic
	case dex.OpInvokeInterface, dex.OpInvokeInterfaceRange:
		return mirror.InvokeInterface
	}
	return mirror.InvokeVirtual
}

func opInvoke(st *state, inst dex.Instruction) {
	st.doInvoke(inst, invokeType(inst.Opcode()), false)
}

func opInvokeQuick(st *state, inst dex.Instruction) {
	st.doInvoke(inst, mirror.InvokeVirtual, true)
}

// doInvoke performs a call site. A null receiver is reported before the
// method reference is resolved. Quickened calls carry a vtable index
// instead of a method index.
func (st *state) doInvoke(inst dex.Instruction, kind mirror.InvokeType, quick bool) {
	idx := uint32(inst.VRegB())
	args := inst.Args()
	var receiver *mirror.Object
	if kind != mirror.InvokeStatic {
		if len(args) == 0 {
			st.self.ThrowNew(mirror.VirtualMachineError, "%s call without a receiver register", kind)
			return
		}
		receiver = st.frame.VRegReference(args[0])
		if receiver == nil {
			st.throwNullInvoke(idx, kind, quick)
			return
		}
	}
	var target *mirror.Method
	if quick {
		vt := receiver.Class().VTable
		if int(idx) >= len(vt) {
			st.self.ThrowNew(mirror.VirtualMachineError, "vtable index %d out of range for %s", idx, receiver.Class().Name())
			return
		}
		target = vt[idx]
	} else {
		resolved, err := st.rt.linker.ResolveMethod(idx, st.method, kind, st.accessChecks)
		if err != nil {
			st.self.ThrowError(err)
			return
		}
		if target = st.findTarget(resolved, kind, receiver); target == nil {
			return
		}
	}
	if target.IsAbstract() {
		st.self.ThrowNew(mirror.AbstractMethodError, "abstract method \"%s\"", target.PrettyMethod())
		return
	}
	if target.IsStatic() && !st.self.EnsureInitialized(target.Declaring) {
		return
	}
	st.result = st.performCall(target, args)
	st.refreshInstrumented()
}

func (st *state) throwNullInvoke(idx uint32, kind mirror.InvokeType, quick bool) {
	if quick {
		st.self.ThrowNew(mirror.NullPointerException, "Attempt to invoke virtual method on a null object reference")
		return
	}
	name := "?"
	if id, err := st.method.DexFile().MethodAt(idx); err == nil {
		name = id.Pretty()
	}
	st.self.ThrowNew(mirror.NullPointerException, "Attempt to invoke %s method '%s' on a null object reference", kind, name)
}

// findTarget selects the method a resolved reference dispatches to for
// receiver. It returns nil with an exception pending on failure.
func (st *state) findTarget(resolved *mirror.Method, kind mirror.InvokeType, receiver *mirror.Object) *mirror.Method {
	switch kind {
	case mirror.InvokeStatic, mirror.InvokeDirect:
		return resolved
	case mirror.InvokeVirtual:
		if m := receiver.Class().FindVirtualMethodForVirtualOrInterface(resolved); m != nil {
			return m
		}
		st.self.ThrowNew(mirror.IncompatibleClassChangeError, "%s has no implementation of %s",
			receiver.Class().Name(), resolved.PrettyMethod())
	case mirror.InvokeSuper:
		super := st.method.Declaring.Super
		vi := resolved.VTableIndex
		if super != nil && vi >= 0 && vi < len(super.VTable) {
			return super.VTable[vi]
		}
		st.self.ThrowNew(mirror.NoSuchMethodError, "super method %s not found", resolved.PrettyMethod())
	case mirror.InvokeInterface:
		if !receiver.InstanceOf(resolved.Declaring) {
			st.self.ThrowNew(mirror.IncompatibleClassChangeError, "Class %s does not implement interface %s in call to %s",
				receiver.Class().Name(), resolved.Declaring.Name(), resolved.PrettyMethod())
			return nil
		}
		if m := receiver.Class().FindVirtualMethodForInterface(resolved); m != nil {
			return m
		}
		st.self.ThrowNew(mirror.AbstractMethodError, "abstract method \"%s\"", resolved.PrettyMethod())
	}
	return nil
}

// performCall builds the callee frame, copies the argument registers into
// its last registers and runs it.
func (st *state) performCall(target *mirror.Method, args []int) JValue {
	self := st.self
	numArgs := target.NumArgRegisters()
	regs := numArgs
	if target.Code != nil {
		regs = int(target.Code.RegistersSize)
	}
	if len(args) != numArgs {
		self.ThrowNew(mirror.VirtualMachineError, "%s takes %d argument registers, got %d",
			target.PrettyMethod(), numArgs, len(args))
		return JValue{}
	}
	if !self.checkStack(regs) {
		return JValue{}
	}
	callee := NewShadowFrame(regs, st.frame, target, 0)
	argOffset := regs - numArgs
	if !st.copyArgs(target, callee, argOffset, args) {
		return JValue{}
	}
	return self.invokeFrame(callee, argOffset)
}

func (st *state) copyArgs(target *mirror.Method, callee *ShadowFrame, dst int, args []int) bool {
	caller := st.frame
	i := 0
	if !target.IsStatic() {
		callee.SetVRegReference(dst, caller.VRegReference(args[0]))
		dst++
		i++
	}
	for n, p := range target.ParamTypes() {
		switch c := dex.ShortyChar(p); {
		case c == 'L':
			o := caller.VRegReference(args[i])
			if st.accessChecks && o != nil {
				pc, err := st.rt.linker.FindClass(p)
				if err != nil {
					st.self.ThrowError(err)
					return false
				}
				if !o.InstanceOf(pc) {
					st.self.ThrowNew(mirror.VirtualMachineError, "Invoking %s with bad arg %d, type '%s' not instance of '%s'",
						target.PrettyMethod(), n, o.Class().Name(), pc.Name())
					return false
				}
			}
			callee.SetVRegReference(dst, o)
			dst++
			i++
		case dex.IsWide(c):
			callee.vregs[dst] = caller.vregs[args[i]]
			callee.vregs[dst+1] = caller.vregs[args[i+1]]
			dst += 2
			i += 2
		default:
			callee.SetVReg(dst, caller.VReg(args[i]))
			dst++
			i++
		}
	}
	return true
}

// invokeFrame pushes callee, whose arguments start at register argOffset,
// and runs its method. Calls are offered to the intercepts first, then
// native methods go to the unstarted intercepts or the native bridge,
// then compiled code, and finally the interpreter.
func (t *Thread) invokeFrame(callee *ShadowFrame, argOffset int) JValue {
	m := callee.Method()
	rt := t.rt
	t.pushFrame(callee)
	defer t.popFrame(callee)

	var result JValue
	if rt.intercept != nil && rt.intercept.Invoke(t, callee, &result, argOffset) {
		return result
	}
	if m.IsSynchronized() {
		var lock *mirror.Object
		if m.IsStatic() {
			var err error
			if lock, err = rt.linker.ClassMirror(m.Declaring); err != nil {
				t.ThrowError(err)
				return JValue{}
			}
		} else {
			lock = callee.VRegReference(argOffset)
		}
		t.monitorEnter(lock)
		defer t.monitorExit(lock)
	}
	switch {
	case m.IsNative():
		return t.invokeNative(callee, argOffset)
	case rt.compiled != nil && t.tx == nil && !rt.instr.IsActive() && rt.compiled.HasCode(m):
		return rt.compiled.Invoke(t, callee, argOffset)
	case m.Code == nil:
		t.ThrowNew(mirror.AbstractMethodError, "abstract method \"%s\"", m.PrettyMethod())
		return JValue{}
	}
	return Execute(t, callee, JValue{})
}

func (t *Thread) invokeNative(callee *ShadowFrame, argOffset int) JValue {
	rt := t.rt
	m := callee.Method()
	if !rt.IsStarted() {
		if rt.intercept == nil {
			Abort("native method %s called before the runtime started", m.PrettyMethod())
		}
		var result JValue
		rt.intercept.InvokeNative(t, callee, &result, argOffset)
		return result
	}
	if rt.bridge == nil {
		t.ThrowNew(mirror.UnsatisfiedLinkError, "No implementation found for %s", m.PrettyMethod())
		return JValue{}
	}
	var v JValue
	t.runBlocking(StateNative, func() {
		var err error
		if v, err = rt.bridge.Call(t, callee, argOffset); err != nil {
			v = JValue{}
			if !t.IsExceptionPending() {
				t.ThrowError(err)
			}
		}
	})
	return v
}

// Invoke calls m through EnterInterpreterFromInvoke. A thread calling
// back from native code is Runnable for the duration of the call.
func (t *Thread) Invoke(m *mirror.Method, receiver *mirror.Object, args ...JValue) JValue {
	if t.State() == StateNative {
		t.becomeRunnable()
		defer t.transitionTo(StateNative)
	}
	return EnterInterpreterFromInvoke(t, m, receiver, args)
}

// EnsureInitialized initializes c on t if needed, running <clinit> in the
// interpreter. It returns false with an exception pending on failure.
// Waiting for another thread's initialization counts as blocked for the
// suspension protocol.
func (t *Thread) EnsureInitialized(c *mirror.Class) bool {
	if c.IsInitialized() {
		return true
	}
	if t.tx != nil {
		for k := c; k != nil && !k.IsInitialized(); k = k.Super {
			if !k.IsErroneous() {
				t.tx.RecordClassInit(k)
			}
		}
	}
	var err error
	t.runBlocking(StateBlocked, func() {
		err = t.rt.linker.EnsureInitialized(c, t, func(clinit *mirror.Method) error {
			t.becomeRunnable()
			defer t.transitionTo(StateBlocked)
			return t.runClassInitializer(clinit)
		})
	})
	if err != nil {
		if !t.IsExceptionPending() {
			t.ThrowError(err)
		}
		return false
	}
	return true
}

func (t *Thread) runClassInitializer(clinit *mirror.Method) error {
	log.Debugf("running %s", clinit)
	t.Invoke(clinit, nil)
	if exc := t.exception; exc != nil {
		t.ClearException()
		return &mirror.JavaException{Descriptor: exc.Class().Descriptor, Object: exc}
	}
	return nil
}
