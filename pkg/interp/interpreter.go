package interp

import (
	"sync/atomic"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/mirror"
)

// state is the per-invocation context shared by the handlers.
type state struct {
	self   *Thread
	rt     *Runtime
	frame  *ShadowFrame
	method *mirror.Method
	this   *mirror.Object
	insns  []uint16
	code   *dex.CodeItem

	pc   uint32
	next uint32

	// result is the result register written by invokes and
	// filled-new-array and read by move-result.
	result   JValue
	ret      JValue
	returned bool

	accessChecks bool
	// instrumented is set while dex pc listeners are present; it is
	// re-read only at method entry, backward branches, invokes and
	// exception dispatch.
	instrumented bool
	// skipPCMoved suppresses the dex pc event at pc 0 when method entry
	// listeners already saw the frame.
	skipPCMoved bool
}

func newState(self *Thread, frame *ShadowFrame, resultRegister JValue) *state {
	m := frame.Method()
	return &state{
		self:         self,
		rt:           self.rt,
		frame:        frame,
		method:       m,
		this:         frame.thisObject(),
		insns:        m.Code.Insns,
		code:         m.Code,
		pc:           frame.DexPC(),
		result:       resultRegister,
		accessChecks: self.rt.opts.AccessChecks,
	}
}

// fetch decodes the instruction at pc and records pc in the frame.
func (st *state) fetch() dex.Instruction {
	st.frame.dexPC = st.pc
	inst := dex.At(st.insns, st.pc)
	st.next = st.pc + uint32(inst.SizeInCodeUnits())
	return inst
}

// advance ends a step. It dispatches a pending exception and reports
// whether the method is done.
func (st *state) advance() bool {
	if st.self.exception != nil {
		return !st.handleException()
	}
	if st.returned {
		return true
	}
	st.pc = st.next
	return false
}

func (st *state) dexPCMoved() {
	if st.skipPCMoved {
		st.skipPCMoved = false
		return
	}
	st.rt.instr.DexPCMovedEvent(st.self, st.this, st.method, st.pc)
}

func (st *state) refreshInstrumented() {
	st.instrumented = st.rt.instr.Has(EventDexPCMoved)
}

// run executes from st.pc until the method returns or an exception
// escapes it.
func (st *state) run() JValue {
	st.self.CheckSuspend()
	if st.pc == 0 {
		if st.rt.instr.Has(EventMethodEntered) {
			st.rt.instr.MethodEnterEvent(st.self, st.this, st.method, 0)
			st.skipPCMoved = st.rt.instr.Has(EventDexPCMoved)
		}
		if st.rt.jit != nil {
			st.rt.jit.AddSamples(st.self, st.method, 1)
		}
	}
	st.refreshInstrumented()
	switch st.rt.opts.Engine {
	case EngineTable:
		executeTable(st)
	default:
		executeSwitch(st)
	}
	if st.self.exception != nil {
		return JValue{}
	}
	return st.ret
}

// handleException looks for a catch handler of the pending exception at
// pc. On a match it moves pc to the handler and returns true. The
// exception stays pending when the handler starts with move-exception.
func (st *state) handleException() bool {
	self := st.self
	exc := self.exception
	st.refreshInstrumented()
	handler, ok := st.findCatch(exc)
	if !ok {
		if st.rt.instr.Has(EventMethodUnwind) {
			st.rt.instr.MethodUnwindEvent(self, st.this, st.method, st.pc)
		}
		log.Debugf("%s unwinds %s at pc %d", exc.Class(), st.method, st.pc)
		return false
	}
	if st.rt.instr.Has(EventExceptionCaught) {
		st.rt.instr.ExceptionCaughtEvent(self, exc)
	}
	if dex.At(st.insns, handler).Opcode() != dex.OpMoveException {
		self.ClearException()
	}
	st.pc = handler
	return true
}

// findCatch returns the handler of the innermost try item covering pc that
// accepts exc. Nothing catches while the active transaction is aborted, so
// the abort error reaches the transaction owner.
func (st *state) findCatch(exc *mirror.Object) (uint32, bool) {
	if tx := st.self.tx; tx != nil && tx.IsAborted() {
		return 0, false
	}
	try := st.code.FindTryItem(st.pc)
	if try == nil {
		return 0, false
	}
	for _, h := range try.Handlers {
		c, err := st.rt.linker.ResolveType(h.TypeIdx, st.method)
		if err != nil {
			log.Warningf("skipping unresolvable catch type %d in %s: %v", h.TypeIdx, st.method, err)
			continue
		}
		if exc.InstanceOf(c) {
			return h.Addr, true
		}
	}
	if try.HasCatchAll {
		return try.CatchAllAddr, true
	}
	return 0, false
}

// branch moves to pc+offset. Backward branches are suspend points and JIT
// samples.
func (st *state) branch(offset int32) {
	if st.rt.instr.Has(EventBranch) {
		st.rt.instr.BranchEvent(st.self, st.method, st.pc, offset)
	}
	st.next = uint32(int32(st.pc) + offset)
	if offset <= 0 {
		st.self.CheckSuspend()
		if st.rt.jit != nil {
			st.rt.jit.AddSamples(st.self, st.method, 1)
		}
		st.refreshInstrumented()
	}
}

// doReturn emits no dex pc event of its own; the one reported before the
// return instruction is the last for the frame.
func (st *state) doReturn(v JValue) {
	st.self.CheckSuspend()
	if st.rt.instr.Has(EventMethodExited) {
		st.rt.instr.MethodExitEvent(st.self, st.this, st.method, st.pc, v)
	}
	st.ret = v
	st.returned = true
}

var fence atomic.Int32

// constructorFence publishes final fields written by a constructor before
// the object escapes.
func constructorFence() { fence.Add(1) }

// Execute interprets frame's method from its dex pc with resultRegister
// as the initial result register. The frame must already be pushed.
func Execute(self *Thread, frame *ShadowFrame, resultRegister JValue) JValue {
	return newState(self, frame, resultRegister).run()
}

// EnterInterpreterFromInvoke runs m with the given receiver and arguments
// on self. Static methods initialize their class first. The result is
// zero when an exception is left pending.
func EnterInterpreterFromInvoke(self *Thread, m *mirror.Method, receiver *mirror.Object, args []JValue) JValue {
	numArgs := m.NumArgRegisters()
	regs := numArgs
	if m.Code != nil {
		regs = int(m.Code.RegistersSize)
	}
	if !self.checkStack(regs) {
		return JValue{}
	}
	params := m.ParamTypes()
	if len(args) != len(params) {
		self.ThrowNew(mirror.IllegalArgumentException, "Wrong number of arguments; expected %d, got %d", len(params), len(args))
		return JValue{}
	}
	frame := NewShadowFrame(regs, self.top, m, 0)
	cur := regs - numArgs
	if !m.IsStatic() {
		if receiver == nil {
			self.ThrowNew(mirror.NullPointerException, "null receiver for %s", m.PrettyMethod())
			return JValue{}
		}
		frame.SetVRegReference(cur, receiver)
		cur++
	}
	for i, p := range params {
		switch c := dex.ShortyChar(p); {
		case c == 'L':
			frame.SetVRegReference(cur, args[i].Ref())
			cur++
		case dex.IsWide(c):
			frame.SetVRegLong(cur, args[i].Long())
			cur += 2
		default:
			frame.SetVReg(cur, args[i].Int())
			cur++
		}
	}
	if m.IsStatic() && !self.EnsureInitialized(m.Declaring) {
		return JValue{}
	}
	return self.invokeFrame(frame, regs-numArgs)
}

// InterpreterToInterpreterBridge runs a callee frame whose arguments are
// already in its last registers and stores the return value in result.
func InterpreterToInterpreterBridge(self *Thread, frame *ShadowFrame, result *JValue) {
	m := frame.Method()
	if !self.checkStack(frame.NumberOfVRegs()) {
		return
	}
	if m.IsStatic() && !self.EnsureInitialized(m.Declaring) {
		return
	}
	*result = self.invokeFrame(frame, frame.NumberOfVRegs()-m.NumArgRegisters())
}

// EnterInterpreterFromDeoptimize resumes a chain of frames handed over by
// compiled code, innermost first. The innermost frame resumes at its dex
// pc when fromCode is set and after the invoke at its dex pc otherwise,
// with ret in its result register. Each outer frame receives the return
// value of the frame it called. A pending exception is dispatched in each
// frame in turn.
func EnterInterpreterFromDeoptimize(self *Thread, frame *ShadowFrame, fromCode bool, ret JValue) JValue {
	value := ret
	for frame != nil {
		next := frame.link
		self.pushFrame(frame)
		st := newState(self, frame, value)
		resume := true
		switch {
		case self.exception != nil:
			resume = st.handleException()
		case !fromCode:
			inst := dex.At(st.insns, st.pc)
			st.pc += uint32(inst.SizeInCodeUnits())
		}
		if resume {
			value = st.run()
		} else {
			value = JValue{}
		}
		self.popFrame(frame)
		frame = next
		fromCode = false
	}
	return value
}
