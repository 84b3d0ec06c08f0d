// Package interp executes method bytecode against shadow frames.
package interp

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/daimatz/godex/pkg/mirror"
)

var log = commonlog.GetLogger("godex.interp")

// ClassLinker resolves symbolic references for the interpreter. Errors are
// *mirror.JavaException values, turned into pending exceptions.
type ClassLinker interface {
	FindClass(descriptor string) (*mirror.Class, error)
	ResolveType(idx uint32, referrer *mirror.Method) (*mirror.Class, error)
	ResolveTypeChecked(idx uint32, referrer *mirror.Method, accessCheck bool) (*mirror.Class, error)
	ResolveString(idx uint32, referrer *mirror.Method) (*mirror.Object, error)
	ResolveField(idx uint32, referrer *mirror.Method, isStatic, accessCheck bool) (*mirror.Field, error)
	LookupResolvedField(idx uint32, referrer *mirror.Method) *mirror.Field
	ResolveMethod(idx uint32, referrer *mirror.Method, kind mirror.InvokeType, accessCheck bool) (*mirror.Method, error)
	EnsureInitialized(c *mirror.Class, owner any, run func(clinit *mirror.Method) error) error
	Classes() []*mirror.Class

	ClassMirror(c *mirror.Class) (*mirror.Object, error)
	NewString(s string) (*mirror.Object, error)
	NewStringFromChars(chars []uint16) (*mirror.Object, error)
	InternString(s string) (*mirror.Object, error)
	Intern(s *mirror.Object) (*mirror.Object, error)
	NewThrowable(descriptor, msg string, cause *mirror.Object) (*mirror.Object, error)
	Describe(throwable *mirror.Object) string
}

// Intercepts substitutes host implementations for selected methods while
// the runtime has not started.
type Intercepts interface {
	// Invoke runs the substitute for a bytecode-level call of frame's
	// method and reports whether one is registered. The arguments start at
	// register argOffset of frame.
	Invoke(self *Thread, frame *ShadowFrame, result *JValue, argOffset int) bool
	// InvokeNative runs a native method before the runtime is started.
	InvokeNative(self *Thread, frame *ShadowFrame, result *JValue, argOffset int)
}

// NativeBridge calls native methods once the runtime is started.
type NativeBridge interface {
	Call(self *Thread, frame *ShadowFrame, argOffset int) (JValue, error)
}

// CompiledCode is the compiled-code collaborator. The interpreter hands a
// call over when HasCode reports compiled code for the callee.
type CompiledCode interface {
	HasCode(m *mirror.Method) bool
	Invoke(self *Thread, frame *ShadowFrame, argOffset int) JValue
}

// JIT receives hotness samples from method entries and backward branches.
type JIT interface {
	AddSamples(self *Thread, m *mirror.Method, n uint32)
}

// Engine selects the dispatch driver.
type Engine int

const (
	// EngineSwitch dispatches with a switch statement over the opcode.
	EngineSwitch Engine = iota
	// EngineTable dispatches through a handler table, swapping in an
	// instrumentation-aware table while dex pc listeners are present.
	EngineTable
)

func (e Engine) String() string {
	if e == EngineTable {
		return "table"
	}
	return "switch"
}

// ParseEngine converts "switch" or "table" to an Engine.
func ParseEngine(s string) (Engine, error) {
	switch s {
	case "switch", "":
		return EngineSwitch, nil
	case "table", "goto":
		return EngineTable, nil
	}
	return 0, errors.Errorf("unknown interpreter engine %q", s)
}

// Options configure a Runtime.
type Options struct {
	Engine Engine
	// AccessChecks enables resolution access checks and runtime type
	// checks for code not proven safe ahead of time.
	AccessChecks bool
	MaxDepth     int
	// StackSize is the per-thread frame byte budget.
	StackSize int64
	Started   bool
	Stdout    io.Writer
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Engine:    EngineSwitch,
		MaxDepth:  1024,
		StackSize: 8 << 20,
		Started:   true,
		Stdout:    os.Stdout,
	}
}

// Runtime ties the interpreter to its collaborators.
type Runtime struct {
	opts      Options
	linker    ClassLinker
	heap      mirror.Allocator
	instr     Instrumentation
	intercept Intercepts
	bridge    NativeBridge
	compiled  CompiledCode
	jit       JIT
	started   atomic.Bool
	oome      *mirror.Object

	threadsMu sync.Mutex
	threads   []*Thread

	suspendMu      sync.Mutex
	suspendCond    *sync.Cond
	suspendCount   int
	suspendPending atomic.Bool
}

// NewRuntime creates a runtime. Zero option fields take their defaults.
func NewRuntime(linker ClassLinker, heap mirror.Allocator, opts Options) (*Runtime, error) {
	def := DefaultOptions()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.StackSize <= 0 {
		opts.StackSize = def.StackSize
	}
	if opts.Stdout == nil {
		opts.Stdout = def.Stdout
	}
	rt := &Runtime{opts: opts, linker: linker, heap: heap}
	rt.suspendCond = sync.NewCond(&rt.suspendMu)
	rt.started.Store(opts.Started)
	oome, err := linker.NewThrowable(mirror.OutOfMemoryError,
		"OutOfMemoryError thrown while trying to throw OutOfMemoryError; no stack trace available", nil)
	if err != nil {
		return nil, errors.Wrap(err, "preallocating OutOfMemoryError")
	}
	rt.oome = oome
	return rt, nil
}

func (rt *Runtime) Options() Options                  { return rt.opts }
func (rt *Runtime) Linker() ClassLinker               { return rt.linker }
func (rt *Runtime) Heap() mirror.Allocator            { return rt.heap }
func (rt *Runtime) Instrumentation() *Instrumentation { return &rt.instr }
func (rt *Runtime) Stdout() io.Writer                 { return rt.opts.Stdout }

func (rt *Runtime) SetIntercepts(i Intercepts)     { rt.intercept = i }
func (rt *Runtime) SetNativeBridge(b NativeBridge) { rt.bridge = b }
func (rt *Runtime) SetCompiledCode(c CompiledCode) { rt.compiled = c }
func (rt *Runtime) SetJIT(j JIT)                   { rt.jit = j }

// IsStarted reports whether the runtime left the unstarted phase.
func (rt *Runtime) IsStarted() bool { return rt.started.Load() }

// Start ends the unstarted phase: native methods go through the bridge.
func (rt *Runtime) Start() {
	rt.started.Store(true)
	log.Infof("runtime started")
}

// AttachThread registers a new thread.
func (rt *Runtime) AttachThread(name string) *Thread {
	t := &Thread{ID: uuid.New(), Name: name, rt: rt}
	rt.threadsMu.Lock()
	rt.threads = append(rt.threads, t)
	rt.threadsMu.Unlock()
	// A thread attaching during a suspend-all starts out suspended.
	t.becomeRunnable()
	log.Debugf("attached %s", t)
	return t
}

func (rt *Runtime) detach(t *Thread) {
	rt.threadsMu.Lock()
	for i, x := range rt.threads {
		if x == t {
			rt.threads = append(rt.threads[:i], rt.threads[i+1:]...)
			break
		}
	}
	rt.threadsMu.Unlock()
	rt.suspendMu.Lock()
	t.state.Store(int32(StateTerminated))
	rt.suspendCond.Broadcast()
	rt.suspendMu.Unlock()
	log.Debugf("detached %s", t)
}

// Threads returns a snapshot of the attached threads.
func (rt *Runtime) Threads() []*Thread {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	return append([]*Thread(nil), rt.threads...)
}

// VisitRoots calls fn for every reference held by attached threads (frames
// and pending exceptions) and by class statics. Callers suspend the
// threads first.
func (rt *Runtime) VisitRoots(fn func(*mirror.Object)) {
	for _, t := range rt.Threads() {
		t.WalkStack(func(f *ShadowFrame) bool {
			f.VisitRoots(fn)
			return true
		})
		if t.exception != nil {
			fn(t.exception)
		}
		if t.peer != nil {
			fn(t.peer)
		}
	}
	for _, c := range rt.linker.Classes() {
		for _, f := range c.StaticFields {
			if f.IsReference() {
				if o := f.GetRef(nil); o != nil {
					fn(o)
				}
			}
		}
		if m := c.Mirror(); m != nil {
			fn(m)
		}
	}
	fn(rt.oome)
}
