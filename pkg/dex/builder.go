package dex

import (
	"github.com/pkg/errors"
)

// Catch names a handler label for an exception type index.
type Catch struct {
	TypeIdx uint32
	Label   string
}

type fixup struct {
	pc     uint32
	op     Opcode
	a, b   int
	target string
}

type payloadRef struct {
	label string
	pc    uint32 // the switch or fill-array-data instruction
	build func(resolve func(string) (int32, error)) ([]uint16, error)
}

type tryRange struct {
	start, end string
	catches    []Catch
	catchAll   string
}

// Builder assembles a code item, resolving branch targets, payloads and
// try ranges given as labels. The first error sticks and is returned by
// Build.
type Builder struct {
	insns    []uint16
	labels   map[string]uint32
	fixups   []fixup
	payloads []*payloadRef
	tries    []tryRange
	err      error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{labels: make(map[string]uint32)}
}

// PC returns the address of the next instruction.
func (b *Builder) PC() uint32 { return uint32(len(b.insns)) }

func (b *Builder) fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

func (b *Builder) emit(units []uint16, err error) {
	if err != nil {
		b.fail(errors.Wrapf(err, "at pc %d", b.PC()))
		return
	}
	b.insns = append(b.insns, units...)
}

// Label binds name to the current pc.
func (b *Builder) Label(name string) {
	if _, ok := b.labels[name]; ok {
		b.fail(errors.Errorf("label %q defined twice", name))
		return
	}
	b.labels[name] = b.PC()
}

// Op emits a fixed-operand instruction.
func (b *Builder) Op(op Opcode, a, bb, c int) {
	b.emit(Encode(op, a, bb, c))
}

// ConstWide emits const-wide with a 64-bit literal.
func (b *Builder) ConstWide(a int, lit int64) {
	b.emit(Encode51l(OpConstWide, a, lit))
}

// Invoke emits a 35c instruction.
func (b *Builder) Invoke(op Opcode, index int, regs ...int) {
	b.emit(Encode35c(op, index, regs))
}

// InvokeRange emits a 3rc instruction.
func (b *Builder) InvokeRange(op Opcode, index, first, count int) {
	b.emit(Encode3rc(op, index, first, count))
}

// Branch emits a goto or if-test whose offset is the distance to target.
// regs are the tested registers.
func (b *Builder) Branch(op Opcode, target string, regs ...int) {
	f := fixup{pc: b.PC(), op: op, target: target}
	if len(regs) > 0 {
		f.a = regs[0]
	}
	if len(regs) > 1 {
		f.b = regs[1]
	}
	units, err := b.encodeBranch(f, 0)
	b.emit(units, err)
	if err == nil {
		b.fixups = append(b.fixups, f)
	}
}

func (b *Builder) encodeBranch(f fixup, off int) ([]uint16, error) {
	switch f.op.Format() {
	case Format10t, Format20t, Format30t:
		return Encode(f.op, off, 0, 0)
	case Format21t:
		return Encode(f.op, f.a, off, 0)
	case Format22t:
		return Encode(f.op, f.a, f.b, off)
	case Format31t:
		return Encode(f.op, f.a, off, 0)
	}
	return nil, errors.Errorf("%s is not a branch", f.op)
}

// PackedSwitch emits packed-switch on reg and a payload at label; targets
// are case labels for keys firstKey, firstKey+1, ...
func (b *Builder) PackedSwitch(reg int, label string, firstKey int32, targets []string) {
	b.payloadOp(OpPackedSwitch, reg, label, func(resolve func(string) (int32, error)) ([]uint16, error) {
		offs, err := offsets(targets, resolve)
		if err != nil {
			return nil, err
		}
		return PackedSwitchPayload(firstKey, offs), nil
	})
}

// SparseSwitch emits sparse-switch on reg with a payload at label.
func (b *Builder) SparseSwitch(reg int, label string, keys []int32, targets []string) {
	b.payloadOp(OpSparseSwitch, reg, label, func(resolve func(string) (int32, error)) ([]uint16, error) {
		offs, err := offsets(targets, resolve)
		if err != nil {
			return nil, err
		}
		return SparseSwitchPayload(keys, offs)
	})
}

// FillArrayData emits fill-array-data for the array in reg with a payload
// at label holding little-endian elements of width bytes.
func (b *Builder) FillArrayData(reg int, label string, width int, data []byte) {
	b.payloadOp(OpFillArrayData, reg, label, func(func(string) (int32, error)) ([]uint16, error) {
		return ArrayDataPayload(width, data)
	})
}

func offsets(targets []string, resolve func(string) (int32, error)) ([]int32, error) {
	out := make([]int32, len(targets))
	for i, t := range targets {
		off, err := resolve(t)
		if err != nil {
			return nil, err
		}
		out[i] = off
	}
	return out, nil
}

func (b *Builder) payloadOp(op Opcode, reg int, label string, build func(func(string) (int32, error)) ([]uint16, error)) {
	f := fixup{pc: b.PC(), op: op, a: reg, target: label}
	units, err := b.encodeBranch(f, 0)
	b.emit(units, err)
	if err != nil {
		return
	}
	b.fixups = append(b.fixups, f)
	b.payloads = append(b.payloads, &payloadRef{label: label, pc: f.pc, build: build})
}

// Try covers [start, end) with handlers and an optional catch-all label.
func (b *Builder) Try(start, end string, catches []Catch, catchAll string) {
	b.tries = append(b.tries, tryRange{start: start, end: end, catches: catches, catchAll: catchAll})
}

func (b *Builder) addr(label string) (uint32, error) {
	pc, ok := b.labels[label]
	if !ok {
		return 0, errors.Errorf("undefined label %q", label)
	}
	return pc, nil
}

// Build appends pending payloads after the code, patches branch offsets
// and returns the code item.
func (b *Builder) Build(registers, ins, outs int) (*CodeItem, error) {
	for _, p := range b.payloads {
		if b.err != nil {
			break
		}
		if len(b.insns)%2 != 0 {
			b.insns = append(b.insns, uint16(OpNop))
		}
		b.Label(p.label)
		resolve := func(l string) (int32, error) {
			pc, err := b.addr(l)
			return int32(pc) - int32(p.pc), err
		}
		units, err := p.build(resolve)
		b.emit(units, err)
	}
	for _, f := range b.fixups {
		if b.err != nil {
			break
		}
		target, err := b.addr(f.target)
		if err != nil {
			b.fail(err)
			break
		}
		units, err := b.encodeBranch(f, int(int32(target)-int32(f.pc)))
		if err != nil {
			b.fail(errors.Wrapf(err, "branch at pc %d", f.pc))
			break
		}
		copy(b.insns[f.pc:], units)
	}
	var tries []TryItem
	for _, t := range b.tries {
		if b.err != nil {
			break
		}
		item, err := b.tryItem(t)
		b.fail(err)
		tries = append(tries, item)
	}
	if b.err != nil {
		return nil, b.err
	}
	if registers < ins {
		return nil, errors.Errorf("%d registers cannot hold %d ins", registers, ins)
	}
	return &CodeItem{
		RegistersSize: uint16(registers),
		InsSize:       uint16(ins),
		OutsSize:      uint16(outs),
		Insns:         b.insns,
		Tries:         tries,
	}, nil
}

func (b *Builder) tryItem(t tryRange) (TryItem, error) {
	start, err := b.addr(t.start)
	if err != nil {
		return TryItem{}, err
	}
	end, err := b.addr(t.end)
	if err != nil {
		return TryItem{}, err
	}
	if end <= start {
		return TryItem{}, errors.Errorf("empty try range %s..%s", t.start, t.end)
	}
	item := TryItem{StartAddr: start, InsnCount: uint16(end - start)}
	for _, c := range t.catches {
		addr, err := b.addr(c.Label)
		if err != nil {
			return TryItem{}, err
		}
		item.Handlers = append(item.Handlers, CatchHandler{TypeIdx: c.TypeIdx, Addr: addr})
	}
	if t.catchAll != "" {
		addr, err := b.addr(t.catchAll)
		if err != nil {
			return TryItem{}, err
		}
		item.HasCatchAll, item.CatchAllAddr = true, addr
	}
	return item, nil
}
