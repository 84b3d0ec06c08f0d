package asm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/dex"
)

type body struct {
	pool      *dex.Pool
	b         *dex.Builder
	registers int
	ins       int
	outs      int
	payloads  int
}

type tryKey struct{ start, end string }

type tryGroup struct {
	catches  []dex.Catch
	catchAll string
}

func assembleBody(pool *dex.Pool, m *Method, ins int) (*dex.CodeItem, error) {
	bd := &body{pool: pool, b: dex.NewBuilder(), registers: -1, ins: ins}
	for _, s := range m.Body {
		if s.Registers == nil {
			continue
		}
		if bd.registers >= 0 {
			return nil, errorAt(s.Pos, ".registers given twice")
		}
		n, err := strconv.Atoi(*s.Registers)
		if err != nil || n < 0 || n > math.MaxUint16 {
			return nil, errorAt(s.Pos, "bad register count %s", *s.Registers)
		}
		bd.registers = n
	}
	if bd.registers < 0 {
		return nil, errorAt(m.Pos, "missing .registers")
	}
	if bd.registers < ins {
		return nil, errorAt(m.Pos, "%d registers cannot hold %d argument registers", bd.registers, ins)
	}

	var order []tryKey
	tries := map[tryKey]*tryGroup{}
	for _, s := range m.Body {
		switch {
		case s.Label != nil:
			bd.b.Label(strings.TrimPrefix(*s.Label, ":"))
		case s.Catch != nil:
			c := s.Catch
			k := tryKey{strings.TrimPrefix(c.Start, ":"), strings.TrimPrefix(c.End, ":")}
			g, ok := tries[k]
			if !ok {
				g = &tryGroup{}
				tries[k] = g
				order = append(order, k)
			}
			handler := strings.TrimPrefix(c.Handler, ":")
			if c.Kind == ".catchall" {
				if c.Type != "" {
					return nil, errorAt(c.Pos, ".catchall takes no type")
				}
				g.catchAll = handler
				continue
			}
			if c.Type == "" {
				return nil, errorAt(c.Pos, ".catch needs an exception type")
			}
			g.catches = append(g.catches, dex.Catch{TypeIdx: pool.TypeIndex(c.Type), Label: handler})
		case s.Insn != nil:
			if err := bd.instruction(s.Insn); err != nil {
				return nil, err
			}
		}
	}
	for _, k := range order {
		g := tries[k]
		bd.b.Try(k.start, k.end, g.catches, g.catchAll)
	}
	return bd.b.Build(bd.registers, bd.ins, bd.outs)
}

func (bd *body) instruction(in *Instruction) error {
	op, ok := dex.LookupOpcode(in.Mnemonic)
	if !ok || op.IsUnused() {
		return errorAt(in.Pos, "unknown instruction %q", in.Mnemonic)
	}
	ops := in.Operands
	want := func(n int) error {
		if len(ops) != n {
			return errorAt(in.Pos, "%s takes %d operands, got %d", op, n, len(ops))
		}
		return nil
	}
	p := &operands{bd: bd, pos: in.Pos, op: op}
	switch op.Format() {
	case dex.Format10x:
		if err := want(0); err != nil {
			return err
		}
		bd.b.Op(op, 0, 0, 0)
	case dex.Format11x:
		if err := want(1); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), 0, 0)
	case dex.Format12x, dex.Format22x, dex.Format32x:
		if err := want(2); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.reg(ops[1]), 0)
	case dex.Format23x:
		if err := want(3); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.reg(ops[1]), p.reg(ops[2]))
	case dex.Format11n, dex.Format21s, dex.Format31i:
		if err := want(2); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), int(p.constant(ops[1])), 0)
	case dex.Format21h:
		if err := want(2); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.high16(ops[1]), 0)
	case dex.Format51l:
		if err := want(2); err != nil {
			return err
		}
		bd.b.ConstWide(p.reg(ops[0]), p.constant(ops[1]))
	case dex.Format22b, dex.Format22s:
		if err := want(3); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.reg(ops[1]), int(p.integer(ops[2])))
	case dex.Format10t, dex.Format20t, dex.Format30t:
		if err := want(1); err != nil {
			return err
		}
		bd.b.Branch(op, p.label(ops[0]))
	case dex.Format21t:
		if err := want(2); err != nil {
			return err
		}
		r := p.reg(ops[0])
		bd.b.Branch(op, p.label(ops[1]), r)
	case dex.Format22t:
		if err := want(3); err != nil {
			return err
		}
		ra, rb := p.reg(ops[0]), p.reg(ops[1])
		bd.b.Branch(op, p.label(ops[2]), ra, rb)
	case dex.Format21c, dex.Format31c:
		if err := want(2); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.index(ops[1]), 0)
	case dex.Format22c:
		if err := want(3); err != nil {
			return err
		}
		bd.b.Op(op, p.reg(ops[0]), p.reg(ops[1]), p.index(ops[2]))
	case dex.Format31t:
		if err := bd.payload(p, ops); err != nil {
			return err
		}
	case dex.Format35c:
		if err := want(2); err != nil {
			return err
		}
		regs := p.regList(ops[0])
		idx := p.index(ops[1])
		if op.IsInvoke() {
			bd.outs = max(bd.outs, len(regs))
		}
		bd.b.Invoke(op, idx, regs...)
	case dex.Format3rc:
		if err := want(2); err != nil {
			return err
		}
		first, count := p.regRange(ops[0])
		idx := p.index(ops[1])
		if op.IsInvoke() {
			bd.outs = max(bd.outs, count)
		}
		bd.b.InvokeRange(op, idx, first, count)
	default:
		return errorAt(in.Pos, "%s: unsupported format %s", op, op.Format())
	}
	return p.err
}

func (bd *body) payloadLabel() string {
	bd.payloads++
	// '#' cannot start a source label.
	return fmt.Sprintf("#payload%d", bd.payloads)
}

func (bd *body) payload(p *operands, ops []*Operand) error {
	switch p.op {
	case dex.OpPackedSwitch:
		if len(ops) != 3 {
			return errorAt(p.pos, "packed-switch takes a register, the first key and {targets}")
		}
		r, first := p.reg(ops[0]), p.integer(ops[1])
		var targets []string
		for _, it := range p.list(ops[2]) {
			if it.Label == nil {
				return errorAt(p.pos, "packed-switch targets must be labels")
			}
			targets = append(targets, strings.TrimPrefix(*it.Label, ":"))
		}
		bd.b.PackedSwitch(r, bd.payloadLabel(), int32(first), targets)
	case dex.OpSparseSwitch:
		if len(ops) != 2 {
			return errorAt(p.pos, "sparse-switch takes a register and {key -> target, ...}")
		}
		r := p.reg(ops[0])
		var keys []int32
		var targets []string
		for _, it := range p.list(ops[1]) {
			if it.Key == nil || it.Target == nil {
				return errorAt(p.pos, "sparse-switch entries are key -> label")
			}
			k, err := parseInt(*it.Key)
			if err != nil {
				return errorAt(p.pos, "%v", err)
			}
			keys = append(keys, int32(k))
			targets = append(targets, strings.TrimPrefix(*it.Target, ":"))
		}
		bd.b.SparseSwitch(r, bd.payloadLabel(), keys, targets)
	case dex.OpFillArrayData:
		if len(ops) != 3 {
			return errorAt(p.pos, "fill-array-data takes a register, the element width and {values}")
		}
		r, width := p.reg(ops[0]), int(p.integer(ops[1]))
		if width != 1 && width != 2 && width != 4 && width != 8 {
			return errorAt(p.pos, "bad element width %d", width)
		}
		var data []byte
		for _, it := range p.list(ops[2]) {
			if it.Key == nil {
				return errorAt(p.pos, "array data must be integers")
			}
			v, err := parseInt(*it.Key)
			if err != nil {
				return errorAt(p.pos, "%v", err)
			}
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			data = append(data, buf[:width]...)
		}
		bd.b.FillArrayData(r, bd.payloadLabel(), width, data)
	}
	return p.err
}

// operands decodes the operands of one instruction. The first error
// sticks; later accessors return zero values.
type operands struct {
	bd  *body
	pos lexer.Position
	op  dex.Opcode
	err error
}

func (p *operands) fail(format string, args ...any) {
	if p.err == nil {
		p.err = errorAt(p.pos, "%s: %s", p.op, fmt.Sprintf(format, args...))
	}
}

func (p *operands) register(s string) int {
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		p.fail("bad register %s", s)
		return 0
	}
	bd := p.bd
	if s[0] == 'p' {
		if n >= bd.ins {
			p.fail("%s is not an argument register (%d ins)", s, bd.ins)
			return 0
		}
		n += bd.registers - bd.ins
	}
	if n >= bd.registers {
		p.fail("%s out of range (%d registers)", s, bd.registers)
		return 0
	}
	return n
}

func (p *operands) reg(o *Operand) int {
	if o.Register == nil {
		p.fail("want a register")
		return 0
	}
	return p.register(*o.Register)
}

func (p *operands) list(o *Operand) []*Item {
	if o.List == nil {
		p.fail("want a {list}")
		return nil
	}
	return o.List.Items
}

func (p *operands) regList(o *Operand) []int {
	items := p.list(o)
	if o.List != nil && o.List.RangeEnd != nil {
		p.fail("%s takes an explicit register list", p.op)
		return nil
	}
	regs := make([]int, 0, len(items))
	for _, it := range items {
		if it.Register == nil {
			p.fail("want registers in {list}")
			return nil
		}
		regs = append(regs, p.register(*it.Register))
	}
	return regs
}

func (p *operands) regRange(o *Operand) (first, count int) {
	items := p.list(o)
	if o.List == nil {
		return 0, 0
	}
	if len(items) == 0 && o.List.RangeEnd == nil {
		return 0, 0
	}
	if len(items) != 1 || items[0].Register == nil {
		p.fail("want {vN .. vM}")
		return 0, 0
	}
	first = p.register(*items[0].Register)
	last := first
	if o.List.RangeEnd != nil {
		last = p.register(*o.List.RangeEnd)
	}
	if last < first {
		p.fail("empty register range")
		return 0, 0
	}
	return first, last - first + 1
}

func (p *operands) label(o *Operand) string {
	if o.Label == nil {
		p.fail("want a label")
		return ""
	}
	return strings.TrimPrefix(*o.Label, ":")
}

func (p *operands) integer(o *Operand) int64 {
	if o.Int == nil {
		p.fail("want an integer")
		return 0
	}
	v, err := parseInt(*o.Int)
	if err != nil {
		p.fail("%v", err)
	}
	return v
}

func isWideConst(op dex.Opcode) bool {
	switch op {
	case dex.OpConstWide16, dex.OpConstWide32, dex.OpConstWide, dex.OpConstWideHigh16:
		return true
	}
	return false
}

// constant returns the literal of a const instruction. Float literals
// become IEEE bits of the instruction's width; 32-bit patterns given in
// hex are accepted for narrow constants.
func (p *operands) constant(o *Operand) int64 {
	wide := isWideConst(p.op)
	if o.Float != nil {
		f, err := parseFloat(*o.Float)
		if err != nil {
			p.fail("%v", err)
			return 0
		}
		if wide {
			return int64(doubleBits(f))
		}
		return int64(int32(floatBits(f)))
	}
	v := p.integer(o)
	if !wide && v > math.MaxInt32 && v <= math.MaxUint32 {
		v = int64(int32(uint32(v)))
	}
	return v
}

// high16 returns the encoded operand of const/high16 and
// const-wide/high16, whose literal is the full value with only the top 16
// bits set.
func (p *operands) high16(o *Operand) int {
	v := p.constant(o)
	if isWideConst(p.op) {
		u := uint64(v)
		if u&(1<<48-1) != 0 {
			p.fail("%#x has bits below the top 16", u)
			return 0
		}
		return int(u >> 48)
	}
	u := uint32(v)
	if u&0xffff != 0 {
		p.fail("%#x has bits below the top 16", u)
		return 0
	}
	return int(u >> 16)
}

func (p *operands) index(o *Operand) int {
	pool := p.bd.pool
	switch p.op.IndexType() {
	case dex.IndexString:
		if o.String == nil {
			p.fail("want a string")
			return 0
		}
		s, err := unquote(p.pos, *o.String)
		if err != nil {
			p.fail("%v", err)
			return 0
		}
		return int(pool.StringIndex(s))
	case dex.IndexClass:
		if o.Type == nil {
			p.fail("want a type")
			return 0
		}
		return int(pool.TypeIndex(*o.Type))
	case dex.IndexField:
		if o.Field == nil {
			p.fail("want a field reference")
			return 0
		}
		id, err := parseFieldRef(*o.Field)
		if err != nil {
			p.fail("%v", err)
			return 0
		}
		return int(pool.FieldIndex(id))
	case dex.IndexMethod:
		if o.Method == nil {
			p.fail("want a method reference")
			return 0
		}
		id, err := parseMethodRef(*o.Method)
		if err != nil {
			p.fail("%v", err)
			return 0
		}
		return int(pool.MethodIndex(id))
	case dex.IndexFieldOffset, dex.IndexVtableOffset:
		return int(p.integer(o))
	}
	p.fail("takes no index")
	return 0
}

func parseFieldRef(s string) (dex.FieldID, error) {
	class, rest, _ := strings.Cut(s, "->")
	name, typ, _ := strings.Cut(rest, ":")
	if !dex.ValidTypeDescriptor(typ) {
		return dex.FieldID{}, errors.Errorf("bad field type in %s", s)
	}
	return dex.FieldID{Class: class, Name: name, Type: typ}, nil
}

func parseMethodRef(s string) (dex.MethodID, error) {
	class, rest, _ := strings.Cut(s, "->")
	i := strings.IndexByte(rest, '(')
	name, desc := rest[:i], rest[i:]
	if _, _, err := dex.ParseMethodDescriptor(desc); err != nil {
		return dex.MethodID{}, errors.Wrapf(err, "method reference %s", s)
	}
	return dex.MethodID{Class: class, Name: name, Descriptor: desc}, nil
}

func parseInt(s string) (int64, error) {
	s = strings.TrimRight(s, "lL")
	v, err := strconv.ParseInt(s, 0, 64)
	if err == nil {
		return v, nil
	}
	if u, uerr := strconv.ParseUint(s, 0, 64); uerr == nil {
		return int64(u), nil
	}
	return 0, errors.Errorf("bad integer %s", s)
}

func parseFloat(s string) (float64, error) {
	neg := strings.HasPrefix(s, "-")
	switch strings.TrimPrefix(s, "-") {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		if neg {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	}
	f, err := strconv.ParseFloat(strings.TrimRight(s, "fFdD"), 64)
	if err != nil {
		return 0, errors.Errorf("bad float %s", s)
	}
	return f, nil
}

func floatBits(f float64) uint32  { return math.Float32bits(float32(f)) }
func doubleBits(f float64) uint64 { return math.Float64bits(f) }
