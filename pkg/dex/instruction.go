package dex

import (
	"fmt"
	"strings"
)

// Instruction is a view of the code units starting at one dex pc.
type Instruction []uint16

// At returns the instruction that begins at pc.
func At(insns []uint16, pc uint32) Instruction {
	return Instruction(insns[pc:])
}

// Opcode returns the opcode of the instruction.
func (in Instruction) Opcode() Opcode {
	return Opcode(in[0] & 0xff)
}

// Format returns the operand layout of the instruction.
func (in Instruction) Format() Format {
	return in.Opcode().Format()
}

// SizeInCodeUnits returns the width of the instruction, including the
// payload for the pseudo-instructions that carry one.
func (in Instruction) SizeInCodeUnits() int {
	if in.Opcode() == OpNop {
		switch in[0] {
		case PackedSwitchSignature:
			return 4 + int(in[1])*2
		case SparseSwitchSignature:
			return 2 + int(in[1])*4
		case ArrayDataSignature:
			width := int(in[1])
			count := int(uint32(in[2]) | uint32(in[3])<<16)
			return 4 + (width*count+1)/2
		}
	}
	return in.Format().Size()
}

// Next returns the instruction following this one.
func (in Instruction) Next() Instruction {
	return in[in.SizeInCodeUnits():]
}

func (in Instruction) inst8() int { return int(in[0] >> 8) }
func (in Instruction) instA() int { return int((in[0] >> 8) & 0x0f) }
func (in Instruction) instB() int { return int(in[0] >> 12) }
func (in Instruction) fetch32(i int) uint32 {
	return uint32(in[i]) | uint32(in[i+1])<<16
}

// VRegA returns the first operand. Branch formats yield the signed offset.
func (in Instruction) VRegA() int {
	switch in.Format() {
	case Format10x:
		return 0
	case Format12x, Format11n:
		return in.instA()
	case Format11x, Format21t, Format21s, Format21h, Format21c, Format23x,
		Format22b, Format31t, Format31i, Format31c, Format3rc, Format51l, Format22x:
		return in.inst8()
	case Format10t:
		return int(int8(in[0] >> 8))
	case Format20t:
		return int(int16(in[1]))
	case Format22t, Format22s, Format22c:
		return in.instA()
	case Format32x:
		return int(in[1])
	case Format30t:
		return int(int32(in.fetch32(1)))
	case Format35c:
		return in.instB()
	}
	panic(fmt.Sprintf("VRegA: unexpected format %s", in.Format()))
}

// VRegB returns the second operand. Immediate formats yield the sign
// extended literal, index formats the pool index.
func (in Instruction) VRegB() int {
	switch in.Format() {
	case Format12x, Format22t, Format22s, Format22c:
		return in.instB()
	case Format11n:
		return int(int8(in[0]>>8) >> 4)
	case Format22x, Format21c, Format35c, Format3rc:
		return int(in[1])
	case Format21t, Format21s, Format21h:
		return int(int16(in[1]))
	case Format23x, Format22b:
		return int(in[1] & 0xff)
	case Format32x:
		return int(in[2])
	case Format31t, Format31i:
		return int(int32(in.fetch32(1)))
	case Format31c:
		return int(in.fetch32(1))
	case Format51l:
		return int(int32(in.fetch32(1)))
	}
	panic(fmt.Sprintf("VRegB: unexpected format %s", in.Format()))
}

// WideVRegB returns the 64-bit literal of a 51l instruction.
func (in Instruction) WideVRegB() int64 {
	return int64(uint64(in.fetch32(1)) | uint64(in.fetch32(3))<<32)
}

// VRegC returns the third operand.
func (in Instruction) VRegC() int {
	switch in.Format() {
	case Format23x:
		return int(in[1] >> 8)
	case Format22b:
		return int(int8(in[1] >> 8))
	case Format22t, Format22s:
		return int(int16(in[1]))
	case Format22c:
		return int(in[1])
	case Format35c:
		return int(in[2] & 0x0f)
	case Format3rc:
		return int(in[2])
	}
	panic(fmt.Sprintf("VRegC: unexpected format %s", in.Format()))
}

// VarArgs fills regs with the argument registers of a 35c instruction and
// returns the argument count.
func (in Instruction) VarArgs(regs *[5]int) int {
	count := in.instB()
	regs[0] = int(in[2] & 0x0f)
	regs[1] = int((in[2] >> 4) & 0x0f)
	regs[2] = int((in[2] >> 8) & 0x0f)
	regs[3] = int(in[2] >> 12)
	regs[4] = in.instA()
	return count
}

// Args returns the argument registers of a 35c or 3rc instruction.
func (in Instruction) Args() []int {
	if in.Format() == Format3rc {
		n, first := in.VRegA(), in.VRegC()
		regs := make([]int, n)
		for i := range regs {
			regs[i] = first + i
		}
		return regs
	}
	var regs [5]int
	n := in.VarArgs(&regs)
	return append([]int(nil), regs[:n]...)
}

// Dump renders the instruction in assembler syntax.
func (in Instruction) Dump() string {
	op := in.Opcode()
	name := op.String()
	if op == OpNop && in[0] != 0 {
		switch in[0] {
		case PackedSwitchSignature:
			return fmt.Sprintf("packed-switch-payload %d entries", in[1])
		case SparseSwitchSignature:
			return fmt.Sprintf("sparse-switch-payload %d entries", in[1])
		case ArrayDataSignature:
			return fmt.Sprintf("array-data-payload width=%d", in[1])
		}
	}
	switch in.Format() {
	case Format10x:
		return name
	case Format12x:
		return fmt.Sprintf("%s v%d, v%d", name, in.VRegA(), in.VRegB())
	case Format11n:
		return fmt.Sprintf("%s v%d, #%d", name, in.VRegA(), in.VRegB())
	case Format11x:
		return fmt.Sprintf("%s v%d", name, in.VRegA())
	case Format10t, Format20t, Format30t:
		return fmt.Sprintf("%s %+d", name, in.VRegA())
	case Format22x, Format32x:
		return fmt.Sprintf("%s v%d, v%d", name, in.VRegA(), in.VRegB())
	case Format21t, Format31t:
		return fmt.Sprintf("%s v%d, %+d", name, in.VRegA(), in.VRegB())
	case Format21s, Format31i:
		return fmt.Sprintf("%s v%d, #%d", name, in.VRegA(), in.VRegB())
	case Format21h:
		return fmt.Sprintf("%s v%d, #%d << 16", name, in.VRegA(), in.VRegB())
	case Format21c, Format31c:
		return fmt.Sprintf("%s v%d, %s@%d", name, in.VRegA(), indexPrefix(op), in.VRegB())
	case Format23x:
		return fmt.Sprintf("%s v%d, v%d, v%d", name, in.VRegA(), in.VRegB(), in.VRegC())
	case Format22b, Format22s:
		return fmt.Sprintf("%s v%d, v%d, #%d", name, in.VRegA(), in.VRegB(), in.VRegC())
	case Format22t:
		return fmt.Sprintf("%s v%d, v%d, %+d", name, in.VRegA(), in.VRegB(), in.VRegC())
	case Format22c:
		return fmt.Sprintf("%s v%d, v%d, %s@%d", name, in.VRegA(), in.VRegB(), indexPrefix(op), in.VRegC())
	case Format35c:
		regs := in.Args()
		parts := make([]string, len(regs))
		for i, r := range regs {
			parts[i] = fmt.Sprintf("v%d", r)
		}
		return fmt.Sprintf("%s {%s}, %s@%d", name, strings.Join(parts, ", "), indexPrefix(op), in.VRegB())
	case Format3rc:
		first := in.VRegC()
		return fmt.Sprintf("%s {v%d .. v%d}, %s@%d", name, first, first+in.VRegA()-1, indexPrefix(op), in.VRegB())
	case Format51l:
		return fmt.Sprintf("%s v%d, #%d", name, in.VRegA(), in.WideVRegB())
	}
	return name
}

func indexPrefix(op Opcode) string {
	switch op.IndexType() {
	case IndexString:
		return "string"
	case IndexClass:
		return "type"
	case IndexField:
		return "field"
	case IndexMethod:
		return "method"
	case IndexFieldOffset:
		return "offset"
	case IndexVtableOffset:
		return "vtable"
	}
	return "index"
}
