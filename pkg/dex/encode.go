package dex

import "github.com/pkg/errors"

func checkRange(what string, v, lo, hi int) error {
	if v < lo || v > hi {
		return errors.Errorf("%s %d out of range [%d, %d]", what, v, lo, hi)
	}
	return nil
}

// Encode assembles a fixed-operand instruction. Operands are given in
// VRegA, VRegB, VRegC order and use the same sign conventions the decoder
// returns. 35c, 3rc and 51l have dedicated encoders.
func Encode(op Opcode, a, b, c int) ([]uint16, error) {
	if op.IsUnused() {
		return nil, errors.Errorf("encoding unused opcode 0x%02x", uint8(op))
	}
	u := uint16(op)
	var err error
	check := func(what string, v, lo, hi int) {
		if err == nil {
			err = checkRange(what, v, lo, hi)
		}
	}
	var out []uint16
	switch f := op.Format(); f {
	case Format10x:
		out = []uint16{u}
	case Format12x:
		check("vA", a, 0, 15)
		check("vB", b, 0, 15)
		out = []uint16{u | uint16(a)<<8 | uint16(b)<<12}
	case Format11n:
		check("vA", a, 0, 15)
		check("literal", b, -8, 7)
		out = []uint16{u | uint16(a)<<8 | uint16(b&0xf)<<12}
	case Format11x:
		check("vA", a, 0, 255)
		out = []uint16{u | uint16(a)<<8}
	case Format10t:
		check("offset", a, -128, 127)
		out = []uint16{u | uint16(uint8(int8(a)))<<8}
	case Format20t:
		check("offset", a, -32768, 32767)
		out = []uint16{u, uint16(int16(a))}
	case Format22x:
		check("vA", a, 0, 255)
		check("vB", b, 0, 65535)
		out = []uint16{u | uint16(a)<<8, uint16(b)}
	case Format21t, Format21s, Format21h:
		check("vA", a, 0, 255)
		check("literal", b, -32768, 65535)
		out = []uint16{u | uint16(a)<<8, uint16(b)}
	case Format21c:
		check("vA", a, 0, 255)
		check("index", b, 0, 65535)
		out = []uint16{u | uint16(a)<<8, uint16(b)}
	case Format23x:
		check("vA", a, 0, 255)
		check("vB", b, 0, 255)
		check("vC", c, 0, 255)
		out = []uint16{u | uint16(a)<<8, uint16(b) | uint16(c)<<8}
	case Format22b:
		check("vA", a, 0, 255)
		check("vB", b, 0, 255)
		check("literal", c, -128, 127)
		out = []uint16{u | uint16(a)<<8, uint16(b) | uint16(uint8(int8(c)))<<8}
	case Format22t, Format22s:
		check("vA", a, 0, 15)
		check("vB", b, 0, 15)
		check("literal", c, -32768, 32767)
		out = []uint16{u | uint16(a)<<8 | uint16(b)<<12, uint16(int16(c))}
	case Format22c:
		check("vA", a, 0, 15)
		check("vB", b, 0, 15)
		check("index", c, 0, 65535)
		out = []uint16{u | uint16(a)<<8 | uint16(b)<<12, uint16(c)}
	case Format32x:
		check("vA", a, 0, 65535)
		check("vB", b, 0, 65535)
		out = []uint16{u, uint16(a), uint16(b)}
	case Format30t:
		out = []uint16{u, uint16(uint32(a)), uint16(uint32(a) >> 16)}
	case Format31t, Format31i, Format31c:
		check("vA", a, 0, 255)
		out = []uint16{u | uint16(a)<<8, uint16(uint32(b)), uint16(uint32(b) >> 16)}
	default:
		return nil, errors.Errorf("%s: format %s needs a dedicated encoder", op, f)
	}
	if err != nil {
		return nil, errors.Wrap(err, op.String())
	}
	return out, nil
}

// Encode35c assembles an instruction with an explicit argument list.
func Encode35c(op Opcode, index int, regs []int) ([]uint16, error) {
	if op.Format() != Format35c {
		return nil, errors.Errorf("%s is not a 35c instruction", op)
	}
	if len(regs) > 5 {
		return nil, errors.Errorf("%s: %d argument registers, at most 5 allowed", op, len(regs))
	}
	if err := checkRange("index", index, 0, 65535); err != nil {
		return nil, errors.Wrap(err, op.String())
	}
	var r [5]uint16
	for i, v := range regs {
		if err := checkRange("argument register", v, 0, 15); err != nil {
			return nil, errors.Wrap(err, op.String())
		}
		r[i] = uint16(v)
	}
	return []uint16{
		uint16(op) | r[4]<<8 | uint16(len(regs))<<12,
		uint16(index),
		r[0] | r[1]<<4 | r[2]<<8 | r[3]<<12,
	}, nil
}

// Encode3rc assembles a register-range instruction.
func Encode3rc(op Opcode, index, first, count int) ([]uint16, error) {
	if op.Format() != Format3rc {
		return nil, errors.Errorf("%s is not a 3rc instruction", op)
	}
	for _, c := range []struct {
		what      string
		v, lo, hi int
	}{
		{"count", count, 0, 255},
		{"index", index, 0, 65535},
		{"first register", first, 0, 65535},
	} {
		if err := checkRange(c.what, c.v, c.lo, c.hi); err != nil {
			return nil, errors.Wrap(err, op.String())
		}
	}
	return []uint16{uint16(op) | uint16(count)<<8, uint16(index), uint16(first)}, nil
}

// Encode51l assembles const-wide.
func Encode51l(op Opcode, a int, lit int64) ([]uint16, error) {
	if op.Format() != Format51l {
		return nil, errors.Errorf("%s is not a 51l instruction", op)
	}
	if err := checkRange("vA", a, 0, 255); err != nil {
		return nil, errors.Wrap(err, op.String())
	}
	v := uint64(lit)
	return []uint16{
		uint16(op) | uint16(a)<<8,
		uint16(v), uint16(v >> 16), uint16(v >> 32), uint16(v >> 48),
	}, nil
}

// PackedSwitchPayload builds a packed-switch table. Targets are relative
// to the switch instruction.
func PackedSwitchPayload(firstKey int32, targets []int32) []uint16 {
	out := []uint16{PackedSwitchSignature, uint16(len(targets)), uint16(uint32(firstKey)), uint16(uint32(firstKey) >> 16)}
	for _, t := range targets {
		out = append(out, uint16(uint32(t)), uint16(uint32(t)>>16))
	}
	return out
}

// SparseSwitchPayload builds a sparse-switch table; keys must be sorted.
func SparseSwitchPayload(keys, targets []int32) ([]uint16, error) {
	if len(keys) != len(targets) {
		return nil, errors.Errorf("sparse-switch: %d keys but %d targets", len(keys), len(targets))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			return nil, errors.Errorf("sparse-switch: keys not strictly ascending at %d", i)
		}
	}
	out := []uint16{SparseSwitchSignature, uint16(len(keys))}
	for _, k := range keys {
		out = append(out, uint16(uint32(k)), uint16(uint32(k)>>16))
	}
	for _, t := range targets {
		out = append(out, uint16(uint32(t)), uint16(uint32(t)>>16))
	}
	return out, nil
}

// ArrayDataPayload builds a fill-array-data table from little-endian
// element bytes.
func ArrayDataPayload(width int, data []byte) ([]uint16, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, errors.Errorf("array-data: invalid element width %d", width)
	}
	if len(data)%width != 0 {
		return nil, errors.Errorf("array-data: %d bytes is not a multiple of width %d", len(data), width)
	}
	count := uint32(len(data) / width)
	out := []uint16{ArrayDataSignature, uint16(width), uint16(count), uint16(count >> 16)}
	for i := 0; i < len(data); i += 2 {
		lo := uint16(data[i])
		var hi uint16
		if i+1 < len(data) {
			hi = uint16(data[i+1])
		}
		out = append(out, lo|hi<<8)
	}
	return out, nil
}
