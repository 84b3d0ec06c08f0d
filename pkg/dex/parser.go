package dex

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ParseCodeItem decodes a little-endian code_item as laid out in a dex
// file: the fixed header, the instruction units, and the try and catch
// handler tables when present.
func ParseCodeItem(data []byte) (*CodeItem, error) {
	r := bytes.NewReader(data)
	var hdr struct {
		Registers, Ins, Outs, Tries uint16
		DebugInfoOff                uint32
		InsnsSize                   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "reading code_item header")
	}
	if int64(hdr.InsnsSize)*2 > int64(r.Len()) {
		return nil, errors.Errorf("insns_size %d exceeds remaining %d bytes", hdr.InsnsSize, r.Len())
	}
	c := &CodeItem{
		RegistersSize: hdr.Registers,
		InsSize:       hdr.Ins,
		OutsSize:      hdr.Outs,
		Insns:         make([]uint16, hdr.InsnsSize),
	}
	if c.InsSize > c.RegistersSize {
		return nil, errors.Errorf("ins_size %d exceeds registers_size %d", c.InsSize, c.RegistersSize)
	}
	if err := binary.Read(r, binary.LittleEndian, c.Insns); err != nil {
		return nil, errors.Wrap(err, "reading insns")
	}
	if hdr.Tries == 0 {
		return c, nil
	}
	if hdr.InsnsSize%2 != 0 {
		if _, err := r.Seek(2, io.SeekCurrent); err != nil {
			return nil, errors.Wrap(err, "skipping padding")
		}
	}

	type rawTry struct {
		StartAddr  uint32
		InsnCount  uint16
		HandlerOff uint16
	}
	raws := make([]rawTry, hdr.Tries)
	if err := binary.Read(r, binary.LittleEndian, raws); err != nil {
		return nil, errors.Wrap(err, "reading try items")
	}
	listStart := len(data) - r.Len()
	handlers := data[listStart:]

	c.Tries = make([]TryItem, len(raws))
	for i, rt := range raws {
		if uint64(rt.StartAddr)+uint64(rt.InsnCount) > uint64(hdr.InsnsSize) {
			return nil, errors.Errorf("try item %d covers [%d, %d) beyond insns", i, rt.StartAddr, rt.StartAddr+uint32(rt.InsnCount))
		}
		t := TryItem{StartAddr: rt.StartAddr, InsnCount: rt.InsnCount}
		if err := parseCatchHandler(handlers, int(rt.HandlerOff), &t); err != nil {
			return nil, errors.Wrapf(err, "try item %d", i)
		}
		c.Tries[i] = t
	}
	return c, nil
}

func parseCatchHandler(list []byte, off int, t *TryItem) error {
	if off >= len(list) {
		return errors.Errorf("handler offset %d out of range", off)
	}
	p := list[off:]
	size, n, err := readSLEB128(p)
	if err != nil {
		return errors.Wrap(err, "reading handler size")
	}
	p = p[n:]
	count := size
	if count < 0 {
		count = -count
	}
	for j := int32(0); j < count; j++ {
		typeIdx, n, err := readULEB128(p)
		if err != nil {
			return errors.Wrapf(err, "reading handler %d type", j)
		}
		p = p[n:]
		addr, n, err := readULEB128(p)
		if err != nil {
			return errors.Wrapf(err, "reading handler %d address", j)
		}
		p = p[n:]
		t.Handlers = append(t.Handlers, CatchHandler{TypeIdx: typeIdx, Addr: addr})
	}
	if size <= 0 {
		addr, _, err := readULEB128(p)
		if err != nil {
			return errors.Wrap(err, "reading catch-all address")
		}
		t.HasCatchAll = true
		t.CatchAllAddr = addr
	}
	return nil
}

// MarshalBinary encodes the code item in the layout ParseCodeItem reads.
func (c *CodeItem) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	hdr := []any{
		c.RegistersSize, c.InsSize, c.OutsSize, uint16(len(c.Tries)),
		uint32(0), uint32(len(c.Insns)), c.Insns,
	}
	for _, v := range hdr {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "writing code_item")
		}
	}
	if len(c.Tries) == 0 {
		return buf.Bytes(), nil
	}
	if len(c.Insns)%2 != 0 {
		buf.Write([]byte{0, 0})
	}

	var list []byte
	list = appendULEB128(list, uint32(len(c.Tries)))
	offsets := make([]uint16, len(c.Tries))
	for i, t := range c.Tries {
		if len(list) > 0xffff {
			return nil, errors.New("catch handler list too large")
		}
		offsets[i] = uint16(len(list))
		size := int32(len(t.Handlers))
		if t.HasCatchAll {
			size = -size
		}
		list = appendSLEB128(list, size)
		for _, h := range t.Handlers {
			list = appendULEB128(list, h.TypeIdx)
			list = appendULEB128(list, h.Addr)
		}
		if t.HasCatchAll {
			list = appendULEB128(list, t.CatchAllAddr)
		}
	}
	for i, t := range c.Tries {
		for _, v := range []any{t.StartAddr, t.InsnCount, offsets[i]} {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, errors.Wrap(err, "writing try item")
			}
		}
	}
	buf.Write(list)
	return buf.Bytes(), nil
}

func readULEB128(p []byte) (uint32, int, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		if i >= len(p) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := p[i]
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	return 0, 0, errors.New("uleb128 longer than 5 bytes")
}

func readSLEB128(p []byte) (int32, int, error) {
	var result int32
	var shift uint
	for i := 0; i < 5; i++ {
		if i >= len(p) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := p[i]
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, errors.New("sleb128 longer than 5 bytes")
}

func appendULEB128(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendSLEB128(b []byte, v int32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
