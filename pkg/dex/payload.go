package dex

import (
	"encoding/binary"
	"sort"
)

// Payload signatures occupy the first code unit of a pseudo-instruction.
const (
	PackedSwitchSignature uint16 = 0x0100
	SparseSwitchSignature uint16 = 0x0200
	ArrayDataSignature    uint16 = 0x0300
)

// SwitchFallThrough is the branch displacement taken when no switch case
// matches: the width of the switch instruction itself.
const SwitchFallThrough int32 = 3

func payloadInt(p []uint16, i int) int32 {
	return int32(uint32(p[i]) | uint32(p[i+1])<<16)
}

// PackedSwitch returns the branch displacement selected by v.
func PackedSwitch(payload []uint16, v int32) int32 {
	size := int(payload[1])
	firstKey := payloadInt(payload, 2)
	index := int64(v) - int64(firstKey)
	if index < 0 || index >= int64(size) {
		return SwitchFallThrough
	}
	return payloadInt(payload, 4+int(index)*2)
}

// SparseSwitch returns the branch displacement selected by v using a
// binary search over the sorted keys.
func SparseSwitch(payload []uint16, v int32) int32 {
	size := int(payload[1])
	keys := 2
	entries := keys + size*2
	i := sort.Search(size, func(i int) bool {
		return payloadInt(payload, keys+i*2) >= v
	})
	if i < size && payloadInt(payload, keys+i*2) == v {
		return payloadInt(payload, entries+i*2)
	}
	return SwitchFallThrough
}

// ArrayData is a decoded fill-array-data table.
type ArrayData struct {
	ElementWidth int
	Count        int
	Data         []byte
}

// DecodeArrayData decodes a fill-array-data payload.
func DecodeArrayData(payload []uint16) ArrayData {
	width := int(payload[1])
	count := int(uint32(payload[2]) | uint32(payload[3])<<16)
	raw := make([]byte, 0, width*count+1)
	for _, u := range payload[4 : 4+(width*count+1)/2] {
		raw = binary.LittleEndian.AppendUint16(raw, u)
	}
	return ArrayData{ElementWidth: width, Count: count, Data: raw[:width*count]}
}

// Element returns the zero-extended element at i.
func (d ArrayData) Element(i int) uint64 {
	b := d.Data[i*d.ElementWidth:]
	switch d.ElementWidth {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}
