package dex

// CatchHandler maps an exception type to a handler address.
type CatchHandler struct {
	TypeIdx uint32
	Addr    uint32
}

// TryItem covers [StartAddr, StartAddr+InsnCount) of a method's code.
type TryItem struct {
	StartAddr    uint32
	InsnCount    uint16
	Handlers     []CatchHandler
	HasCatchAll  bool
	CatchAllAddr uint32
}

// Covers reports whether the try range contains pc.
func (t *TryItem) Covers(pc uint32) bool {
	return pc >= t.StartAddr && pc < t.StartAddr+uint32(t.InsnCount)
}

// CodeItem is the body of a method.
type CodeItem struct {
	RegistersSize uint16
	InsSize       uint16
	OutsSize      uint16
	Insns         []uint16
	Tries         []TryItem
}

// FindTryItem returns the innermost try item covering pc, or nil.
// Try items are stored outermost last, so the first match wins.
func (c *CodeItem) FindTryItem(pc uint32) *TryItem {
	for i := range c.Tries {
		if c.Tries[i].Covers(pc) {
			return &c.Tries[i]
		}
	}
	return nil
}

// Instruction returns the instruction at pc.
func (c *CodeItem) Instruction(pc uint32) Instruction {
	return At(c.Insns, pc)
}

// Walk calls fn for every instruction, skipping payload pseudo-instructions.
func (c *CodeItem) Walk(fn func(pc uint32, in Instruction) bool) {
	for pc := uint32(0); pc < uint32(len(c.Insns)); {
		in := c.Instruction(pc)
		if in.Opcode() != OpNop || in[0] == 0 {
			if !fn(pc, in) {
				return
			}
		}
		pc += uint32(in.SizeInCodeUnits())
	}
}
