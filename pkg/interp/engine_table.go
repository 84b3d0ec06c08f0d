package interp

import (
	"github.com/daimatz/godex/pkg/dex"
)

// altHandlers wraps every handler with the dex pc event. The table driver
// switches to it while dex pc listeners are present.
var altHandlers [256]handler

func init() {
	for i := range altHandlers {
		altHandlers[i] = func(st *state, inst dex.Instruction) {
			st.dexPCMoved()
			handlers[i](st, inst)
		}
	}
}

// executeTable is the table-dispatch driver.
func executeTable(st *state) {
	for {
		inst := st.fetch()
		table := &handlers
		if st.instrumented {
			table = &altHandlers
		}
		table[inst.Opcode()](st, inst)
		if st.advance() {
			return
		}
	}
}
