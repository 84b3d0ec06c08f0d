package dex

import "fmt"

// Opcode is the low byte of the first code unit of an instruction.
type Opcode uint8

// Opcodes
const (
	OpNop                     Opcode = 0x00
	OpMove                    Opcode = 0x01
	OpMoveFrom16              Opcode = 0x02
	OpMove16                  Opcode = 0x03
	OpMoveWide                Opcode = 0x04
	OpMoveWideFrom16          Opcode = 0x05
	OpMoveWide16              Opcode = 0x06
	OpMoveObject              Opcode = 0x07
	OpMoveObjectFrom16        Opcode = 0x08
	OpMoveObject16            Opcode = 0x09
	OpMoveResult              Opcode = 0x0A
	OpMoveResultWide          Opcode = 0x0B
	OpMoveResultObject        Opcode = 0x0C
	OpMoveException           Opcode = 0x0D
	OpReturnVoid              Opcode = 0x0E
	OpReturn                  Opcode = 0x0F
	OpReturnWide              Opcode = 0x10
	OpReturnObject            Opcode = 0x11
	OpConst4                  Opcode = 0x12
	OpConst16                 Opcode = 0x13
	OpConst                   Opcode = 0x14
	OpConstHigh16             Opcode = 0x15
	OpConstWide16             Opcode = 0x16
	OpConstWide32             Opcode = 0x17
	OpConstWide               Opcode = 0x18
	OpConstWideHigh16         Opcode = 0x19
	OpConstString             Opcode = 0x1A
	OpConstStringJumbo        Opcode = 0x1B
	OpConstClass              Opcode = 0x1C
	OpMonitorEnter            Opcode = 0x1D
	OpMonitorExit             Opcode = 0x1E
	OpCheckCast               Opcode = 0x1F
	OpInstanceOf              Opcode = 0x20
	OpArrayLength             Opcode = 0x21
	OpNewInstance             Opcode = 0x22
	OpNewArray                Opcode = 0x23
	OpFilledNewArray          Opcode = 0x24
	OpFilledNewArrayRange     Opcode = 0x25
	OpFillArrayData           Opcode = 0x26
	OpThrow                   Opcode = 0x27
	OpGoto                    Opcode = 0x28
	OpGoto16                  Opcode = 0x29
	OpGoto32                  Opcode = 0x2A
	OpPackedSwitch            Opcode = 0x2B
	OpSparseSwitch            Opcode = 0x2C
	OpCmplFloat               Opcode = 0x2D
	OpCmpgFloat               Opcode = 0x2E
	OpCmplDouble              Opcode = 0x2F
	OpCmpgDouble              Opcode = 0x30
	OpCmpLong                 Opcode = 0x31
	OpIfEq                    Opcode = 0x32
	OpIfNe                    Opcode = 0x33
	OpIfLt                    Opcode = 0x34
	OpIfGe                    Opcode = 0x35
	OpIfGt                    Opcode = 0x36
	OpIfLe                    Opcode = 0x37
	OpIfEqz                   Opcode = 0x38
	OpIfNez                   Opcode = 0x39
	OpIfLtz                   Opcode = 0x3A
	OpIfGez                   Opcode = 0x3B
	OpIfGtz                   Opcode = 0x3C
	OpIfLez                   Opcode = 0x3D
	OpAget                    Opcode = 0x44
	OpAgetWide                Opcode = 0x45
	OpAgetObject              Opcode = 0x46
	OpAgetBoolean             Opcode = 0x47
	OpAgetByte                Opcode = 0x48
	OpAgetChar                Opcode = 0x49
	OpAgetShort               Opcode = 0x4A
	OpAput                    Opcode = 0x4B
	OpAputWide                Opcode = 0x4C
	OpAputObject              Opcode = 0x4D
	OpAputBoolean             Opcode = 0x4E
	OpAputByte                Opcode = 0x4F
	OpAputChar                Opcode = 0x50
	OpAputShort               Opcode = 0x51
	OpIget                    Opcode = 0x52
	OpIgetWide                Opcode = 0x53
	OpIgetObject              Opcode = 0x54
	OpIgetBoolean             Opcode = 0x55
	OpIgetByte                Opcode = 0x56
	OpIgetChar                Opcode = 0x57
	OpIgetShort               Opcode = 0x58
	OpIput                    Opcode = 0x59
	OpIputWide                Opcode = 0x5A
	OpIputObject              Opcode = 0x5B
	OpIputBoolean             Opcode = 0x5C
	OpIputByte                Opcode = 0x5D
	OpIputChar                Opcode = 0x5E
	OpIputShort               Opcode = 0x5F
	OpSget                    Opcode = 0x60
	OpSgetWide                Opcode = 0x61
	OpSgetObject              Opcode = 0x62
	OpSgetBoolean             Opcode = 0x63
	OpSgetByte                Opcode = 0x64
	OpSgetChar                Opcode = 0x65
	OpSgetShort               Opcode = 0x66
	OpSput                    Opcode = 0x67
	OpSputWide                Opcode = 0x68
	OpSputObject              Opcode = 0x69
	OpSputBoolean             Opcode = 0x6A
	OpSputByte                Opcode = 0x6B
	OpSputChar                Opcode = 0x6C
	OpSputShort               Opcode = 0x6D
	OpInvokeVirtual           Opcode = 0x6E
	OpInvokeSuper             Opcode = 0x6F
	OpInvokeDirect            Opcode = 0x70
	OpInvokeStatic            Opcode = 0x71
	OpInvokeInterface         Opcode = 0x72
	OpReturnVoidNoBarrier     Opcode = 0x73
	OpInvokeVirtualRange      Opcode = 0x74
	OpInvokeSuperRange        Opcode = 0x75
	OpInvokeDirectRange       Opcode = 0x76
	OpInvokeStaticRange       Opcode = 0x77
	OpInvokeInterfaceRange    Opcode = 0x78
	OpNegInt                  Opcode = 0x7B
	OpNotInt                  Opcode = 0x7C
	OpNegLong                 Opcode = 0x7D
	OpNotLong                 Opcode = 0x7E
	OpNegFloat                Opcode = 0x7F
	OpNegDouble               Opcode = 0x80
	OpIntToLong               Opcode = 0x81
	OpIntToFloat              Opcode = 0x82
	OpIntToDouble             Opcode = 0x83
	OpLongToInt               Opcode = 0x84
	OpLongToFloat             Opcode = 0x85
	OpLongToDouble            Opcode = 0x86
	OpFloatToInt              Opcode = 0x87
	OpFloatToLong             Opcode = 0x88
	OpFloatToDouble           Opcode = 0x89
	OpDoubleToInt             Opcode = 0x8A
	OpDoubleToLong            Opcode = 0x8B
	OpDoubleToFloat           Opcode = 0x8C
	OpIntToByte               Opcode = 0x8D
	OpIntToChar               Opcode = 0x8E
	OpIntToShort              Opcode = 0x8F
	OpAddInt                  Opcode = 0x90
	OpSubInt                  Opcode = 0x91
	OpMulInt                  Opcode = 0x92
	OpDivInt                  Opcode = 0x93
	OpRemInt                  Opcode = 0x94
	OpAndInt                  Opcode = 0x95
	OpOrInt                   Opcode = 0x96
	OpXorInt                  Opcode = 0x97
	OpShlInt                  Opcode = 0x98
	OpShrInt                  Opcode = 0x99
	OpUshrInt                 Opcode = 0x9A
	OpAddLong                 Opcode = 0x9B
	OpSubLong                 Opcode = 0x9C
	OpMulLong                 Opcode = 0x9D
	OpDivLong                 Opcode = 0x9E
	OpRemLong                 Opcode = 0x9F
	OpAndLong                 Opcode = 0xA0
	OpOrLong                  Opcode = 0xA1
	OpXorLong                 Opcode = 0xA2
	OpShlLong                 Opcode = 0xA3
	OpShrLong                 Opcode = 0xA4
	OpUshrLong                Opcode = 0xA5
	OpAddFloat                Opcode = 0xA6
	OpSubFloat                Opcode = 0xA7
	OpMulFloat                Opcode = 0xA8
	OpDivFloat                Opcode = 0xA9
	OpRemFloat                Opcode = 0xAA
	OpAddDouble               Opcode = 0xAB
	OpSubDouble               Opcode = 0xAC
	OpMulDouble               Opcode = 0xAD
	OpDivDouble               Opcode = 0xAE
	OpRemDouble               Opcode = 0xAF
	OpAddInt2Addr             Opcode = 0xB0
	OpSubInt2Addr             Opcode = 0xB1
	OpMulInt2Addr             Opcode = 0xB2
	OpDivInt2Addr             Opcode = 0xB3
	OpRemInt2Addr             Opcode = 0xB4
	OpAndInt2Addr             Opcode = 0xB5
	OpOrInt2Addr              Opcode = 0xB6
	OpXorInt2Addr             Opcode = 0xB7
	OpShlInt2Addr             Opcode = 0xB8
	OpShrInt2Addr             Opcode = 0xB9
	OpUshrInt2Addr            Opcode = 0xBA
	OpAddLong2Addr            Opcode = 0xBB
	OpSubLong2Addr            Opcode = 0xBC
	OpMulLong2Addr            Opcode = 0xBD
	OpDivLong2Addr            Opcode = 0xBE
	OpRemLong2Addr            Opcode = 0xBF
	OpAndLong2Addr            Opcode = 0xC0
	OpOrLong2Addr             Opcode = 0xC1
	OpXorLong2Addr            Opcode = 0xC2
	OpShlLong2Addr            Opcode = 0xC3
	OpShrLong2Addr            Opcode = 0xC4
	OpUshrLong2Addr           Opcode = 0xC5
	OpAddFloat2Addr           Opcode = 0xC6
	OpSubFloat2Addr           Opcode = 0xC7
	OpMulFloat2Addr           Opcode = 0xC8
	OpDivFloat2Addr           Opcode = 0xC9
	OpRemFloat2Addr           Opcode = 0xCA
	OpAddDouble2Addr          Opcode = 0xCB
	OpSubDouble2Addr          Opcode = 0xCC
	OpMulDouble2Addr          Opcode = 0xCD
	OpDivDouble2Addr          Opcode = 0xCE
	OpRemDouble2Addr          Opcode = 0xCF
	OpAddIntLit16             Opcode = 0xD0
	OpRsubInt                 Opcode = 0xD1
	OpMulIntLit16             Opcode = 0xD2
	OpDivIntLit16             Opcode = 0xD3
	OpRemIntLit16             Opcode = 0xD4
	OpAndIntLit16             Opcode = 0xD5
	OpOrIntLit16              Opcode = 0xD6
	OpXorIntLit16             Opcode = 0xD7
	OpAddIntLit8              Opcode = 0xD8
	OpRsubIntLit8             Opcode = 0xD9
	OpMulIntLit8              Opcode = 0xDA
	OpDivIntLit8              Opcode = 0xDB
	OpRemIntLit8              Opcode = 0xDC
	OpAndIntLit8              Opcode = 0xDD
	OpOrIntLit8               Opcode = 0xDE
	OpXorIntLit8              Opcode = 0xDF
	OpShlIntLit8              Opcode = 0xE0
	OpShrIntLit8              Opcode = 0xE1
	OpUshrIntLit8             Opcode = 0xE2
	OpIgetQuick               Opcode = 0xE3
	OpIgetWideQuick           Opcode = 0xE4
	OpIgetObjectQuick         Opcode = 0xE5
	OpIputQuick               Opcode = 0xE6
	OpIputWideQuick           Opcode = 0xE7
	OpIputObjectQuick         Opcode = 0xE8
	OpInvokeVirtualQuick      Opcode = 0xE9
	OpInvokeVirtualRangeQuick Opcode = 0xEA
	OpIputBooleanQuick        Opcode = 0xEB
	OpIputByteQuick           Opcode = 0xEC
	OpIputCharQuick           Opcode = 0xED
	OpIputShortQuick          Opcode = 0xEE
	OpIgetBooleanQuick        Opcode = 0xEF
	OpIgetByteQuick           Opcode = 0xF0
	OpIgetCharQuick           Opcode = 0xF1
	OpIgetShortQuick          Opcode = 0xF2
)

// Format identifies the operand layout of an instruction.
type Format uint8

// Formats, named after the dex instruction format identifiers.
const (
	Format10x Format = iota
	Format12x
	Format11n
	Format11x
	Format10t
	Format20t
	Format22x
	Format21t
	Format21s
	Format21h
	Format21c
	Format23x
	Format22b
	Format22t
	Format22s
	Format22c
	Format32x
	Format30t
	Format31t
	Format31i
	Format31c
	Format35c
	Format3rc
	Format51l
)

var formatSizes = [...]int{
	Format10x: 1, Format12x: 1, Format11n: 1, Format11x: 1, Format10t: 1,
	Format20t: 2, Format22x: 2, Format21t: 2, Format21s: 2, Format21h: 2,
	Format21c: 2, Format23x: 2, Format22b: 2, Format22t: 2, Format22s: 2,
	Format22c: 2, Format32x: 3, Format30t: 3, Format31t: 3, Format31i: 3,
	Format31c: 3, Format35c: 3, Format3rc: 3, Format51l: 5,
}

var formatNames = [...]string{
	"10x", "12x", "11n", "11x", "10t", "20t", "22x", "21t", "21s", "21h", "21c",
	"23x", "22b", "22t", "22s", "22c", "32x", "30t", "31t", "31i", "31c", "35c",
	"3rc", "51l",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Size returns the instruction width in 16-bit code units.
func (f Format) Size() int {
	return formatSizes[f]
}

// Flags describe the control-flow behaviour of an opcode.
type Flags uint16

const (
	FlagContinue Flags = 1 << iota
	FlagBranch
	FlagSwitch
	FlagThrow
	FlagReturn
	FlagInvoke
	FlagUnused
)

// IndexType says what the index operand of an instruction refers to.
type IndexType uint8

const (
	IndexNone IndexType = iota
	IndexString
	IndexClass
	IndexField
	IndexMethod
	IndexFieldOffset
	IndexVtableOffset
)

type opcodeInfo struct {
	name   string
	format Format
	flags  Flags
	index  IndexType
}

const (
	fc  = FlagContinue
	fct = FlagContinue | FlagThrow
	fb  = FlagBranch
	fbc = FlagBranch | FlagContinue
	fr  = FlagReturn
	fi  = FlagContinue | FlagThrow | FlagInvoke
)

var opcodeTable = [256]opcodeInfo{
	0x00: {"nop", Format10x, fc, IndexNone},
	0x01: {"move", Format12x, fc, IndexNone},
	0x02: {"move/from16", Format22x, fc, IndexNone},
	0x03: {"move/16", Format32x, fc, IndexNone},
	0x04: {"move-wide", Format12x, fc, IndexNone},
	0x05: {"move-wide/from16", Format22x, fc, IndexNone},
	0x06: {"move-wide/16", Format32x, fc, IndexNone},
	0x07: {"move-object", Format12x, fc, IndexNone},
	0x08: {"move-object/from16", Format22x, fc, IndexNone},
	0x09: {"move-object/16", Format32x, fc, IndexNone},
	0x0A: {"move-result", Format11x, fc, IndexNone},
	0x0B: {"move-result-wide", Format11x, fc, IndexNone},
	0x0C: {"move-result-object", Format11x, fc, IndexNone},
	0x0D: {"move-exception", Format11x, fc, IndexNone},
	0x0E: {"return-void", Format10x, fr, IndexNone},
	0x0F: {"return", Format11x, fr, IndexNone},
	0x10: {"return-wide", Format11x, fr, IndexNone},
	0x11: {"return-object", Format11x, fr, IndexNone},
	0x12: {"const/4", Format11n, fc, IndexNone},
	0x13: {"const/16", Format21s, fc, IndexNone},
	0x14: {"const", Format31i, fc, IndexNone},
	0x15: {"const/high16", Format21h, fc, IndexNone},
	0x16: {"const-wide/16", Format21s, fc, IndexNone},
	0x17: {"const-wide/32", Format31i, fc, IndexNone},
	0x18: {"const-wide", Format51l, fc, IndexNone},
	0x19: {"const-wide/high16", Format21h, fc, IndexNone},
	0x1A: {"const-string", Format21c, fct, IndexString},
	0x1B: {"const-string/jumbo", Format31c, fct, IndexString},
	0x1C: {"const-class", Format21c, fct, IndexClass},
	0x1D: {"monitor-enter", Format11x, fct, IndexNone},
	0x1E: {"monitor-exit", Format11x, fct, IndexNone},
	0x1F: {"check-cast", Format21c, fct, IndexClass},
	0x20: {"instance-of", Format22c, fct, IndexClass},
	0x21: {"array-length", Format12x, fct, IndexNone},
	0x22: {"new-instance", Format21c, fct, IndexClass},
	0x23: {"new-array", Format22c, fct, IndexClass},
	0x24: {"filled-new-array", Format35c, fct, IndexClass},
	0x25: {"filled-new-array/range", Format3rc, fct, IndexClass},
	0x26: {"fill-array-data", Format31t, fct, IndexNone},
	0x27: {"throw", Format11x, FlagThrow, IndexNone},
	0x28: {"goto", Format10t, fb, IndexNone},
	0x29: {"goto/16", Format20t, fb, IndexNone},
	0x2A: {"goto/32", Format30t, fb, IndexNone},
	0x2B: {"packed-switch", Format31t, FlagContinue | FlagSwitch, IndexNone},
	0x2C: {"sparse-switch", Format31t, FlagContinue | FlagSwitch, IndexNone},
	0x2D: {"cmpl-float", Format23x, fc, IndexNone},
	0x2E: {"cmpg-float", Format23x, fc, IndexNone},
	0x2F: {"cmpl-double", Format23x, fc, IndexNone},
	0x30: {"cmpg-double", Format23x, fc, IndexNone},
	0x31: {"cmp-long", Format23x, fc, IndexNone},
	0x32: {"if-eq", Format22t, fbc, IndexNone},
	0x33: {"if-ne", Format22t, fbc, IndexNone},
	0x34: {"if-lt", Format22t, fbc, IndexNone},
	0x35: {"if-ge", Format22t, fbc, IndexNone},
	0x36: {"if-gt", Format22t, fbc, IndexNone},
	0x37: {"if-le", Format22t, fbc, IndexNone},
	0x38: {"if-eqz", Format21t, fbc, IndexNone},
	0x39: {"if-nez", Format21t, fbc, IndexNone},
	0x3A: {"if-ltz", Format21t, fbc, IndexNone},
	0x3B: {"if-gez", Format21t, fbc, IndexNone},
	0x3C: {"if-gtz", Format21t, fbc, IndexNone},
	0x3D: {"if-lez", Format21t, fbc, IndexNone},
	0x44: {"aget", Format23x, fct, IndexNone},
	0x45: {"aget-wide", Format23x, fct, IndexNone},
	0x46: {"aget-object", Format23x, fct, IndexNone},
	0x47: {"aget-boolean", Format23x, fct, IndexNone},
	0x48: {"aget-byte", Format23x, fct, IndexNone},
	0x49: {"aget-char", Format23x, fct, IndexNone},
	0x4A: {"aget-short", Format23x, fct, IndexNone},
	0x4B: {"aput", Format23x, fct, IndexNone},
	0x4C: {"aput-wide", Format23x, fct, IndexNone},
	0x4D: {"aput-object", Format23x, fct, IndexNone},
	0x4E: {"aput-boolean", Format23x, fct, IndexNone},
	0x4F: {"aput-byte", Format23x, fct, IndexNone},
	0x50: {"aput-char", Format23x, fct, IndexNone},
	0x51: {"aput-short", Format23x, fct, IndexNone},
	0x52: {"iget", Format22c, fct, IndexField},
	0x53: {"iget-wide", Format22c, fct, IndexField},
	0x54: {"iget-object", Format22c, fct, IndexField},
	0x55: {"iget-boolean", Format22c, fct, IndexField},
	0x56: {"iget-byte", Format22c, fct, IndexField},
	0x57: {"iget-char", Format22c, fct, IndexField},
	0x58: {"iget-short", Format22c, fct, IndexField},
	0x59: {"iput", Format22c, fct, IndexField},
	0x5A: {"iput-wide", Format22c, fct, IndexField},
	0x5B: {"iput-object", Format22c, fct, IndexField},
	0x5C: {"iput-boolean", Format22c, fct, IndexField},
	0x5D: {"iput-byte", Format22c, fct, IndexField},
	0x5E: {"iput-char", Format22c, fct, IndexField},
	0x5F: {"iput-short", Format22c, fct, IndexField},
	0x60: {"sget", Format21c, fct, IndexField},
	0x61: {"sget-wide", Format21c, fct, IndexField},
	0x62: {"sget-object", Format21c, fct, IndexField},
	0x63: {"sget-boolean", Format21c, fct, IndexField},
	0x64: {"sget-byte", Format21c, fct, IndexField},
	0x65: {"sget-char", Format21c, fct, IndexField},
	0x66: {"sget-short", Format21c, fct, IndexField},
	0x67: {"sput", Format21c, fct, IndexField},
	0x68: {"sput-wide", Format21c, fct, IndexField},
	0x69: {"sput-object", Format21c, fct, IndexField},
	0x6A: {"sput-boolean", Format21c, fct, IndexField},
	0x6B: {"sput-byte", Format21c, fct, IndexField},
	0x6C: {"sput-char", Format21c, fct, IndexField},
	0x6D: {"sput-short", Format21c, fct, IndexField},
	0x6E: {"invoke-virtual", Format35c, fi, IndexMethod},
	0x6F: {"invoke-super", Format35c, fi, IndexMethod},
	0x70: {"invoke-direct", Format35c, fi, IndexMethod},
	0x71: {"invoke-static", Format35c, fi, IndexMethod},
	0x72: {"invoke-interface", Format35c, fi, IndexMethod},
	0x73: {"return-void-no-barrier", Format10x, fr, IndexNone},
	0x74: {"invoke-virtual/range", Format3rc, fi, IndexMethod},
	0x75: {"invoke-super/range", Format3rc, fi, IndexMethod},
	0x76: {"invoke-direct/range", Format3rc, fi, IndexMethod},
	0x77: {"invoke-static/range", Format3rc, fi, IndexMethod},
	0x78: {"invoke-interface/range", Format3rc, fi, IndexMethod},
	0x7B: {"neg-int", Format12x, fc, IndexNone},
	0x7C: {"not-int", Format12x, fc, IndexNone},
	0x7D: {"neg-long", Format12x, fc, IndexNone},
	0x7E: {"not-long", Format12x, fc, IndexNone},
	0x7F: {"neg-float", Format12x, fc, IndexNone},
	0x80: {"neg-double", Format12x, fc, IndexNone},
	0x81: {"int-to-long", Format12x, fc, IndexNone},
	0x82: {"int-to-float", Format12x, fc, IndexNone},
	0x83: {"int-to-double", Format12x, fc, IndexNone},
	0x84: {"long-to-int", Format12x, fc, IndexNone},
	0x85: {"long-to-float", Format12x, fc, IndexNone},
	0x86: {"long-to-double", Format12x, fc, IndexNone},
	0x87: {"float-to-int", Format12x, fc, IndexNone},
	0x88: {"float-to-long", Format12x, fc, IndexNone},
	0x89: {"float-to-double", Format12x, fc, IndexNone},
	0x8A: {"double-to-int", Format12x, fc, IndexNone},
	0x8B: {"double-to-long", Format12x, fc, IndexNone},
	0x8C: {"double-to-float", Format12x, fc, IndexNone},
	0x8D: {"int-to-byte", Format12x, fc, IndexNone},
	0x8E: {"int-to-char", Format12x, fc, IndexNone},
	0x8F: {"int-to-short", Format12x, fc, IndexNone},
	0x90: {"add-int", Format23x, fc, IndexNone},
	0x91: {"sub-int", Format23x, fc, IndexNone},
	0x92: {"mul-int", Format23x, fc, IndexNone},
	0x93: {"div-int", Format23x, fct, IndexNone},
	0x94: {"rem-int", Format23x, fct, IndexNone},
	0x95: {"and-int", Format23x, fc, IndexNone},
	0x96: {"or-int", Format23x, fc, IndexNone},
	0x97: {"xor-int", Format23x, fc, IndexNone},
	0x98: {"shl-int", Format23x, fc, IndexNone},
	0x99: {"shr-int", Format23x, fc, IndexNone},
	0x9A: {"ushr-int", Format23x, fc, IndexNone},
	0x9B: {"add-long", Format23x, fc, IndexNone},
	0x9C: {"sub-long", Format23x, fc, IndexNone},
	0x9D: {"mul-long", Format23x, fc, IndexNone},
	0x9E: {"div-long", Format23x, fct, IndexNone},
	0x9F: {"rem-long", Format23x, fct, IndexNone},
	0xA0: {"and-long", Format23x, fc, IndexNone},
	0xA1: {"or-long", Format23x, fc, IndexNone},
	0xA2: {"xor-long", Format23x, fc, IndexNone},
	0xA3: {"shl-long", Format23x, fc, IndexNone},
	0xA4: {"shr-long", Format23x, fc, IndexNone},
	0xA5: {"ushr-long", Format23x, fc, IndexNone},
	0xA6: {"add-float", Format23x, fc, IndexNone},
	0xA7: {"sub-float", Format23x, fc, IndexNone},
	0xA8: {"mul-float", Format23x, fc, IndexNone},
	0xA9: {"div-float", Format23x, fc, IndexNone},
	0xAA: {"rem-float", Format23x, fc, IndexNone},
	0xAB: {"add-double", Format23x, fc, IndexNone},
	0xAC: {"sub-double", Format23x, fc, IndexNone},
	0xAD: {"mul-double", Format23x, fc, IndexNone},
	0xAE: {"div-double", Format23x, fc, IndexNone},
	0xAF: {"rem-double", Format23x, fc, IndexNone},
	0xB0: {"add-int/2addr", Format12x, fc, IndexNone},
	0xB1: {"sub-int/2addr", Format12x, fc, IndexNone},
	0xB2: {"mul-int/2addr", Format12x, fc, IndexNone},
	0xB3: {"div-int/2addr", Format12x, fct, IndexNone},
	0xB4: {"rem-int/2addr", Format12x, fct, IndexNone},
	0xB5: {"and-int/2addr", Format12x, fc, IndexNone},
	0xB6: {"or-int/2addr", Format12x, fc, IndexNone},
	0xB7: {"xor-int/2addr", Format12x, fc, IndexNone},
	0xB8: {"shl-int/2addr", Format12x, fc, IndexNone},
	0xB9: {"shr-int/2addr", Format12x, fc, IndexNone},
	0xBA: {"ushr-int/2addr", Format12x, fc, IndexNone},
	0xBB: {"add-long/2addr", Format12x, fc, IndexNone},
	0xBC: {"sub-long/2addr", Format12x, fc, IndexNone},
	0xBD: {"mul-long/2addr", Format12x, fc, IndexNone},
	0xBE: {"div-long/2addr", Format12x, fct, IndexNone},
	0xBF: {"rem-long/2addr", Format12x, fct, IndexNone},
	0xC0: {"and-long/2addr", Format12x, fc, IndexNone},
	0xC1: {"or-long/2addr", Format12x, fc, IndexNone},
	0xC2: {"xor-long/2addr", Format12x, fc, IndexNone},
	0xC3: {"shl-long/2addr", Format12x, fc, IndexNone},
	0xC4: {"shr-long/2addr", Format12x, fc, IndexNone},
	0xC5: {"ushr-long/2addr", Format12x, fc, IndexNone},
	0xC6: {"add-float/2addr", Format12x, fc, IndexNone},
	0xC7: {"sub-float/2addr", Format12x, fc, IndexNone},
	0xC8: {"mul-float/2addr", Format12x, fc, IndexNone},
	0xC9: {"div-float/2addr", Format12x, fc, IndexNone},
	0xCA: {"rem-float/2addr", Format12x, fc, IndexNone},
	0xCB: {"add-double/2addr", Format12x, fc, IndexNone},
	0xCC: {"sub-double/2addr", Format12x, fc, IndexNone},
	0xCD: {"mul-double/2addr", Format12x, fc, IndexNone},
	0xCE: {"div-double/2addr", Format12x, fc, IndexNone},
	0xCF: {"rem-double/2addr", Format12x, fc, IndexNone},
	0xD0: {"add-int/lit16", Format22s, fc, IndexNone},
	0xD1: {"rsub-int", Format22s, fc, IndexNone},
	0xD2: {"mul-int/lit16", Format22s, fc, IndexNone},
	0xD3: {"div-int/lit16", Format22s, fct, IndexNone},
	0xD4: {"rem-int/lit16", Format22s, fct, IndexNone},
	0xD5: {"and-int/lit16", Format22s, fc, IndexNone},
	0xD6: {"or-int/lit16", Format22s, fc, IndexNone},
	0xD7: {"xor-int/lit16", Format22s, fc, IndexNone},
	0xD8: {"add-int/lit8", Format22b, fc, IndexNone},
	0xD9: {"rsub-int/lit8", Format22b, fc, IndexNone},
	0xDA: {"mul-int/lit8", Format22b, fc, IndexNone},
	0xDB: {"div-int/lit8", Format22b, fct, IndexNone},
	0xDC: {"rem-int/lit8", Format22b, fct, IndexNone},
	0xDD: {"and-int/lit8", Format22b, fc, IndexNone},
	0xDE: {"or-int/lit8", Format22b, fc, IndexNone},
	0xDF: {"xor-int/lit8", Format22b, fc, IndexNone},
	0xE0: {"shl-int/lit8", Format22b, fc, IndexNone},
	0xE1: {"shr-int/lit8", Format22b, fc, IndexNone},
	0xE2: {"ushr-int/lit8", Format22b, fc, IndexNone},
	0xE3: {"iget-quick", Format22c, fct, IndexFieldOffset},
	0xE4: {"iget-wide-quick", Format22c, fct, IndexFieldOffset},
	0xE5: {"iget-object-quick", Format22c, fct, IndexFieldOffset},
	0xE6: {"iput-quick", Format22c, fct, IndexFieldOffset},
	0xE7: {"iput-wide-quick", Format22c, fct, IndexFieldOffset},
	0xE8: {"iput-object-quick", Format22c, fct, IndexFieldOffset},
	0xE9: {"invoke-virtual-quick", Format35c, fi, IndexVtableOffset},
	0xEA: {"invoke-virtual/range-quick", Format3rc, fi, IndexVtableOffset},
	0xEB: {"iput-boolean-quick", Format22c, fct, IndexFieldOffset},
	0xEC: {"iput-byte-quick", Format22c, fct, IndexFieldOffset},
	0xED: {"iput-char-quick", Format22c, fct, IndexFieldOffset},
	0xEE: {"iput-short-quick", Format22c, fct, IndexFieldOffset},
	0xEF: {"iget-boolean-quick", Format22c, fct, IndexFieldOffset},
	0xF0: {"iget-byte-quick", Format22c, fct, IndexFieldOffset},
	0xF1: {"iget-char-quick", Format22c, fct, IndexFieldOffset},
	0xF2: {"iget-short-quick", Format22c, fct, IndexFieldOffset},
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeTable))
	for i := range opcodeTable {
		info := &opcodeTable[i]
		if info.name == "" {
			info.name = fmt.Sprintf("unused-%02x", i)
			info.format = Format10x
			info.flags = FlagUnused
			continue
		}
		opcodesByName[info.name] = Opcode(i)
	}
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	return opcodeTable[op].name
}

// Format returns the operand layout of the opcode.
func (op Opcode) Format() Format {
	return opcodeTable[op].format
}

// Flags returns the control-flow flags of the opcode.
func (op Opcode) Flags() Flags {
	return opcodeTable[op].flags
}

// IndexType returns what the index operand refers to.
func (op Opcode) IndexType() IndexType {
	return opcodeTable[op].index
}

// IsUnused reports whether the encoding is reserved.
func (op Opcode) IsUnused() bool {
	return opcodeTable[op].flags&FlagUnused != 0
}

// IsReturn reports whether the opcode leaves the method normally.
func (op Opcode) IsReturn() bool {
	return opcodeTable[op].flags&FlagReturn != 0
}

// IsInvoke reports whether the opcode calls another method.
func (op Opcode) IsInvoke() bool {
	return opcodeTable[op].flags&FlagInvoke != 0
}

// LookupOpcode finds an opcode by mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}
