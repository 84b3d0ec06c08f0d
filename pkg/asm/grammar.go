package asm

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a source file: one or more classes.
type File struct {
	Classes []*Class `EOL* @@*`
}

// Class starts at .class and runs until the next .class or the end of the
// file.
type Class struct {
	Pos        lexer.Position
	Flags      []string  `".class" @Ident*`
	Name       string    `@Type EOL+`
	Super      string    `( ".super" @Type EOL+ )?`
	Interfaces []string  `( ".implements" @Type EOL+ )*`
	Source     *string   `( ".source" @String EOL+ )?`
	Members    []*Member `@@*`
}

type Member struct {
	Field  *Field  `  @@`
	Method *Method `| @@`
}

// Field is ".field <flags> name:Type [= literal]".
type Field struct {
	Pos   lexer.Position
	Flags []string `".field" @Ident*`
	Sig   string   `@FieldSig`
	Value *Literal `( "=" @@ )? EOL+`
}

type Literal struct {
	Float  *string `  @Float`
	Int    *string `| @Int`
	String *string `| @String`
}

// Method is ".method <flags> name(Params)Ret", a body, ".end method".
type Method struct {
	Pos   lexer.Position
	Flags []string     `".method" @Ident*`
	Sig   string       `@MethodSig EOL+`
	Body  []*Statement `@@* ".end" "method" EOL*`
}

type Statement struct {
	Pos       lexer.Position
	Label     *string      `  @Label EOL+`
	Registers *string      `| ".registers" @Int EOL+`
	Catch     *Catch       `| @@ EOL+`
	Insn      *Instruction `| @@ EOL+`
}

// Catch is ".catch Type {:start .. :end} :handler" or the same with
// .catchall and no type.
type Catch struct {
	Pos     lexer.Position
	Kind    string `@( ".catch" | ".catchall" )`
	Type    string `@Type?`
	Start   string `"{" @Label ".."`
	End     string `@Label "}"`
	Handler string `@Label`
}

type Instruction struct {
	Pos      lexer.Position
	Mnemonic string     `@Ident`
	Operands []*Operand `( @@ ( "," @@ )* )?`
}

type Operand struct {
	Register *string `  @Register`
	List     *List   `| @@`
	Method   *string `| @MethodRef`
	Field    *string `| @FieldRef`
	Type     *string `| @Type`
	Label    *string `| @Label`
	String   *string `| @String`
	Float    *string `| @Float`
	Int      *string `| @Int`
}

// List is a braced operand: registers ("{v0, v1}"), a register range
// ("{v0 .. v3}"), switch targets or array data.
type List struct {
	Items    []*Item `"{" ( @@ ( "," @@ )* )?`
	RangeEnd *string `( ".." @Register )? "}"`
}

type Item struct {
	Register *string `  @Register`
	Label    *string `| @Label`
	Key      *string `| @Int`
	Target   *string `  ( "->" @Label )?`
}

var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},

	// References and signatures are single tokens; they are split when
	// assembled.
	{Name: "MethodRef", Pattern: `\[*L[^;\s]+;->[^\s(:]+\([^)\s]*\)[^\s,}]+`},
	{Name: "FieldRef", Pattern: `\[*L[^;\s]+;->[^\s(:]+:[^\s,}]+`},
	{Name: "MethodSig", Pattern: `[\w$<>]+\([^)\s]*\)\S+`},
	{Name: "FieldSig", Pattern: `[A-Za-z_$][\w$]*:\S+`},

	{Name: "Float", Pattern: `-?(\d+\.\d*([eE][-+]?\d+)?|NaN|Infinity)[fFdD]?`},
	{Name: "Type", Pattern: `\[*(L[^;\s]+;|[ZBSCIJFDV])`},
	{Name: "Label", Pattern: `:[A-Za-z_$][\w$]*`},
	{Name: "Register", Pattern: `[vp]\d+\b`},
	{Name: "Int", Pattern: `-?(0[xX][0-9a-fA-F]+|\d+)[lL]?`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"`},
	{Name: "Directive", Pattern: `\.[a-z][a-z-]*`},
	{Name: "Ident", Pattern: `[a-z][\w-]*(/[\w-]+)*`},
	{Name: "Punct", Pattern: `\.\.|->|[{},=]`},
})

var parser = participle.MustBuild[File](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)
