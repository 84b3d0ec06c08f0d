// Package asm assembles a smali-like text syntax into program images.
//
//	.class public LHello;
//	.super Ljava/lang/Object;
//
//	.method public static main()V
//	    .registers 1
//	    const-string v0, "hello"
//	    invoke-static {v0}, Lgodex/io/Console;->println(Ljava/lang/String;)V
//	    return-void
//	.end method
//
// Registers are named vN, or pN for the N-th argument register. Labels
// start with a colon. Switch tables and array data are given inline:
//
//	packed-switch v0, 1, {:one, :two}
//	sparse-switch v0, {-1 -> :neg, 100 -> :big}
//	fill-array-data v0, 4, {1, 2, 3}
package asm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
)

var log = commonlog.GetLogger("godex.asm")

const objectClass = "Ljava/lang/Object;"

// Assembler collects the classes of one or more sources into an image
// sharing a single set of pools.
type Assembler struct {
	location string
	pool     *dex.Pool
	classes  []image.ClassDef
}

// New returns an assembler for an image at location.
func New(location string) *Assembler {
	return &Assembler{location: location, pool: dex.NewPool(location)}
}

// Assemble assembles a single source.
func Assemble(filename, src string) (*image.Image, error) {
	a := New(filename)
	if err := a.AddSource(filename, src); err != nil {
		return nil, err
	}
	return a.Image()
}

// AddFile assembles the source at path.
func (a *Assembler) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading source")
	}
	return a.AddSource(path, string(data))
}

// AddSource assembles src, naming it filename in errors.
func (a *Assembler) AddSource(filename, src string) error {
	f, err := parser.ParseString(filename, src+"\n")
	if err != nil {
		return errors.Wrap(err, "syntax error")
	}
	for _, c := range f.Classes {
		cd, err := a.class(c)
		if err != nil {
			return err
		}
		log.Debugf("assembled %s (%d methods)", cd.Descriptor, len(cd.Methods))
		a.classes = append(a.classes, *cd)
	}
	return nil
}

// Image returns the validated image of everything assembled so far.
func (a *Assembler) Image() (*image.Image, error) {
	img := &image.Image{Version: image.Version, Location: a.location, Classes: a.classes}
	img.SetPools(a.pool.File())
	if err := img.Validate(); err != nil {
		return nil, errors.Wrap(err, "assembled image")
	}
	return img, nil
}

func errorAt(pos lexer.Position, format string, args ...any) error {
	return errors.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

func accessFlags(pos lexer.Position, names []string) (uint32, error) {
	var flags uint32
	for _, n := range names {
		f, ok := dex.AccessFlag(n)
		if !ok {
			return 0, errorAt(pos, "unknown modifier %q", n)
		}
		flags |= f
	}
	return flags, nil
}

func unquote(pos lexer.Position, s string) (string, error) {
	u, err := strconv.Unquote(s)
	if err != nil {
		return "", errorAt(pos, "bad string literal %s", s)
	}
	return u, nil
}

func (a *Assembler) class(c *Class) (*image.ClassDef, error) {
	flags, err := accessFlags(c.Pos, c.Flags)
	if err != nil {
		return nil, err
	}
	if flags&dex.AccInterface != 0 {
		flags |= dex.AccAbstract
	}
	cd := &image.ClassDef{Descriptor: c.Name, Super: c.Super, Interfaces: c.Interfaces, Flags: flags}
	if cd.Super == "" && cd.Descriptor != objectClass {
		cd.Super = objectClass
	}
	if c.Source != nil {
		if cd.SourceFile, err = unquote(c.Pos, *c.Source); err != nil {
			return nil, err
		}
	}
	for _, m := range c.Members {
		switch {
		case m.Field != nil:
			fd, err := a.field(m.Field)
			if err != nil {
				return nil, errors.Wrap(err, c.Name)
			}
			cd.Fields = append(cd.Fields, *fd)
		case m.Method != nil:
			md, err := a.method(m.Method)
			if err != nil {
				return nil, errors.Wrap(err, c.Name)
			}
			cd.Methods = append(cd.Methods, *md)
		}
	}
	return cd, nil
}

func (a *Assembler) field(f *Field) (*image.FieldDef, error) {
	flags, err := accessFlags(f.Pos, f.Flags)
	if err != nil {
		return nil, err
	}
	name, typ, _ := strings.Cut(f.Sig, ":")
	if !dex.ValidTypeDescriptor(typ) {
		return nil, errorAt(f.Pos, "field %s: bad type %q", name, typ)
	}
	fd := &image.FieldDef{Name: name, Type: typ, Flags: flags}
	if f.Value == nil {
		return fd, nil
	}
	if flags&dex.AccStatic == 0 {
		return nil, errorAt(f.Pos, "field %s: only static fields take an initial value", name)
	}
	if f.Value.String != nil {
		if typ != "Ljava/lang/String;" {
			return nil, errorAt(f.Pos, "field %s: string value for type %s", name, typ)
		}
		s, err := unquote(f.Pos, *f.Value.String)
		if err != nil {
			return nil, err
		}
		fd.StringValue = &s
		return fd, nil
	}
	v, err := fieldValue(typ, f.Value)
	if err != nil {
		return nil, errorAt(f.Pos, "field %s: %v", name, err)
	}
	fd.Value = v
	return fd, nil
}

// fieldValue encodes a primitive initial value the way static slots hold
// it: narrow types as 32-bit patterns, floats as IEEE bits.
func fieldValue(typ string, lit *Literal) (uint64, error) {
	switch typ {
	case "F", "D":
		var f float64
		var err error
		if lit.Float != nil {
			f, err = parseFloat(*lit.Float)
		} else {
			var i int64
			i, err = parseInt(*lit.Int)
			f = float64(i)
		}
		if err != nil {
			return 0, err
		}
		if typ == "F" {
			return uint64(floatBits(f)), nil
		}
		return doubleBits(f), nil
	case "Z", "B", "S", "C", "I", "J":
		if lit.Int == nil {
			return 0, errors.Errorf("type %s needs an integer value", typ)
		}
		i, err := parseInt(*lit.Int)
		if err != nil {
			return 0, err
		}
		if typ == "J" {
			return uint64(i), nil
		}
		return uint64(uint32(int32(i))), nil
	}
	return 0, errors.Errorf("type %s takes no initial value", typ)
}

func (a *Assembler) method(m *Method) (*image.MethodDef, error) {
	flags, err := accessFlags(m.Pos, m.Flags)
	if err != nil {
		return nil, err
	}
	i := strings.IndexByte(m.Sig, '(')
	name, desc := m.Sig[:i], m.Sig[i:]
	params, _, err := dex.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, errorAt(m.Pos, "method %s: %v", name, err)
	}
	if name == "<init>" || name == "<clinit>" {
		flags |= dex.AccConstructor
	}
	md := &image.MethodDef{Name: name, Descriptor: desc, Flags: flags}
	if flags&(dex.AccAbstract|dex.AccNative) != 0 {
		if len(m.Body) > 0 {
			return nil, errorAt(m.Pos, "%s%s: abstract and native methods have no body", name, desc)
		}
		return md, nil
	}
	ins := 0
	if flags&dex.AccStatic == 0 {
		ins++
	}
	for _, p := range params {
		ins++
		if dex.IsWide(dex.ShortyChar(p)) {
			ins++
		}
	}
	code, err := assembleBody(a.pool, m, ins)
	if err != nil {
		return nil, errors.Wrapf(err, "%s%s", name, desc)
	}
	if err := md.SetCodeItem(code); err != nil {
		return nil, err
	}
	return md, nil
}
