package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
)

func cmdDump(fs *flag.FlagSet, c *common, args []string, stdout io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.load(); err != nil {
		return err
	}
	prog, err := loadProgram(fs.Args())
	if err != nil {
		return err
	}
	for _, img := range prog.images {
		if err := dumpImage(stdout, img); err != nil {
			return err
		}
	}
	return nil
}

func dumpImage(w io.Writer, img *image.Image) error {
	fmt.Fprintf(w, "# image %s (version %d, checksum %016x)\n", img.Location, img.Version, img.Checksum)
	f := img.File()
	for _, cd := range img.Classes {
		fmt.Fprintf(w, "\n.class %s%s\n", flagNames(cd.Flags), cd.Descriptor)
		if cd.Super != "" {
			fmt.Fprintf(w, ".super %s\n", cd.Super)
		}
		for _, i := range cd.Interfaces {
			fmt.Fprintf(w, ".implements %s\n", i)
		}
		if cd.SourceFile != "" {
			fmt.Fprintf(w, ".source %q\n", cd.SourceFile)
		}
		for _, fd := range cd.Fields {
			fmt.Fprintf(w, ".field %s%s:%s\n", flagNames(fd.Flags), fd.Name, fd.Type)
		}
		for i := range cd.Methods {
			if err := dumpMethod(w, f, &cd.Methods[i]); err != nil {
				return errors.Wrap(err, cd.Descriptor)
			}
		}
	}
	return nil
}

func dumpMethod(w io.Writer, f *dex.File, md *image.MethodDef) error {
	fmt.Fprintf(w, "\n.method %s%s%s\n", flagNames(md.Flags), md.Name, md.Descriptor)
	code, err := md.CodeItem()
	if err != nil {
		return err
	}
	if code != nil {
		fmt.Fprintf(w, "    .registers %d  # ins %d, outs %d\n", code.RegistersSize, code.InsSize, code.OutsSize)
		code.Walk(func(pc uint32, in dex.Instruction) bool {
			line := fmt.Sprintf("    %04x: %s", pc, in.Dump())
			if sym := symbol(f, in); sym != "" {
				line += "  # " + sym
			}
			fmt.Fprintln(w, line)
			return true
		})
		for _, t := range code.Tries {
			for _, h := range t.Handlers {
				typ, _ := f.TypeAt(h.TypeIdx)
				fmt.Fprintf(w, "    .catch %s {%04x .. %04x} %04x\n", typ, t.StartAddr, t.StartAddr+uint32(t.InsnCount), h.Addr)
			}
			if t.HasCatchAll {
				fmt.Fprintf(w, "    .catchall {%04x .. %04x} %04x\n", t.StartAddr, t.StartAddr+uint32(t.InsnCount), t.CatchAllAddr)
			}
		}
	}
	fmt.Fprintln(w, ".end method")
	return nil
}

// symbol names the pool entry an instruction indexes, if any.
func symbol(f *dex.File, in dex.Instruction) string {
	var idx uint32
	switch in.Format() {
	case dex.Format21c, dex.Format31c, dex.Format35c, dex.Format3rc:
		idx = uint32(in.VRegB())
	case dex.Format22c:
		idx = uint32(in.VRegC())
	default:
		return ""
	}
	var s string
	var err error
	switch in.Opcode().IndexType() {
	case dex.IndexString:
		s, err = f.StringAt(idx)
		s = fmt.Sprintf("%q", s)
	case dex.IndexClass:
		s, err = f.TypeAt(idx)
	case dex.IndexField:
		var id dex.FieldID
		id, err = f.FieldAt(idx)
		s = id.String()
	case dex.IndexMethod:
		var id dex.MethodID
		id, err = f.MethodAt(idx)
		s = id.String()
	}
	if err != nil {
		return "bad index"
	}
	return s
}

var flagOrder = []string{
	"public", "private", "protected", "static", "final", "synchronized",
	"volatile", "transient", "native", "interface", "abstract", "constructor",
}

func flagNames(flags uint32) string {
	var sb strings.Builder
	for _, name := range flagOrder {
		if f, ok := dex.AccessFlag(name); ok && flags&f != 0 {
			sb.WriteString(name)
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
