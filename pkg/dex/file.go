package dex

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldID is a symbolic field reference.
type FieldID struct {
	Class string // declaring class descriptor
	Name  string
	Type  string // field type descriptor
}

func (f FieldID) String() string {
	return fmt.Sprintf("%s->%s:%s", f.Class, f.Name, f.Type)
}

// MethodID is a symbolic method reference.
type MethodID struct {
	Class      string
	Name       string
	Descriptor string // e.g. "(II)I"
}

func (m MethodID) String() string {
	return fmt.Sprintf("%s->%s%s", m.Class, m.Name, m.Descriptor)
}

// File holds the symbolic pools that instruction indices refer to. Class
// and method definitions live with the linker; File is only the index space.
type File struct {
	Location string
	Strings  []string
	Types    []string
	Fields   []FieldID
	Methods  []MethodID
}

// StringAt returns the string at idx.
func (f *File) StringAt(idx uint32) (string, error) {
	if int(idx) >= len(f.Strings) {
		return "", errors.Errorf("%s: string index %d out of range (%d strings)", f.Location, idx, len(f.Strings))
	}
	return f.Strings[idx], nil
}

// TypeAt returns the type descriptor at idx.
func (f *File) TypeAt(idx uint32) (string, error) {
	if int(idx) >= len(f.Types) {
		return "", errors.Errorf("%s: type index %d out of range (%d types)", f.Location, idx, len(f.Types))
	}
	return f.Types[idx], nil
}

// FieldAt returns the field reference at idx.
func (f *File) FieldAt(idx uint32) (FieldID, error) {
	if int(idx) >= len(f.Fields) {
		return FieldID{}, errors.Errorf("%s: field index %d out of range (%d fields)", f.Location, idx, len(f.Fields))
	}
	return f.Fields[idx], nil
}

// MethodAt returns the method reference at idx.
func (f *File) MethodAt(idx uint32) (MethodID, error) {
	if int(idx) >= len(f.Methods) {
		return MethodID{}, errors.Errorf("%s: method index %d out of range (%d methods)", f.Location, idx, len(f.Methods))
	}
	return f.Methods[idx], nil
}

// Pool builds a File incrementally, deduplicating entries.
type Pool struct {
	file    File
	strings map[string]uint32
	types   map[string]uint32
	fields  map[FieldID]uint32
	methods map[MethodID]uint32
}

// NewPool returns an empty pool for location.
func NewPool(location string) *Pool {
	return &Pool{
		file:    File{Location: location},
		strings: make(map[string]uint32),
		types:   make(map[string]uint32),
		fields:  make(map[FieldID]uint32),
		methods: make(map[MethodID]uint32),
	}
}

// StringIndex interns s.
func (p *Pool) StringIndex(s string) uint32 {
	if i, ok := p.strings[s]; ok {
		return i
	}
	i := uint32(len(p.file.Strings))
	p.file.Strings = append(p.file.Strings, s)
	p.strings[s] = i
	return i
}

// TypeIndex interns a type descriptor.
func (p *Pool) TypeIndex(desc string) uint32 {
	if i, ok := p.types[desc]; ok {
		return i
	}
	i := uint32(len(p.file.Types))
	p.file.Types = append(p.file.Types, desc)
	p.types[desc] = i
	return i
}

// FieldIndex interns a field reference.
func (p *Pool) FieldIndex(id FieldID) uint32 {
	if i, ok := p.fields[id]; ok {
		return i
	}
	p.TypeIndex(id.Class)
	i := uint32(len(p.file.Fields))
	p.file.Fields = append(p.file.Fields, id)
	p.fields[id] = i
	return i
}

// MethodIndex interns a method reference.
func (p *Pool) MethodIndex(id MethodID) uint32 {
	if i, ok := p.methods[id]; ok {
		return i
	}
	p.TypeIndex(id.Class)
	i := uint32(len(p.file.Methods))
	p.file.Methods = append(p.file.Methods, id)
	p.methods[id] = i
	return i
}

// File returns the pools built so far.
func (p *Pool) File() *File {
	f := p.file
	return &f
}

// Pretty renders the reference as source: "int Foo.bar(long)". Malformed
// descriptors fall back to String.
func (m MethodID) Pretty() string {
	params, ret, err := ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return m.String()
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = PrettyDescriptor(p)
	}
	return fmt.Sprintf("%s %s.%s(%s)", PrettyDescriptor(ret), PrettyDescriptor(m.Class), m.Name, strings.Join(parts, ", "))
}

// Pretty renders the reference as "int Foo.bar".
func (f FieldID) Pretty() string {
	return fmt.Sprintf("%s %s.%s", PrettyDescriptor(f.Type), PrettyDescriptor(f.Class), f.Name)
}
