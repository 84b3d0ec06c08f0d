// Package image defines the program image consumed by the runtime: the
// symbolic pools instructions index into, plus class definitions whose
// method bodies are encoded code items.
package image

import (
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/dex"
)

// Version is the current image format version.
const Version = 1

// FieldDef declares a field. Value holds the initial primitive value of a
// static field; StringValue the initial value of a static String field.
type FieldDef struct {
	Name        string  `cbor:"1,keyasint"`
	Type        string  `cbor:"2,keyasint"`
	Flags       uint32  `cbor:"3,keyasint"`
	Value       uint64  `cbor:"4,keyasint,omitempty"`
	StringValue *string `cbor:"5,keyasint,omitempty"`
}

// MethodDef declares a method. Code is a binary code_item, empty for
// abstract and native methods.
type MethodDef struct {
	Name       string `cbor:"1,keyasint"`
	Descriptor string `cbor:"2,keyasint"`
	Flags      uint32 `cbor:"3,keyasint"`
	Code       []byte `cbor:"4,keyasint,omitempty"`
}

// ClassDef declares a class.
type ClassDef struct {
	Descriptor string      `cbor:"1,keyasint"`
	Super      string      `cbor:"2,keyasint,omitempty"`
	Interfaces []string    `cbor:"3,keyasint,omitempty"`
	Flags      uint32      `cbor:"4,keyasint"`
	Fields     []FieldDef  `cbor:"5,keyasint,omitempty"`
	Methods    []MethodDef `cbor:"6,keyasint,omitempty"`
	SourceFile string      `cbor:"7,keyasint,omitempty"`
}

// Image is a self-contained program.
type Image struct {
	Version  int            `cbor:"1,keyasint"`
	Location string         `cbor:"2,keyasint"`
	Strings  []string       `cbor:"3,keyasint,omitempty"`
	Types    []string       `cbor:"4,keyasint,omitempty"`
	Fields   []dex.FieldID  `cbor:"5,keyasint,omitempty"`
	Methods  []dex.MethodID `cbor:"6,keyasint,omitempty"`
	Classes  []ClassDef     `cbor:"7,keyasint,omitempty"`
	Checksum uint64         `cbor:"8,keyasint"`
}

// File returns the pools of the image.
func (img *Image) File() *dex.File {
	return &dex.File{
		Location: img.Location,
		Strings:  img.Strings,
		Types:    img.Types,
		Fields:   img.Fields,
		Methods:  img.Methods,
	}
}

// SetPools copies the pools of f into the image.
func (img *Image) SetPools(f *dex.File) {
	img.Strings = f.Strings
	img.Types = f.Types
	img.Fields = f.Fields
	img.Methods = f.Methods
}

// FindClass returns the definition of descriptor, or nil.
func (img *Image) FindClass(descriptor string) *ClassDef {
	for i := range img.Classes {
		if img.Classes[i].Descriptor == descriptor {
			return &img.Classes[i]
		}
	}
	return nil
}

// CodeItem decodes the body of m; nil when m has no code.
func (m *MethodDef) CodeItem() (*dex.CodeItem, error) {
	if len(m.Code) == 0 {
		return nil, nil
	}
	c, err := dex.ParseCodeItem(m.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "method %s%s", m.Name, m.Descriptor)
	}
	return c, nil
}

// SetCodeItem encodes c as the body of m.
func (m *MethodDef) SetCodeItem(c *dex.CodeItem) error {
	b, err := c.MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "method %s%s", m.Name, m.Descriptor)
	}
	m.Code = b
	return nil
}

// Validate checks that every class and method is well formed.
func (img *Image) Validate() error {
	seen := make(map[string]bool, len(img.Classes))
	for i := range img.Classes {
		c := &img.Classes[i]
		if !dex.IsReference(c.Descriptor) || c.Descriptor[0] != 'L' {
			return errors.Errorf("class %d: bad descriptor %q", i, c.Descriptor)
		}
		if seen[c.Descriptor] {
			return errors.Errorf("class %s defined twice", c.Descriptor)
		}
		seen[c.Descriptor] = true
		for _, f := range c.Fields {
			if !dex.ValidTypeDescriptor(f.Type) {
				return errors.Errorf("%s: field %s has bad type %q", c.Descriptor, f.Name, f.Type)
			}
		}
		for j := range c.Methods {
			m := &c.Methods[j]
			if _, _, err := dex.ParseMethodDescriptor(m.Descriptor); err != nil {
				return errors.Wrapf(err, "%s: method %s", c.Descriptor, m.Name)
			}
			code, err := m.CodeItem()
			if err != nil {
				return errors.Wrap(err, c.Descriptor)
			}
			hasCode := m.Flags&(dex.AccAbstract|dex.AccNative) == 0
			if hasCode != (code != nil) {
				return errors.Errorf("%s: method %s%s: code presence does not match flags %#x", c.Descriptor, m.Name, m.Descriptor, m.Flags)
			}
		}
	}
	return nil
}
