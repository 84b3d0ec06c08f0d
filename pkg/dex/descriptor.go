package dex

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseMethodDescriptor splits "(ILjava/lang/String;[J)V" into parameter
// and return type descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", errors.Errorf("method descriptor %q: missing '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := typeLen(desc[i:])
		if err != nil {
			return nil, "", errors.Wrapf(err, "method descriptor %q", desc)
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", errors.Errorf("method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if n, err := typeLen(ret); err != nil || n != len(ret) {
		return nil, "", errors.Errorf("method descriptor %q: bad return type", desc)
	}
	return params, ret, nil
}

func typeLen(s string) (int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims == len(s) {
		return 0, errors.New("truncated type")
	}
	switch s[dims] {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		return dims + 1, nil
	case 'V':
		if dims > 0 {
			return 0, errors.New("array of void")
		}
		return 1, nil
	case 'L':
		end := strings.IndexByte(s[dims:], ';')
		if end < 0 {
			return 0, errors.New("unterminated class type")
		}
		return dims + end + 1, nil
	}
	return 0, errors.Errorf("unknown type character %q", s[dims])
}

// ValidTypeDescriptor reports whether s is exactly one field type.
func ValidTypeDescriptor(s string) bool {
	n, err := typeLen(s)
	return err == nil && n == len(s) && s != "V"
}

// ShortyChar returns the shorty character of a type descriptor: the
// primitive letter itself, or 'L' for classes and arrays.
func ShortyChar(desc string) byte {
	if desc[0] == '[' {
		return 'L'
	}
	return desc[0]
}

// Shorty returns the short form of a method descriptor, return type first.
func Shorty(desc string) (string, error) {
	params, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteByte(ShortyChar(ret))
	for _, p := range params {
		b.WriteByte(ShortyChar(p))
	}
	return b.String(), nil
}

// IsWide reports whether a shorty character occupies two registers.
func IsWide(c byte) bool {
	return c == 'J' || c == 'D'
}

// IsReference reports whether a type descriptor names a reference type.
func IsReference(desc string) bool {
	return desc != "" && (desc[0] == 'L' || desc[0] == '[')
}

var primitiveNames = map[byte]string{
	'Z': "boolean", 'B': "byte", 'S': "short", 'C': "char",
	'I': "int", 'J': "long", 'F': "float", 'D': "double", 'V': "void",
}

// PrettyDescriptor renders a type descriptor as source: "java.lang.String",
// "int[]".
func PrettyDescriptor(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	elem := desc[dims:]
	var name string
	if elem == "" {
		return desc
	}
	if strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") {
		name = strings.ReplaceAll(elem[1:len(elem)-1], "/", ".")
	} else if p, ok := primitiveNames[elem[0]]; ok && len(elem) == 1 {
		name = p
	} else {
		name = elem
	}
	return name + strings.Repeat("[]", dims)
}

// ClassDescriptor turns "java.lang.String" or "java/lang/String" into
// "Ljava/lang/String;". Array and primitive names are passed through in
// descriptor form.
func ClassDescriptor(name string) string {
	if strings.HasPrefix(name, "[") {
		return strings.ReplaceAll(name, ".", "/")
	}
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return name
	}
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}
