package ir

import (
	"fmt"
	"strings"
)

// TypeKind classifies value types
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindBoolean
	KindByte
	KindShort
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
)

// ValueType is a source-level type: a primitive, a class, or an array
type ValueType struct {
	Kind      TypeKind
	ClassName string     // for KindObject, dotted name
	Elem      *ValueType // for KindArray
}

// Common types
var (
	Void    = ValueType{Kind: KindVoid}
	Boolean = ValueType{Kind: KindBoolean}
	Byte    = ValueType{Kind: KindByte}
	Short   = ValueType{Kind: KindShort}
	Char    = ValueType{Kind: KindChar}
	Int     = ValueType{Kind: KindInt}
	Long    = ValueType{Kind: KindLong}
	Float   = ValueType{Kind: KindFloat}
	Double  = ValueType{Kind: KindDouble}
	Object  = ObjectType("java.lang.Object")
)

// ObjectType returns the class type with the given dotted name
func ObjectType(name string) ValueType {
	return ValueType{Kind: KindObject, ClassName: name}
}

// ArrayOf returns the array type with the given element type
func ArrayOf(elem ValueType) ValueType {
	e := elem
	return ValueType{Kind: KindArray, Elem: &e}
}

// IsReference reports whether values of the type are heap references
func (t ValueType) IsReference() bool {
	return t.Kind == KindObject || t.Kind == KindArray
}

// IsPrimitive reports whether the type is a non-void primitive
func (t ValueType) IsPrimitive() bool {
	return t.Kind >= KindBoolean && t.Kind <= KindDouble
}

// Equal compares two types structurally
func (t ValueType) Equal(o ValueType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindObject:
		return t.ClassName == o.ClassName
	case KindArray:
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

// Descriptor renders the type in JVM descriptor syntax
func (t ValueType) Descriptor() string {
	switch t.Kind {
	case KindVoid:
		return "V"
	case KindBoolean:
		return "Z"
	case KindByte:
		return "B"
	case KindShort:
		return "S"
	case KindChar:
		return "C"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindObject:
		return "L" + strings.ReplaceAll(t.ClassName, ".", "/") + ";"
	case KindArray:
		return "[" + t.Elem.Descriptor()
	}
	return "?"
}

func (t ValueType) String() string {
	switch t.Kind {
	case KindObject:
		return t.ClassName
	case KindArray:
		return t.Elem.String() + "[]"
	}
	names := []string{"void", "boolean", "byte", "short", "char", "int", "long", "float", "double"}
	if int(t.Kind) < len(names) {
		return names[t.Kind]
	}
	return "?"
}

// ParseType parses a single JVM type descriptor such as "I" or "[Ljava/lang/String;"
func ParseType(desc string) (ValueType, error) {
	t, rest, err := parseType(desc)
	if err != nil {
		return ValueType{}, err
	}
	if rest != "" {
		return ValueType{}, fmt.Errorf("trailing characters %q in type descriptor %q", rest, desc)
	}
	return t, nil
}

func parseType(desc string) (ValueType, string, error) {
	if desc == "" {
		return ValueType{}, "", fmt.Errorf("empty type descriptor")
	}
	switch desc[0] {
	case 'V':
		return Void, desc[1:], nil
	case 'Z':
		return Boolean, desc[1:], nil
	case 'B':
		return Byte, desc[1:], nil
	case 'S':
		return Short, desc[1:], nil
	case 'C':
		return Char, desc[1:], nil
	case 'I':
		return Int, desc[1:], nil
	case 'J':
		return Long, desc[1:], nil
	case 'F':
		return Float, desc[1:], nil
	case 'D':
		return Double, desc[1:], nil
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 0 {
			return ValueType{}, "", fmt.Errorf("unterminated class descriptor %q", desc)
		}
		name := strings.ReplaceAll(desc[1:end], "/", ".")
		if name == "" {
			return ValueType{}, "", fmt.Errorf("empty class name in %q", desc)
		}
		return ObjectType(name), desc[end+1:], nil
	case '[':
		elem, rest, err := parseType(desc[1:])
		if err != nil {
			return ValueType{}, "", err
		}
		if elem.Kind == KindVoid {
			return ValueType{}, "", fmt.Errorf("array of void in %q", desc)
		}
		return ArrayOf(elem), rest, nil
	}
	return ValueType{}, "", fmt.Errorf("unknown type descriptor %q", desc)
}

// MethodRef names a method: its owner class, name and signature
type MethodRef struct {
	Class  string
	Name   string
	Params []ValueType
	Return ValueType
}

// Descriptor renders the signature as "(params)return"
func (m MethodRef) Descriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(m.Return.Descriptor())
	return sb.String()
}

func (m MethodRef) String() string {
	return m.Class + "." + m.Name + m.Descriptor()
}

// ParseMethodRef parses "pkg.Class.name(Params)Return"
func ParseMethodRef(s string) (MethodRef, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return MethodRef{}, fmt.Errorf("method reference %q has no descriptor", s)
	}
	dot := strings.LastIndexByte(s[:open], '.')
	if dot <= 0 || dot == open-1 {
		return MethodRef{}, fmt.Errorf("method reference %q needs Class.name", s)
	}
	ref := MethodRef{Class: s[:dot], Name: s[dot+1 : open]}

	desc := s[open+1:]
	for {
		if desc == "" {
			return MethodRef{}, fmt.Errorf("unterminated parameter list in %q", s)
		}
		if desc[0] == ')' {
			desc = desc[1:]
			break
		}
		t, rest, err := parseType(desc)
		if err != nil {
			return MethodRef{}, fmt.Errorf("method %q: %w", s, err)
		}
		if t.Kind == KindVoid {
			return MethodRef{}, fmt.Errorf("method %q: void parameter", s)
		}
		ref.Params = append(ref.Params, t)
		desc = rest
	}
	ret, err := ParseType(desc)
	if err != nil {
		return MethodRef{}, fmt.Errorf("method %q: %w", s, err)
	}
	ref.Return = ret
	return ref, nil
}

// FieldRef names a field by owner class and field name
type FieldRef struct {
	Class string
	Name  string
}

func (f FieldRef) String() string {
	return f.Class + "." + f.Name
}

// ParseFieldRef parses "pkg.Class.name"
func ParseFieldRef(s string) (FieldRef, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return FieldRef{}, fmt.Errorf("field reference %q needs Class.name", s)
	}
	return FieldRef{Class: s[:dot], Name: s[dot+1:]}, nil
}

// MethodDescriptor is the reader-level description of a method being compiled
type MethodDescriptor struct {
	Ref    MethodRef
	Static bool
}

// ParameterCount returns the number of declared parameters
func (d MethodDescriptor) ParameterCount() int {
	return len(d.Ref.Params)
}

// Name returns the printable method name
func (d MethodDescriptor) Name() string {
	return d.Ref.String()
}
