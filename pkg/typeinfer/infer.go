// Package typeinfer assigns a coarse storage type to every variable of a
// program. Back ends use it to tell heap references from scalars.
package typeinfer

import (
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// VariableType is the storage type of a variable
type VariableType int

const (
	Unknown VariableType = iota
	Int
	Long
	Float
	Double
	ByteArray
	CharArray
	ShortArray
	IntArray
	LongArray
	FloatArray
	DoubleArray
	ObjectArray
	Object
)

func (t VariableType) String() string {
	names := []string{"unknown", "int", "long", "float", "double",
		"byte[]", "char[]", "short[]", "int[]", "long[]", "float[]", "double[]",
		"object[]", "object"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// Category groups variable types into the classes the GC cares about
type Category int

const (
	CategoryUnknown Category = iota
	CategoryPrimitive
	CategoryReference
	CategoryReferenceArray
)

func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryReference:
		return "reference"
	case CategoryReferenceArray:
		return "reference-array"
	}
	return "unknown"
}

// Category returns the category of t. Primitive arrays are heap objects
// and count as references.
func (t VariableType) Category() Category {
	switch t {
	case Int, Long, Float, Double:
		return CategoryPrimitive
	case ObjectArray:
		return CategoryReferenceArray
	case Unknown:
		return CategoryUnknown
	}
	return CategoryReference
}

// IsReference reports whether values of type t live on the heap
func (t VariableType) IsReference() bool {
	c := t.Category()
	return c == CategoryReference || c == CategoryReferenceArray
}

// FromValueType maps a source-level type to its storage type
func FromValueType(vt ir.ValueType) VariableType {
	switch vt.Kind {
	case ir.KindBoolean, ir.KindByte, ir.KindShort, ir.KindChar, ir.KindInt:
		return Int
	case ir.KindLong:
		return Long
	case ir.KindFloat:
		return Float
	case ir.KindDouble:
		return Double
	case ir.KindObject:
		return Object
	case ir.KindArray:
		return arrayOf(*vt.Elem)
	}
	return Unknown
}

func arrayOf(elem ir.ValueType) VariableType {
	switch elem.Kind {
	case ir.KindBoolean, ir.KindByte:
		return ByteArray
	case ir.KindChar:
		return CharArray
	case ir.KindShort:
		return ShortArray
	case ir.KindInt:
		return IntArray
	case ir.KindLong:
		return LongArray
	case ir.KindFloat:
		return FloatArray
	case ir.KindDouble:
		return DoubleArray
	}
	return ObjectArray
}

func fromNumeric(t ir.NumericType) VariableType {
	switch t {
	case ir.NumLong:
		return Long
	case ir.NumFloat:
		return Float
	case ir.NumDouble:
		return Double
	}
	return Int
}

// Types is the inference result for one program
type Types struct {
	types []VariableType
}

// TypeOf returns the inferred type of v, Unknown if nothing defines it
func (t *Types) TypeOf(v ir.Var) VariableType {
	if int(v) < 0 || int(v) >= len(t.types) {
		return Unknown
	}
	return t.types[v]
}

// IsReference reports whether v holds a heap reference
func (t *Types) IsReference(v ir.Var) bool {
	return t.TypeOf(v).IsReference()
}

// Len returns the number of variables covered
func (t *Types) Len() int {
	return len(t.types)
}

// Infer computes variable types for prog. Parameters are seeded from the
// method descriptor; variable 0 is an object for instance methods.
func Infer(prog *ir.Program, method ir.MethodDescriptor) *Types {
	n := prog.VariableCount()
	types := make([]VariableType, n)
	set := func(v ir.Var, t VariableType) {
		if int(v) >= 0 && int(v) < n && types[v] == Unknown {
			types[v] = t
		}
	}

	if !method.Static {
		set(0, Object)
	}
	for i, p := range method.Ref.Params {
		set(ir.Var(i+1), FromValueType(p))
	}

	// copies[src] lists variables that take the type of src
	copies := make(map[ir.Var][]ir.Var)
	addCopy := func(src, dst ir.Var) {
		copies[src] = append(copies[src], dst)
	}

	for _, b := range prog.Blocks {
		if b.ExceptionVariable != nil {
			set(*b.ExceptionVariable, Object)
		}
		for _, phi := range b.Phis {
			for _, inc := range phi.Incomings {
				addCopy(inc.Value, phi.Receiver)
			}
		}
		for _, instr := range b.Instructions {
			switch i := instr.(type) {
			case ir.IntConst:
				set(i.Receiver, Int)
			case ir.LongConst:
				set(i.Receiver, Long)
			case ir.FloatConst:
				set(i.Receiver, Float)
			case ir.DoubleConst:
				set(i.Receiver, Double)
			case ir.StringConst:
				set(i.Receiver, Object)
			case ir.NullConst:
				set(i.Receiver, Object)
			case ir.Assign:
				addCopy(i.Assignee, i.Receiver)
			case ir.Binary:
				set(i.Receiver, fromNumeric(i.Operand))
			case ir.Cast:
				set(i.Receiver, fromNumeric(i.To))
			case ir.Construct:
				set(i.Receiver, Object)
			case ir.ConstructArray:
				set(i.Receiver, arrayOf(i.ItemType))
			case ir.ConstructMultiArray:
				if len(i.Dimensions) > 1 {
					set(i.Receiver, ObjectArray)
				} else {
					set(i.Receiver, arrayOf(i.ItemType))
				}
			case ir.CloneArray:
				addCopy(i.Array, i.Receiver)
			case ir.Invoke:
				if i.Receiver != nil {
					set(*i.Receiver, FromValueType(i.Method.Return))
				}
			case ir.GetField:
				set(i.Receiver, FromValueType(i.FieldType))
			case ir.ArrayLength:
				set(i.Receiver, Int)
			case ir.GetElement:
				set(i.Receiver, FromValueType(i.ElemType))
			case ir.IsInstance:
				set(i.Receiver, Int)
			}
		}
	}

	// Propagate through copies until nothing changes
	worklist := make([]ir.Var, 0, n)
	for v := 0; v < n; v++ {
		if types[v] != Unknown {
			worklist = append(worklist, ir.Var(v))
		}
	}
	for len(worklist) > 0 {
		top := len(worklist) - 1
		v := worklist[top]
		worklist = worklist[:top]
		for _, dst := range copies[v] {
			if int(dst) < n && types[dst] == Unknown {
				types[dst] = types[v]
				worklist = append(worklist, dst)
			}
		}
	}
	return &Types{types: types}
}

// FromSlice builds a Types value directly, for callers that already know
// the type of every variable
func FromSlice(types []VariableType) *Types {
	return &Types{types: append([]VariableType(nil), types...)}
}
