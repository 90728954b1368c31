package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// RuntimeClass is the class that owns the shadow-stack root operations
const RuntimeClass = "ralph.runtime.ShadowStack"

// Root registration methods invoked by the inserted code
var (
	RegisterGCRoot = ir.MethodRef{
		Class:  RuntimeClass,
		Name:   "registerGCRoot",
		Params: []ir.ValueType{ir.Int, ir.Object},
		Return: ir.Void,
	}
	RemoveGCRoot = ir.MethodRef{
		Class:  RuntimeClass,
		Name:   "removeGCRoot",
		Params: []ir.ValueType{ir.Int},
		Return: ir.Void,
	}
)

// ManagedMethods decides whether a call can trigger a collection.
// Calls to unmanaged methods are not safepoints.
type ManagedMethods interface {
	IsManaged(m ir.MethodRef) bool
}

// ManagedFunc adapts a function to ManagedMethods
type ManagedFunc func(m ir.MethodRef) bool

// IsManaged calls f(m)
func (f ManagedFunc) IsManaged(m ir.MethodRef) bool {
	return f(m)
}

// MethodRepository treats every method as managed except the shadow-stack
// runtime itself and the configured classes and methods
type MethodRepository struct {
	classes map[string]bool
	methods map[string]bool
}

// NewMethodRepository creates a repository. Methods may be given either as
// "Class.name" (all overloads) or as a full reference with descriptor.
func NewMethodRepository(unmanagedClasses, unmanagedMethods []string) *MethodRepository {
	r := &MethodRepository{
		classes: map[string]bool{RuntimeClass: true},
		methods: make(map[string]bool),
	}
	for _, c := range unmanagedClasses {
		r.classes[c] = true
	}
	for _, m := range unmanagedMethods {
		r.methods[m] = true
	}
	return r
}

// IsManaged implements ManagedMethods
func (r *MethodRepository) IsManaged(m ir.MethodRef) bool {
	if r.classes[m.Class] {
		return false
	}
	if r.methods[m.Class+"."+m.Name] || r.methods[m.String()] {
		return false
	}
	return true
}
