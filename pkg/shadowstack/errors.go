package shadowstack

import (
	"fmt"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

// NoVar is used in errors that are not about a particular variable
const NoVar ir.Var = -1

// InvariantError reports an internal-consistency failure of the pass.
// It is a compiler bug, not a problem in the input program.
type InvariantError struct {
	Method string
	Var    ir.Var
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Var == NoVar {
		return fmt.Sprintf("shadow stack: %s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("shadow stack: %s: v%d: %s", e.Method, e.Var, e.Reason)
}

func invariantf(method string, v ir.Var, format string, args ...any) *InvariantError {
	return &InvariantError{Method: method, Var: v, Reason: fmt.Sprintf(format, args...)}
}
