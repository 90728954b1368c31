package shadowstack

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-aot/pkg/coloring"
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Dump writes a readable summary of the plan: frame size, slot colors,
// auto-spilled variables and every safepoint with its live set and actions
func (p *Plan) Dump(w io.Writer) {
	fmt.Fprintf(w, "method %s frame %d\n", p.Method, p.FrameSize)

	var colored []string
	for v, c := range p.Colors {
		if c != coloring.Uncolored && p.Spilled[v] {
			colored = append(colored, fmt.Sprintf("v%d=%d", v, c))
		}
	}
	if len(colored) > 0 {
		fmt.Fprintf(w, "  slots: %s\n", strings.Join(colored, " "))
	}

	var auto []string
	for v, a := range p.AutoSpilled {
		if a {
			auto = append(auto, fmt.Sprintf("v%d", v))
		}
	}
	if len(auto) > 0 {
		fmt.Fprintf(w, "  auto-spilled: %s\n", strings.Join(auto, " "))
	}

	for b, sps := range p.Safepoints {
		for i, sp := range sps {
			fmt.Fprintf(w, "  b%d[%d]: live {%s}", b, sp.Instruction, formatVarList(sp.Live))
			if acts := formatActions(p.Records[b][i]); acts != "" {
				fmt.Fprintf(w, " %s", acts)
			}
			fmt.Fprintln(w)
		}
	}
}

func formatVarList(vars []ir.Var) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("v%d", v)
	}
	return strings.Join(parts, ", ")
}

func formatActions(rec UpdateRecord) string {
	parts := make([]string, 0, len(rec.Actions))
	for _, a := range rec.Actions {
		switch a.Kind {
		case ActionStore:
			parts = append(parts, fmt.Sprintf("store %d=v%d", a.Slot, a.Var))
		case ActionClear:
			parts = append(parts, fmt.Sprintf("clear %d", a.Slot))
		}
	}
	return strings.Join(parts, " ")
}
