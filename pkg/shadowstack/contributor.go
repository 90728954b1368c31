// Package shadowstack makes garbage-collection roots explicit. For every
// safepoint of a method it finds the live heap references, packs them into
// a minimal set of reusable shadow-stack slots, and computes the smallest
// set of slot stores and clears that keeps the shadow stack exact.
//
// The pass runs in two steps. Plan analyzes a program without touching it
// and returns the per-safepoint UpdateRecord table. Apply inserts the
// corresponding runtime calls into the program; the LLVM back end instead
// consumes the table directly.
package shadowstack

import (
	"log/slog"

	"github.com/raymyers/ralph-aot/pkg/cfg"
	"github.com/raymyers/ralph-aot/pkg/coloring"
	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/liveness"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

// Contributor runs the shadow-stack pass. A Contributor holds no per-method
// state and may be shared by concurrent compilations.
type Contributor struct {
	Managed ManagedMethods
	// ExcludeParameters drops the receiver and parameters from live sets;
	// the caller already keeps them rooted.
	ExcludeParameters bool
	Logger            *slog.Logger
}

// NewContributor creates a contributor with parameter exclusion enabled
func NewContributor(managed ManagedMethods) *Contributor {
	return &Contributor{Managed: managed, ExcludeParameters: true}
}

func (c *Contributor) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Plan computes the frame size and UpdateRecord table for one method
func (c *Contributor) Plan(prog *ir.Program, method ir.MethodDescriptor, types *typeinfer.Types) (*Plan, error) {
	name := method.Name()
	n := prog.VariableCount()

	graph := cfg.Build(prog)
	live := liveness.Analyze(prog, graph)

	reserved := 0
	if c.ExcludeParameters {
		reserved = method.ParameterCount() + 1
	}
	safepoints := findSafepoints(prog, live, types, c.Managed, reserved)

	colors := coloring.Colorize(buildInterference(prog, safepoints))
	spilled := spilledVariables(n, safepoints)
	for v, s := range spilled {
		if s && colors[v] == coloring.Uncolored {
			return nil, invariantf(name, ir.Var(v), "live across a safepoint but has no color")
		}
	}

	plan := &Plan{
		Method:      name,
		FrameSize:   frameSize(colors, spilled),
		Colors:      colors,
		Spilled:     spilled,
		AutoSpilled: make([]bool, n),
		Safepoints:  safepoints,
	}

	var sim *simulation
	if plan.FrameSize > 0 {
		domGraph := cfg.DominatorGraph(cfg.BuildDominatorTree(graph))
		var err error
		sim, err = simulate(name, domGraph, safepoints, colors, plan.FrameSize)
		if err != nil {
			return nil, err
		}
		plan.AutoSpilled = propagateAutoSpill(prog, spilled, colors, sim.exit)
	}
	plan.Records = buildRecords(safepoints, sim, plan.AutoSpilled)

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	c.logger().Debug("shadow stack planned",
		"method", name,
		"safepoints", plan.SafepointCount(),
		"frame_size", plan.FrameSize,
		"stores", plan.StoreCount(),
		"auto_spilled", plan.AutoSpilledCount())
	return plan, nil
}

// Contribute infers types, plans and applies the pass to prog. It returns
// the frame size, 0 when the method needs no shadow-stack frame.
func (c *Contributor) Contribute(prog *ir.Program, method ir.MethodDescriptor) (int, error) {
	plan, err := c.Plan(prog, method, typeinfer.Infer(prog, method))
	if err != nil {
		return 0, err
	}
	if err := Apply(prog, plan); err != nil {
		return 0, err
	}
	return plan.FrameSize, nil
}
