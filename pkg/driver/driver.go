// Package driver compiles a module: it plans the shadow stack of every
// method in parallel and then hands the plans to a backend.
package driver

import (
	"context"
	"fmt"
	"runtime"

	llvm "github.com/llir/llvm/ir"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-aot/pkg/config"
	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/llvmgen"
	"github.com/raymyers/ralph-aot/pkg/logger"
	"github.com/raymyers/ralph-aot/pkg/shadowstack"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

// Options controls a compilation
type Options struct {
	Backend           string // config.BackendInsert or config.BackendLLVM
	Jobs              int    // concurrent planning workers; <= 0 means GOMAXPROCS
	ExcludeParameters bool
	Managed           shadowstack.ManagedMethods
}

// OptionsFromConfig builds options from a validated configuration
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Backend:           cfg.Backend,
		Jobs:              cfg.Jobs,
		ExcludeParameters: cfg.ExcludeParameters,
		Managed:           shadowstack.NewMethodRepository(cfg.UnmanagedClasses, cfg.UnmanagedMethods),
	}
}

// MethodResult is the analysis of one method
type MethodResult struct {
	Method *ir.Method
	Types  *typeinfer.Types
	Plan   *shadowstack.Plan
}

// Result is the output of Compile. Module and Frames are set by the llvm
// backend; the insert backend rewrites the programs of the input module.
type Result struct {
	Methods []MethodResult
	Module  *llvm.Module
	Frames  map[string]llvmgen.FrameLayout
	Strings []string
}

// FrameSize returns the planned slot count of a method, by name
func (r *Result) FrameSize(name string) (int, bool) {
	for _, m := range r.Methods {
		if m.Method.Descriptor.Name() == name {
			return m.Plan.FrameSize, true
		}
	}
	return 0, false
}

func (o Options) contributor() *shadowstack.Contributor {
	managed := o.Managed
	if managed == nil {
		managed = shadowstack.NewMethodRepository(nil, nil)
	}
	c := shadowstack.NewContributor(managed)
	c.ExcludeParameters = o.ExcludeParameters
	c.Logger = logger.Logger()
	return c
}

// Plan infers types and plans the shadow stack of every method. Methods
// are analyzed concurrently; none of their programs is modified.
func Plan(ctx context.Context, mod *ir.Module, opts Options) ([]MethodResult, error) {
	logger.LogPhase("plan", len(mod.Methods))
	c := opts.contributor()
	results := make([]MethodResult, len(mod.Methods))

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, m := range mod.Methods {
		i, m := i, m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := m.Descriptor.Name()
			vtypes := typeinfer.Infer(m.Program, m.Descriptor)
			plan, err := c.Plan(m.Program, m.Descriptor, vtypes)
			if err == nil {
				err = plan.Validate()
			}
			if err != nil {
				logger.LogMethodError("plan", name, err)
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = MethodResult{Method: m, Types: vtypes, Plan: plan}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.LogPhaseComplete("plan")
	return results, nil
}

// Compile plans every method and runs the selected backend
func Compile(ctx context.Context, mod *ir.Module, opts Options) (*Result, error) {
	methods, err := Plan(ctx, mod, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Methods: methods}

	switch opts.Backend {
	case config.BackendInsert, "":
		err = insertRoots(ctx, methods)
	case config.BackendLLVM:
		err = emitLLVM(ctx, methods, res)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// insertRoots rewrites each program with its root registration calls.
// Every plan is checked before the first program is rewritten, so on
// error the module is left as it was.
func insertRoots(ctx context.Context, methods []MethodResult) error {
	logger.LogPhase("insert", len(methods))
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := m.Method.Descriptor.Name()
		if err := shadowstack.Check(m.Method.Program, m.Plan); err != nil {
			logger.LogMethodError("insert", name, err)
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for _, m := range methods {
		if err := shadowstack.Apply(m.Method.Program, m.Plan); err != nil {
			return fmt.Errorf("%s: %w", m.Method.Descriptor.Name(), err)
		}
	}
	logger.LogPhaseComplete("insert")
	return nil
}

// emitLLVM lowers every method into one LLVM module
func emitLLVM(ctx context.Context, methods []MethodResult, res *Result) error {
	logger.LogPhase("llvm", len(methods))
	gen := llvmgen.NewGenerator()
	for _, m := range methods {
		gen.Declare(m.Method)
	}
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := gen.Lower(m.Method, m.Plan, m.Types); err != nil {
			logger.LogMethodError("llvm", m.Method.Descriptor.Name(), err)
			return err
		}
	}
	res.Module = gen.Module()
	res.Frames = gen.Frames()
	res.Strings = gen.Strings()
	logger.LogPhaseComplete("llvm")
	return nil
}
