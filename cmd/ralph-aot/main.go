package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raymyers/ralph-aot/pkg/config"
	"github.com/raymyers/ralph-aot/pkg/driver"
	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/irload"
	"github.com/raymyers/ralph-aot/pkg/logger"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dIR    bool
	dLive  bool
	dRoots bool
	dLLVM  bool
)

// Pass options; applied over the configuration only when set
var (
	configPath    string
	backend       string
	jobs          int
	excludeParams bool
	unmanaged     []string
	logLevel      string
	logFormat     string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Normalize CompCert-style single-dash flags to double-dash for pflag compatibility
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ralph-aot: %v\n", err)
		return 1
	}
	return 0
}

// debugFlagNames lists the debug flags that accept single-dash style
var debugFlagNames = []string{"dir", "dlive", "droots", "dllvm"}

// normalizeFlags converts CompCert-style single-dash flags like -droots to --droots
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-aot [file.yaml]",
		Short: "ralph-aot allocates precise GC roots for compiled methods",
		Long: `ralph-aot runs the shadow-stack pass of an ahead-of-time compiler
over methods written in YAML block notation. It finds the references
live at every safepoint, packs them into shadow-stack slots and emits
the minimal set of slot updates, either as inserted runtime calls or
as LLVM IR.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]

			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LoggerConfig(errOut)); err != nil {
				return err
			}
			defer logger.Close()

			mod, err := irload.LoadFile(filename)
			if err != nil {
				return err
			}
			opts := driver.OptionsFromConfig(cfg)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// Handle -dir: dump the listing before the pass
			if dIR {
				ir.NewPrinter(out).PrintModule(mod)
				return nil
			}

			// Handle -dlive: dump safepoints, slots and updates
			if dLive {
				return doLive(ctx, mod, opts, out)
			}

			// Handle -droots: insert root updates and dump the listing
			if dRoots {
				return doRoots(ctx, filename, mod, opts, out)
			}

			// Handle -dllvm: emit LLVM IR
			if dLLVM {
				return doLLVM(ctx, filename, mod, opts, out)
			}

			return doCompile(ctx, mod, opts, out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dIR, "dir", "", false, "Dump the method listing before the pass")
	rootCmd.Flags().BoolVarP(&dLive, "dlive", "", false, "Dump safepoint live sets, slot colors and updates")
	rootCmd.Flags().BoolVarP(&dRoots, "droots", "", false, "Dump the listing after root insertion")
	rootCmd.Flags().BoolVarP(&dLLVM, "dllvm", "", false, "Dump LLVM IR")

	addPassFlags(rootCmd.Flags())
	return rootCmd
}

// addPassFlags registers the flags that override configuration values
func addPassFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "Read configuration from a YAML file")
	fs.StringVar(&backend, "backend", config.BackendInsert, "Backend: insert or llvm")
	fs.IntVarP(&jobs, "jobs", "j", 0, "Methods planned concurrently")
	fs.BoolVar(&excludeParams, "exclude-params", true, "Never spill the receiver and parameters")
	fs.StringSliceVar(&unmanaged, "unmanaged", nil, "Classes whose methods never collect")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig layers explicitly set flags over the file and environment
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("backend") {
		cfg.Backend = backend
	}
	if fs.Changed("jobs") {
		cfg.Jobs = jobs
	}
	if fs.Changed("exclude-params") {
		cfg.ExcludeParameters = excludeParams
	}
	if fs.Changed("unmanaged") {
		cfg.UnmanagedClasses = append(cfg.UnmanagedClasses, unmanaged...)
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// doLive plans every method and dumps the plans
func doLive(ctx context.Context, mod *ir.Module, opts driver.Options, out io.Writer) error {
	results, err := driver.Plan(ctx, mod, opts)
	if err != nil {
		return err
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		r.Plan.Dump(out)
	}
	return nil
}

// doRoots inserts root updates and writes the listing to .roots.ir
func doRoots(ctx context.Context, filename string, mod *ir.Module, opts driver.Options, out io.Writer) error {
	opts.Backend = config.BackendInsert
	if _, err := driver.Compile(ctx, mod, opts); err != nil {
		return err
	}

	outputFilename := rootsOutputFilename(filename)
	outFile, err := os.Create(outputFilename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputFilename, err)
	}
	defer outFile.Close()

	// Print the listing to the file
	ir.NewPrinter(outFile).PrintModule(mod)

	// Also print to stdout for convenience
	ir.NewPrinter(out).PrintModule(mod)
	return nil
}

// doLLVM lowers the module and writes it to .ll
func doLLVM(ctx context.Context, filename string, mod *ir.Module, opts driver.Options, out io.Writer) error {
	opts.Backend = config.BackendLLVM
	res, err := driver.Compile(ctx, mod, opts)
	if err != nil {
		return err
	}
	text := res.Module.String()

	outputFilename := llvmOutputFilename(filename)
	if err := os.WriteFile(outputFilename, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFilename, err)
	}
	fmt.Fprint(out, text)
	return nil
}

// doCompile runs the configured backend and reports frame sizes
func doCompile(ctx context.Context, mod *ir.Module, opts driver.Options, out io.Writer) error {
	res, err := driver.Compile(ctx, mod, opts)
	if err != nil {
		return err
	}
	for _, m := range res.Methods {
		name := m.Method.Descriptor.Name()
		if layout, ok := res.Frames[name]; ok && layout.Slots > 0 {
			fmt.Fprintf(out, "%s: %d slots, %d bytes\n", name, layout.Slots, layout.TotalSize)
			continue
		}
		fmt.Fprintf(out, "%s: %d slots\n", name, m.Plan.FrameSize)
	}
	if len(res.Strings) > 0 {
		fmt.Fprintf(out, "strings: %s\n", strings.Join(quoteAll(res.Strings), " "))
	}
	return nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// baseName strips the YAML extension from the input filename
func baseName(filename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(filename, ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}

// rootsOutputFilename returns the output filename for -droots
func rootsOutputFilename(filename string) string {
	return baseName(filename) + ".roots.ir"
}

// llvmOutputFilename returns the output filename for -dllvm
func llvmOutputFilename(filename string) string {
	return baseName(filename) + ".ll"
}
