// Package config holds the compiler settings. Values are layered:
// defaults, then an optional YAML file, then RALPH_AOT_* environment
// variables. Command line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-aot/pkg/logger"
)

// Backends
const (
	BackendInsert = "insert" // insert root registration calls into the program
	BackendLLVM   = "llvm"   // emit LLVM IR with native frame slots
)

// Environment variables
const (
	EnvBackend          = "RALPH_AOT_BACKEND"
	EnvJobs             = "RALPH_AOT_JOBS"
	EnvExcludeParams    = "RALPH_AOT_EXCLUDE_PARAMS"
	EnvUnmanagedClasses = "RALPH_AOT_UNMANAGED_CLASSES"
	EnvLogLevel         = "RALPH_AOT_LOG_LEVEL"
	EnvLogFormat        = "RALPH_AOT_LOG_FORMAT"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrInvalidJobs    = errors.New("jobs must be positive")
)

// Config is the complete compiler configuration
type Config struct {
	Backend           string   `yaml:"backend"`
	Jobs              int      `yaml:"jobs"`
	ExcludeParameters bool     `yaml:"exclude_parameters"`
	UnmanagedClasses  []string `yaml:"unmanaged_classes"`
	UnmanagedMethods  []string `yaml:"unmanaged_methods"`
	Log               Log      `yaml:"log"`
}

// Log configures diagnostics output
type Log struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
	File      string `yaml:"file"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:           BackendInsert,
		Jobs:              runtime.GOMAXPROCS(0),
		ExcludeParameters: true,
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if
// path is not empty) and the environment
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Decode overlays YAML settings read from r. Keys not present keep their
// current values; unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays the RALPH_AOT_* environment variables that are set
func (c *Config) ApplyEnv() {
	c.Backend = env.Str(EnvBackend, c.Backend)
	c.Jobs = env.Int(EnvJobs, c.Jobs)
	if env.Has(EnvExcludeParams) {
		c.ExcludeParameters = env.Bool(EnvExcludeParams)
	}
	if classes := env.Str(EnvUnmanagedClasses); classes != "" {
		c.UnmanagedClasses = append(c.UnmanagedClasses, splitList(classes)...)
	}
	c.Log.Level = env.Str(EnvLogLevel, c.Log.Level)
	c.Log.Format = env.Str(EnvLogFormat, c.Log.Format)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration can be used
func (c Config) Validate() error {
	switch c.Backend {
	case BackendInsert, BackendLLVM:
	default:
		return fmt.Errorf("%w %q (want %s or %s)", ErrUnknownBackend, c.Backend, BackendInsert, BackendLLVM)
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidJobs, c.Jobs)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// LoggerConfig converts the log section for logger.Init. It assumes the
// configuration has been validated.
func (c Config) LoggerConfig(output io.Writer) logger.Config {
	level, _ := logger.ParseLevel(c.Log.Level)
	return logger.Config{
		Level:     level,
		Format:    c.Log.Format,
		Output:    output,
		AddSource: c.Log.AddSource,
		LogFile:   c.Log.File,
	}
}
