package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/raymyers/ralph-aot/pkg/config"
)

const sample = `
methods:
  - name: Foo.f()V
    static: true
    blocks:
      - instructions:
          - {op: new, recv: 1, type: java.lang.Object}
          - {op: invoke, method: Foo.gc()V}
          - {op: invoke, method: "Foo.use(Ljava/lang/Object;)V", args: [1]}
          - {op: return}
`

// resetDebugFlags resets all global flag variables to their defaults
func resetDebugFlags() {
	dIR = false
	dLive = false
	dRoots = false
	dLLVM = false
	configPath = ""
	backend = config.BackendInsert
	jobs = 0
	excludeParams = true
	unmanaged = nil
	logLevel = ""
	logFormat = ""
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetDebugFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestDebugFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := append([]string{"config", "backend", "jobs", "exclude-params", "unmanaged", "log-level", "log-format"}, debugFlagNames...)
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	got := normalizeFlags([]string{"-droots", "-dllvm", "--dir", "-j", "2", "in.yaml"})
	want := []string{"--droots", "--dllvm", "--dir", "-j", "2", "in.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeFlags = %q, want %q", got, want)
	}
}

func TestNoArgsShowsHelp(t *testing.T) {
	out, _, err := execute(t)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ralph-aot [file.yaml]") {
		t.Errorf("expected usage, got %q", out)
	}
}

func TestOutputFilenames(t *testing.T) {
	tests := []struct {
		in, roots, ll string
	}{
		{"a.yaml", "a.roots.ir", "a.ll"},
		{"dir/b.yml", "dir/b.roots.ir", "dir/b.ll"},
		{"c.txt", "c.txt.roots.ir", "c.txt.ll"},
	}
	for _, tt := range tests {
		if got := rootsOutputFilename(tt.in); got != tt.roots {
			t.Errorf("rootsOutputFilename(%q) = %q, want %q", tt.in, got, tt.roots)
		}
		if got := llvmOutputFilename(tt.in); got != tt.ll {
			t.Errorf("llvmOutputFilename(%q) = %q, want %q", tt.in, got, tt.ll)
		}
	}
}

func TestDIRFlag(t *testing.T) {
	out, _, err := execute(t, "-dir", writeInput(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "static method Foo.f()V {") || !strings.Contains(out, "v1 = new java.lang.Object") {
		t.Errorf("unexpected listing:\n%s", out)
	}
	if strings.Contains(out, "registerGCRoot") {
		t.Errorf("-dir must print the listing before the pass:\n%s", out)
	}
}

func TestDRootsWritesFile(t *testing.T) {
	input := writeInput(t, sample)
	out, _, err := execute(t, "-droots", input)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(rootsOutputFilename(input))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if string(data) != out {
		t.Errorf("file and stdout differ\nfile:\n%s\nstdout:\n%s", data, out)
	}
	if !strings.Contains(out, "registerGCRoot(ILjava/lang/Object;)V(v2, v1)") {
		t.Errorf("expected root registration:\n%s", out)
	}
}

func TestDLLVMWritesFile(t *testing.T) {
	input := writeInput(t, sample)
	out, _, err := execute(t, "-dllvm", input)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(llvmOutputFilename(input))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if string(data) != out {
		t.Error("file and stdout differ")
	}
	if !strings.Contains(out, "@ralph.stackTop") {
		t.Errorf("expected shadow-stack frame:\n%s", out)
	}
}

func TestCompileReportsFrames(t *testing.T) {
	input := writeInput(t, sample)

	out, _, err := execute(t, input)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Foo.f()V: 1 slots\n" {
		t.Errorf("insert backend output = %q", out)
	}

	out, _, err = execute(t, "--backend", "llvm", input)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Foo.f()V: 1 slots, 32 bytes\n" {
		t.Errorf("llvm backend output = %q", out)
	}
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ralph.yaml")
	if err := os.WriteFile(cfgPath, []byte("backend: llvm\nunmanaged_classes: [Foo]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	input := writeInput(t, sample)

	// Every call of Foo is unmanaged, only the allocation remains a safepoint
	out, _, err := execute(t, "--config", cfgPath, input)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Foo.f()V: 0 slots\n" {
		t.Errorf("output = %q", out)
	}

	out, _, err = execute(t, "--config", cfgPath, "--backend", "insert", "--dir", input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "static method Foo.f()V") {
		t.Errorf("output = %q", out)
	}
}

func TestErrors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := execute(t, "--backend", "wasm", writeInput(t, sample))
		if !errors.Is(err, config.ErrUnknownBackend) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("missing input", func(t *testing.T) {
		_, _, err := execute(t, filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("invalid input", func(t *testing.T) {
		_, _, err := execute(t, writeInput(t, "methods:\n  - name: Foo.f()V\n    blocks: []\n"))
		if err == nil || !strings.Contains(err.Error(), "Foo.f()V") {
			t.Errorf("got %v", err)
		}
	})
	t.Run("bad jobs", func(t *testing.T) {
		_, _, err := execute(t, "-j", "0", writeInput(t, sample))
		if !errors.Is(err, config.ErrInvalidJobs) {
			t.Errorf("got %v", err)
		}
	})
}

func TestDebugLogging(t *testing.T) {
	_, errOut, err := execute(t, "--log-level", "debug", writeInput(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "phase=plan") {
		t.Errorf("expected phase log lines, got %q", errOut)
	}
}
