package main

import (
	"bytes"
	"errors"
	"flag"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/kper/funky/state"
)

const sampleProgram = `
define main (result 0) (define %0) {
  %0 = 1
  RETURN %0;
};
`

const sampleConfig = `
entrypoints:
  - function: main
    pc: 0
    variable: taut
run:
  variant: fast
`

func TestRun_MissingFlagsReturnsFailure(t *testing.T) {
	t.Parallel()

	code := runInSubprocess(t, "no-flags")
	if code != exitFailure {
		t.Fatalf("unexpected exit code: got %d want %d", code, exitFailure)
	}
}

func TestRun_ValidProgramReturnsSuccess(t *testing.T) {
	t.Parallel()

	code := runInSubprocess(t, "valid")
	if code != exitSuccess {
		t.Fatalf("unexpected exit code: got %d want %d", code, exitSuccess)
	}
}

func TestRun_MissingProgramFileReturnsFailure(t *testing.T) {
	t.Parallel()

	code := runInSubprocess(t, "missing-program")
	if code != exitFailure {
		t.Fatalf("unexpected exit code: got %d want %d", code, exitFailure)
	}
}

func runInSubprocess(t *testing.T, scenario string) int {
	t.Helper()

	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("failed to resolve test executable: %v", err)
	}

	cmd := exec.Command(executable, "-test.run=^TestRunHelperProcess$")
	cmd.Env = append(os.Environ(), "FUNKY_RUN_HELPER=1", "FUNKY_RUN_SCENARIO="+scenario, "FUNKY_RUN_DIR="+t.TempDir())

	err = cmd.Run()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("failed to run helper process: %v", err)
	}
	return exitErr.ExitCode()
}

func TestRunHelperProcess(t *testing.T) {
	if os.Getenv("FUNKY_RUN_HELPER") != "1" {
		return
	}

	scenario := os.Getenv("FUNKY_RUN_SCENARIO")
	dir := os.Getenv("FUNKY_RUN_DIR")

	flag.CommandLine = flag.NewFlagSet("funky-helper", flag.ContinueOnError)
	os.Args = []string{"funky"}
	*flagProgram = ""
	*flagConfig = ""
	*flagQuiet = true
	log.SetOutput(os.Stderr)

	switch scenario {
	case "valid":
		programPath := filepath.Join(dir, "program.ir")
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(programPath, []byte(sampleProgram), 0o600); err != nil {
			os.Exit(exitFailure)
		}
		if err := os.WriteFile(configPath, []byte(sampleConfig), 0o600); err != nil {
			os.Exit(exitFailure)
		}
		*flagProgram = programPath
		*flagConfig = configPath
	case "missing-program":
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(configPath, []byte(sampleConfig), 0o600); err != nil {
			os.Exit(exitFailure)
		}
		*flagProgram = filepath.Join(dir, "does-not-exist.ir")
		*flagConfig = configPath
	case "no-flags":
		// leave both flags empty
	}

	os.Exit(run())
}

func TestRenderSinkContainsFunctionAndVariable(t *testing.T) {
	st := state.New()
	f := st.CacheFact(st.NewFact("main", 2, 3, st.EnsureVar("main", "x")))
	line := renderSink(f)
	if !bytes.Contains([]byte(line), []byte("main")) || !bytes.Contains([]byte(line), []byte("x")) {
		t.Fatalf("renderSink output missing expected fields: %q", line)
	}
}
