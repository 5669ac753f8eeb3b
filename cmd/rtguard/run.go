// run.go implements the 'rtguard run' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kolkov/rtguard/cmd/rtguard/runtime"
)

// newRunCmd builds the 'rtguard run' command: instrument, build to a
// temporary binary, execute.
//
// Arguments after "--" go to the instrumented program:
//
//	rtguard run main.go -- -listen :8080
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "run [go build flags] [files] [-- program args]",
		Short:              "Run a Go program with realtime-safety checking",
		DisableFlagParsing: true,
		RunE: func(_ *cobra.Command, args []string) error {
			buildArgs, progArgs := splitRunArgs(args)
			cfg, err := parseBuildArgs(buildArgs)
			if err != nil {
				return err
			}
			if cfg.verbose {
				log = newLogger(true)
			}
			return runProgram(cfg, progArgs)
		},
	}
}

// splitRunArgs separates build inputs from the instrumented program's own
// arguments at the first "--".
func splitRunArgs(args []string) (buildArgs, progArgs []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// runProgram builds the instrumented binary into the workspace and
// executes it, forwarding stdio and the environment. The program's exit
// code is propagated, which is how a halt_on_error violation (exit 43)
// reaches CI.
func runProgram(cfg *buildConfig, progArgs []string) error {
	if err := runtime.Validate(); err != nil {
		return fmt.Errorf("sanitizer runtime not found: %w", err)
	}

	ws, err := createWorkspace()
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	defer ws.cleanup()

	if err := instrumentSources(cfg, ws); err != nil {
		return err
	}
	if err := ws.setupRuntimeLinking(cfg.sourceDir()); err != nil {
		return err
	}

	binPath := filepath.Join(ws.dir, "rtguard-binary")
	buildCfg := *cfg
	buildCfg.outputFile = binPath
	buildCfg.workDir = ws.dir
	if err := ws.build(&buildCfg); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	log.Debugf("running %s", binPath)
	cmd := exec.Command(binPath, progArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &exitCodeError{code: exitErr.ExitCode()}
		}
		return fmt.Errorf("running instrumented program: %w", err)
	}
	return nil
}

// exitCodeError carries an instrumented program's exit code up to main so
// the tool can exit with the same status.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("instrumented program exited with code %d", e.code)
}
