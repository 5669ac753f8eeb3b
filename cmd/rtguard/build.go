// build.go implements the 'rtguard build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolkov/rtguard/cmd/rtguard/instrument"
	"github.com/kolkov/rtguard/cmd/rtguard/runtime"
)

// newBuildCmd builds the 'rtguard build' command.
//
// Flag parsing is disabled so unrecognized go build flags (-ldflags,
// -tags, ...) pass through untouched; the command does its own light
// argument split instead.
func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "build [go build flags] [files or packages]",
		Short:              "Build a Go program with realtime-safety checking",
		DisableFlagParsing: true,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := parseBuildArgs(args)
			if err != nil {
				return err
			}
			if cfg.verbose {
				log = newLogger(true)
			}
			return runBuild(cfg)
		},
	}
}

// runBuild instruments the sources into a temporary workspace and builds
// them there.
//
// Flow:
//  1. Validate the runtime is linkable
//  2. Create a temporary workspace
//  3. Instrument source files into it
//  4. Generate the workspace go.mod (runtime replace directive)
//  5. Run 'go build' in the workspace
func runBuild(cfg *buildConfig) error {
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
	if err := ws.build(cfg); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if cfg.outputFile != "" {
		log.Infof("built %s", cfg.outputFile)
	}
	return nil
}

// buildConfig holds the parsed 'rtguard build' invocation.
type buildConfig struct {
	sourceFiles []string // files/packages to instrument and build
	outputFile  string   // -o flag
	buildFlags  []string // pass-through go build flags
	workDir     string   // directory the command was invoked from
	verbose     bool     // -v flag
}

// sourceDir returns the directory of the first source input, used to find
// the instrumented project's go.mod.
func (c *buildConfig) sourceDir() string {
	if len(c.sourceFiles) == 0 {
		return c.workDir
	}
	first := c.sourceFiles[0]
	if !filepath.IsAbs(first) {
		first = filepath.Join(c.workDir, first)
	}
	if info, err := os.Stat(first); err == nil && info.IsDir() {
		return first
	}
	return filepath.Dir(first)
}

// parseBuildArgs splits an argument list into source inputs, the output
// file and pass-through go build flags.
func parseBuildArgs(args []string) (*buildConfig, error) {
	cfg := &buildConfig{}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Value for the preceding flag, even when it starts with a dash
		// (e.g. -ldflags "-s -w").
		if expectingValue {
			cfg.buildFlags = append(cfg.buildFlags, arg)
			expectingValue = false
			continue
		}

		switch {
		case arg == "-o":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			cfg.outputFile = args[i]
		case strings.HasPrefix(arg, "-o="):
			cfg.outputFile = strings.TrimPrefix(arg, "-o=")
		case arg == "-v" || arg == "--verbose":
			cfg.verbose = true
		case strings.HasPrefix(arg, "-"):
			cfg.buildFlags = append(cfg.buildFlags, arg)
			expectingValue = flagNeedsValue(arg)
		default:
			cfg.sourceFiles = append(cfg.sourceFiles, arg)
		}
	}

	if len(cfg.sourceFiles) == 0 {
		cfg.sourceFiles = []string{"."}
	}
	return cfg, nil
}

// flagNeedsValue reports whether a go build flag consumes the next
// argument.
func flagNeedsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}
	for _, vf := range valueFlags {
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}
	return false
}

// workspace is the temporary directory an instrumented build runs in.
type workspace struct {
	dir    string // workspace root (go.mod lives here)
	srcDir string // instrumented sources
}

func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "rtguard-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}
	return &workspace{dir: dir, srcDir: srcDir}, nil
}

func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
	}
}

// setupRuntimeLinking writes the workspace go.mod and resolves its
// dependencies.
func (w *workspace) setupRuntimeLinking(sourceDir string) error {
	overlayPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	if overlayPath == "" {
		return nil
	}

	goModPath := filepath.Join(w.dir, "go.mod")
	if err := os.Rename(overlayPath, goModPath); err != nil {
		return fmt.Errorf("failed to set up go.mod: %w", err)
	}

	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.dir
	tidyCmd.Stdout = os.Stdout
	tidyCmd.Stderr = os.Stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}
	return nil
}

// build runs 'go build' over the instrumented sources.
func (w *workspace) build(cfg *buildConfig) error {
	args := []string{"build"}

	if cfg.outputFile != "" {
		outputPath := cfg.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(cfg.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, cfg.buildFlags...)
	args = append(args, runtime.BuildFlags()...)
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// instrumentSources instruments every collected source file into the
// workspace.
func instrumentSources(cfg *buildConfig, ws *workspace) error {
	goFiles, err := collectGoFiles(cfg.sourceFiles, cfg.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	for _, srcPath := range goFiles {
		result, err := instrument.File(srcPath, nil)
		if err != nil {
			return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}

		// Directory structure is flattened: single-package builds only.
		outPath := filepath.Join(ws.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(result.Code), 0o644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		stats := result.Stats
		log.Infof("instrumented %s (%d sanitizer calls)", srcPath, stats.Total())
		if cfg.verbose {
			log.Debugf("  %d realtime scopes, %d blocking markers, %d calls rewritten, main injected: %v",
				stats.ScopesInserted, stats.MarkersInserted, stats.CallsRewritten, stats.MainInjected)
		}
	}
	return nil
}

// collectGoFiles expands files and directories into the list of .go files
// to instrument, excluding tests.
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
			continue
		}

		entries, err := os.ReadDir(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			goFiles = append(goFiles, filepath.Join(srcPath, name))
		}
	}
	return goFiles, nil
}
