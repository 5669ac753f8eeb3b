// Package runtime links the sanitizer runtime into instrumented builds.
//
// Instrumented code imports the rtguard public API. When the tool runs
// from a source checkout the import has to be redirected to the local
// tree, which this package does with a generated go.mod carrying a
// replace directive. Replace directives from the instrumented project's
// own go.mod are carried over with relative paths rebased, since the
// build happens in a temporary workspace.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// PackagePath is the import path instrumented code uses to reach the
// sanitizer runtime.
const PackagePath = "github.com/kolkov/rtguard/rtguard"

// modulePath is the module containing the runtime.
const modulePath = "github.com/kolkov/rtguard"

// Validate checks that the sanitizer runtime can be linked.
//
// A source checkout is detected by its internal/rt/api directory; outside
// a checkout the published module is assumed reachable through the module
// proxy, so validation passes.
func Validate() error {
	if _, err := FindProjectRoot(); err == nil {
		return nil
	}
	return nil
}

// FindProjectRoot locates the root of the rtguard source tree.
//
// The marker is the internal/rt/api directory rather than a bare go.mod,
// because a go.mod search would stop at the instrumented user project.
// The search walks up from the working directory first and falls back to
// the executable's location, which covers both "run from the repo" and
// "installed into repo/bin" layouts.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		marker := filepath.Join(dir, "internal", "rt", "api")
		if _, err := os.Stat(marker); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidates := []string{
			exeDir,
			filepath.Dir(exeDir),
			filepath.Dir(filepath.Dir(exeDir)),
		}
		for _, candidate := range candidates {
			marker := filepath.Join(candidate, "internal", "rt", "api")
			if _, err := os.Stat(marker); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find rtguard project root")
}

// findOriginalGoMod walks up from startDir to the go.mod of the project
// being instrumented. Returns "" when none exists.
func findOriginalGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// BuildFlags returns extra flags for building instrumented code. Currently
// none are required; the hook exists so build and run stay in sync if that
// changes.
func BuildFlags() []string {
	return []string{}
}

// ModFileOverlay writes a go.mod for the instrumentation workspace.
//
// The generated module requires the sanitizer and, when running from a
// source checkout, replaces it with the local tree. sourceDir points at
// the code being instrumented; its project's replace directives are
// preserved with relative paths made absolute.
//
// Returns the overlay path, or "" when no overlay is needed (published
// module, no local checkout).
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		// Published mode: the module proxy supplies the runtime.
		//nolint:nilerr // absence of a checkout is not a failure
		return "", nil
	}

	var content strings.Builder
	content.WriteString("module instrumented\n\n")
	content.WriteString("go 1.24.0\n\n")
	content.WriteString(fmt.Sprintf("require %s v0.0.0\n\n", modulePath))
	content.WriteString(fmt.Sprintf("replace %s => %s\n", modulePath, projectRoot))

	if sourceDir != "" {
		if originalGoMod := findOriginalGoMod(sourceDir); originalGoMod != "" {
			if directives := extractReplaceDirectives(originalGoMod); directives != "" {
				content.WriteString("\n// Replace directives carried over from the instrumented project:\n")
				content.WriteString(directives)
			}
		}
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, []byte(content.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	return overlayPath, nil
}

// extractReplaceDirectives parses a go.mod and re-emits its replace
// directives with local relative paths rebased to absolute ones.
func extractReplaceDirectives(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}
	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return ""
	}
	if len(modFile.Replace) == 0 {
		return ""
	}

	goModDir := filepath.Dir(goModPath)
	var result strings.Builder

	for _, rep := range modFile.Replace {
		newPath := rep.New.Path
		if rep.New.Version == "" && isLocalPath(newPath) && !filepath.IsAbs(newPath) {
			if absPath, err := filepath.Abs(filepath.Join(goModDir, newPath)); err == nil {
				newPath = absPath
			}
		}

		result.WriteString("replace ")
		result.WriteString(rep.Old.Path)
		if rep.Old.Version != "" {
			result.WriteString(" " + rep.Old.Version)
		}
		result.WriteString(" => " + newPath)
		if rep.New.Version != "" {
			result.WriteString(" " + rep.New.Version)
		}
		result.WriteString("\n")
	}
	return result.String()
}

// isLocalPath reports whether a replace target is a filesystem path
// rather than a module path.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter (C:\...).
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	return false
}
