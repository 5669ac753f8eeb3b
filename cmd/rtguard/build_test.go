package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseBuildArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantSources []string
		wantOutput  string
		wantFlags   []string
		wantVerbose bool
	}{
		{
			name:        "defaults to current directory",
			args:        nil,
			wantSources: []string{"."},
		},
		{
			name:        "output flag",
			args:        []string{"-o", "myapp", "main.go"},
			wantSources: []string{"main.go"},
			wantOutput:  "myapp",
		},
		{
			name:        "output flag equals form",
			args:        []string{"-o=myapp", "main.go"},
			wantSources: []string{"main.go"},
			wantOutput:  "myapp",
		},
		{
			name:        "flag with separate value",
			args:        []string{"-ldflags", "-s -w", "main.go"},
			wantSources: []string{"main.go"},
			wantFlags:   []string{"-ldflags", "-s -w"},
		},
		{
			name:        "flag with equals value",
			args:        []string{"-tags=netgo", "main.go"},
			wantSources: []string{"main.go"},
			wantFlags:   []string{"-tags=netgo"},
		},
		{
			name:        "verbose",
			args:        []string{"-v", "main.go"},
			wantSources: []string{"main.go"},
			wantVerbose: true,
		},
		{
			name:        "multiple sources",
			args:        []string{"main.go", "helper.go"},
			wantSources: []string{"main.go", "helper.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseBuildArgs(tt.args)
			if err != nil {
				t.Fatalf("parseBuildArgs(%v): %v", tt.args, err)
			}
			if !reflect.DeepEqual(cfg.sourceFiles, tt.wantSources) {
				t.Errorf("sourceFiles = %v, want %v", cfg.sourceFiles, tt.wantSources)
			}
			if cfg.outputFile != tt.wantOutput {
				t.Errorf("outputFile = %q, want %q", cfg.outputFile, tt.wantOutput)
			}
			if len(cfg.buildFlags) != len(tt.wantFlags) || (len(tt.wantFlags) > 0 && !reflect.DeepEqual(cfg.buildFlags, tt.wantFlags)) {
				t.Errorf("buildFlags = %v, want %v", cfg.buildFlags, tt.wantFlags)
			}
			if cfg.verbose != tt.wantVerbose {
				t.Errorf("verbose = %v, want %v", cfg.verbose, tt.wantVerbose)
			}
		})
	}
}

func TestParseBuildArgsMissingOutputValue(t *testing.T) {
	if _, err := parseBuildArgs([]string{"-o"}); err == nil {
		t.Fatal("expected error for trailing -o")
	}
}

func TestFlagNeedsValue(t *testing.T) {
	tests := []struct {
		flag string
		want bool
	}{
		{"-ldflags", true},
		{"-ldflags=-s", false},
		{"-tags", true},
		{"-race", false},
		{"-trimpath", false},
	}
	for _, tt := range tests {
		if got := flagNeedsValue(tt.flag); got != tt.want {
			t.Errorf("flagNeedsValue(%q) = %v, want %v", tt.flag, got, tt.want)
		}
	}
}

func TestSplitRunArgs(t *testing.T) {
	build, prog := splitRunArgs([]string{"main.go", "--", "-listen", ":8080"})
	if !reflect.DeepEqual(build, []string{"main.go"}) {
		t.Errorf("build args = %v", build)
	}
	if !reflect.DeepEqual(prog, []string{"-listen", ":8080"}) {
		t.Errorf("program args = %v", prog)
	}

	build, prog = splitRunArgs([]string{"main.go"})
	if !reflect.DeepEqual(build, []string{"main.go"}) || prog != nil {
		t.Errorf("no-separator split = %v, %v", build, prog)
	}
}

func TestCollectGoFiles(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"app.go":      "package main\n",
		"app_test.go": "package main\n",
		"notes.txt":   "not go\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := collectGoFiles([]string{dir}, dir)
	if err != nil {
		t.Fatalf("collectGoFiles: %v", err)
	}

	want := []string{filepath.Join(dir, "app.go")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("collectGoFiles = %v, want %v (tests and non-Go files excluded)", files, want)
	}
}

func TestCollectGoFilesMissingSource(t *testing.T) {
	if _, err := collectGoFiles([]string{"definitely-missing.go"}, t.TempDir()); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestBuildConfigSourceDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &buildConfig{sourceFiles: []string{file}, workDir: dir}
	if got := cfg.sourceDir(); got != dir {
		t.Errorf("sourceDir() = %q, want %q", got, dir)
	}

	cfg = &buildConfig{sourceFiles: []string{dir}, workDir: "/elsewhere"}
	if got := cfg.sourceDir(); got != dir {
		t.Errorf("sourceDir() for directory = %q, want %q", got, dir)
	}
}
