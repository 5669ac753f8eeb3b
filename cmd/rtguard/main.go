// Package main implements the rtguard CLI tool.
//
// The rtguard tool adds realtime-safety checking to Go programs without a
// custom toolchain. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Reacting to //rtguard:nonblocking and //rtguard:blocking directives
//  3. Rewriting known-blocking stdlib calls to intercepted wrappers
//  4. Injecting the sanitizer runtime and building the result
//
// Usage:
//
//	rtguard build main.go          # Build with realtime-safety checking
//	rtguard run main.go -- -flag   # Run with realtime-safety checking
//
// A binary produced by rtguard behaves exactly like the original, except
// that blocking operations reached from realtime scopes are reported; with
// halt_on_error the process exits with code 43 on the first violation.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

// log is the tool's logger. Commands log progress at Info and internals
// at Debug; --verbose lowers the threshold to Debug.
var log *zap.SugaredLogger

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "rtguard",
		Short: "Realtime-safety sanitizer for Go programs",
		Long: `rtguard instruments Go programs to detect blocking operations
(allocation, locking, sleeping, file and network I/O) invoked from code
marked as realtime with //rtguard:nonblocking directives.

Instrumentation happens at the AST level; no custom toolchain is needed.
Runtime behavior is controlled by the RTGUARD_OPTIONS environment
variable, e.g. RTGUARD_OPTIONS="halt_on_error=0:output=rtguard.log".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log = newLogger(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug output")

	root.AddCommand(newBuildCmd(), newRunCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		// A propagated exit code from the instrumented program is not an
		// error of the tool itself.
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "rtguard: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rtguard version %s\n", version)
		},
	}
}

// newLogger builds the CLI logger. Console encoding without timestamps:
// output is for humans running a build tool, not for log aggregation.
func newLogger(debug bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.TimeKey = ""
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than refusing to run.
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
