// Package config holds the process-wide engine configuration.
//
// Configuration is parsed exactly once at startup from the RTGUARD_OPTIONS
// environment variable (sanitizer-style "key=value:key=value" string) and is
// read-only afterwards. No subsystem mutates it concurrently with reads;
// re-initialization mid-process is unsupported.
//
// An optional options file in env format can be loaded first by pointing
// RTGUARD_OPTIONS_FILE at it, which is convenient for CI setups that cannot
// easily thread environment variables through their runners.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// OptionsEnv is the environment variable holding the options string.
	OptionsEnv = "RTGUARD_OPTIONS"

	// OptionsFileEnv names an env-format file to load before reading
	// OptionsEnv. Values already present in the environment win.
	OptionsFileEnv = "RTGUARD_OPTIONS_FILE"

	// ViolationExitCode is the process exit status used when the engine
	// terminates the process because of a detected violation. Distinct
	// from 0 (clean exit), 1 (generic failure) and 2 (Go runtime panic).
	ViolationExitCode = 43
)

// Config is the engine configuration. Read-mostly after initialization;
// every field is safe for concurrent reads.
type Config struct {
	// Enabled is the global kill switch. When false, notifications and
	// wrappers degrade to near-no-ops.
	Enabled bool

	// HaltOnError terminates the process with ViolationExitCode after the
	// first reported violation.
	HaltOnError bool

	// ErrorLimit halts the process after this many reported violations
	// even when HaltOnError is false. Zero means unlimited.
	ErrorLimit int

	// Suppressions is the list of operation-name globs that never raise
	// violations.
	Suppressions []string

	// SuppressEqualStacks drops repeat violations from the same call site
	// so a loop does not flood the sink with identical records.
	SuppressEqualStacks bool

	// Output selects the diagnostic sink: "stderr", "stdout", or a file
	// path (opened in append mode).
	Output string

	// Verbose surfaces tool-internal chatter: resolution failures and
	// notification imbalances.
	Verbose bool
}

// Default returns the configuration used when RTGUARD_OPTIONS is unset.
// Halting on the first violation is the default: a safety tool that only
// prints is too easy to ignore in a long test run.
func Default() Config {
	return Config{
		Enabled:             true,
		HaltOnError:         true,
		SuppressEqualStacks: true,
		Output:              "stderr",
	}
}

// FromEnv loads the optional options file and parses RTGUARD_OPTIONS.
//
// Parsing is forgiving: unknown keys and malformed values are reported in
// the returned error, but the Config result is always usable, with every
// recognized option applied and defaults filling the rest. The caller
// decides whether to treat the error as a warning.
func FromEnv() (Config, error) {
	var errs []error
	if file := os.Getenv(OptionsFileEnv); file != "" {
		if err := godotenv.Load(file); err != nil {
			errs = append(errs, fmt.Errorf("options file %s: %w", file, err))
		}
	}
	cfg, err := Parse(os.Getenv(OptionsEnv))
	if err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// Parse parses a sanitizer-style options string, e.g.
//
//	halt_on_error=false:suppressions=mutex-*,sleep:output=/tmp/rt.log
//
// Entries are colon-separated key=value pairs. Suppression patterns are
// comma-separated within their value, which is why ':' rather than ',' is
// the entry separator.
func Parse(options string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(options) == "" {
		return cfg, nil
	}

	var errs []error
	for _, entry := range strings.Split(options, ":") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !found {
			errs = append(errs, fmt.Errorf("option %q: missing '='", entry))
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "enabled":
			setBool(&cfg.Enabled, key, value, &errs)
		case "halt_on_error":
			setBool(&cfg.HaltOnError, key, value, &errs)
		case "suppress_equal_stacks":
			setBool(&cfg.SuppressEqualStacks, key, value, &errs)
		case "verbose":
			setBool(&cfg.Verbose, key, value, &errs)
		case "error_limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("option %s=%q: want a non-negative integer", key, value))
				continue
			}
			cfg.ErrorLimit = n
		case "suppressions":
			for _, p := range strings.Split(value, ",") {
				if p = strings.TrimSpace(p); p != "" {
					cfg.Suppressions = append(cfg.Suppressions, p)
				}
			}
		case "output":
			if value == "" {
				errs = append(errs, fmt.Errorf("option %s: empty value", key))
				continue
			}
			cfg.Output = value
		default:
			errs = append(errs, fmt.Errorf("unknown option %q", key))
		}
	}
	return cfg, errors.Join(errs...)
}

func setBool(dst *bool, key, value string, errs *[]error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("option %s=%q: want a boolean", key, value))
		return
	}
	*dst = b
}

// Sink opens the diagnostic sink selected by cfg.Output.
//
// It returns the writer, a flush function to run before process exit, and
// an error when a file sink cannot be opened. The flush function is safe to
// call more than once. On error the returned writer falls back to stderr so
// the engine never loses reports entirely.
func (c Config) Sink() (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch c.Output {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	}

	f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr, noop, fmt.Errorf("open output %s: %w", c.Output, err)
	}
	closed := false
	flush := func() error {
		if closed {
			return nil
		}
		closed = true
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return f, flush, nil
}
