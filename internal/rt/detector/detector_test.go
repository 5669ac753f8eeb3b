package detector

import (
	"strings"
	"testing"

	"github.com/kolkov/rtguard/internal/rt/config"
	rtcontext "github.com/kolkov/rtguard/internal/rt/context"
)

// newTestDetector builds a detector that never terminates the test process.
func newTestDetector(t *testing.T, cfg config.Config) (*Detector, *strings.Builder, *int) {
	t.Helper()
	var sink strings.Builder
	d := New(cfg, &sink)
	exitCode := -1
	d.SetExitFunc(func(code int) { exitCode = code })
	return d, &sink, &exitCode
}

func continueConfig() config.Config {
	cfg := config.Default()
	cfg.HaltOnError = false
	return cfg
}

// TestCheckDecisionTable walks the violation decision table row by row.
func TestCheckDecisionTable(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Config
		setup func(ctx *rtcontext.Context)
		op    string
		want  bool
	}{
		{
			name:  "no realtime context",
			cfg:   continueConfig(),
			setup: func(ctx *rtcontext.Context) {},
			op:    "sleep",
			want:  false,
		},
		{
			name: "engine globally disabled",
			cfg: func() config.Config {
				cfg := continueConfig()
				cfg.Enabled = false
				return cfg
			}(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter() },
			op:    "sleep",
			want:  false,
		},
		{
			name: "operation suppressed",
			cfg: func() config.Config {
				cfg := continueConfig()
				cfg.Suppressions = []string{"mutex-*"}
				return cfg
			}(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter() },
			op:    "mutex-lock",
			want:  false,
		},
		{
			name:  "reporting in progress",
			cfg:   continueConfig(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter(); ctx.BeginReport() },
			op:    "sleep",
			want:  false,
		},
		{
			name:  "suppression scope active",
			cfg:   continueConfig(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter(); ctx.PushDisabled() },
			op:    "sleep",
			want:  false,
		},
		{
			name:  "active unsuppressed context",
			cfg:   continueConfig(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter() },
			op:    "sleep",
			want:  true,
		},
		{
			name: "suppression pattern does not match",
			cfg: func() config.Config {
				cfg := continueConfig()
				cfg.Suppressions = []string{"file-*"}
				return cfg
			}(),
			setup: func(ctx *rtcontext.Context) { ctx.Enter() },
			op:    "sleep",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDetector(t, tt.cfg)
			ctx := rtcontext.New()
			tt.setup(ctx)
			if got := d.Check(ctx, tt.op); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestReportEmitsRecord(t *testing.T) {
	d, sink, exitCode := newTestDetector(t, continueConfig())
	ctx := rtcontext.New()
	ctx.Enter()

	d.Report(ctx, TypeUnsafeCall, "heap-alloc", 7, 0)

	out := sink.String()
	for _, want := range []string{"rtguard", "unsafe-library-call", `"heap-alloc"`, "goroutine 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if d.Violations() != 1 {
		t.Errorf("Violations() = %d, want 1", d.Violations())
	}
	if *exitCode != -1 {
		t.Errorf("continue mode must not exit, got code %d", *exitCode)
	}
	if ctx.Reporting() {
		t.Error("reporting marker left set after Report")
	}
}

func TestReportHaltOnError(t *testing.T) {
	cfg := config.Default() // halt_on_error=true
	d, sink, exitCode := newTestDetector(t, cfg)
	ctx := rtcontext.New()
	ctx.Enter()

	d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0)

	if *exitCode != config.ViolationExitCode {
		t.Errorf("halt mode exit code = %d, want %d", *exitCode, config.ViolationExitCode)
	}
	if !strings.Contains(sink.String(), "sleep") {
		t.Error("record must be written before the process terminates")
	}
}

func TestReportErrorLimit(t *testing.T) {
	cfg := continueConfig()
	cfg.ErrorLimit = 2
	cfg.SuppressEqualStacks = false
	d, _, exitCode := newTestDetector(t, cfg)
	ctx := rtcontext.New()
	ctx.Enter()

	d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0)
	if *exitCode != -1 {
		t.Fatalf("exited after first violation with error_limit=2")
	}
	d.Report(ctx, TypeUnsafeCall, "mutex-lock", 1, 0)
	if *exitCode != config.ViolationExitCode {
		t.Errorf("exit code after reaching error_limit = %d, want %d", *exitCode, config.ViolationExitCode)
	}
}

func TestReportDedup(t *testing.T) {
	d, sink, _ := newTestDetector(t, continueConfig())
	ctx := rtcontext.New()
	ctx.Enter()

	report := func() { d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0) }
	report()
	report() // same site, same operation: suppressed

	if got := strings.Count(sink.String(), "WARNING: REALTIME VIOLATION"); got != 1 {
		t.Errorf("equal-stack violations reported %d times, want 1", got)
	}
	if d.Violations() != 1 {
		t.Errorf("Violations() = %d, want 1 (duplicates not counted)", d.Violations())
	}

	// A different operation from the same site is a new violation.
	d.Report(ctx, TypeUnsafeCall, "heap-alloc", 1, 0)
	if d.Violations() != 2 {
		t.Errorf("Violations() = %d after distinct operation, want 2", d.Violations())
	}
}

func TestReportDedupDisabled(t *testing.T) {
	cfg := continueConfig()
	cfg.SuppressEqualStacks = false
	d, sink, _ := newTestDetector(t, cfg)
	ctx := rtcontext.New()
	ctx.Enter()

	d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0)
	d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0)

	if got := strings.Count(sink.String(), "WARNING: REALTIME VIOLATION"); got != 2 {
		t.Errorf("with dedup off, reported %d times, want 2", got)
	}
}

// TestReportReentrancyGuard verifies that a report already in flight blocks
// a nested report on the same goroutine.
func TestReportReentrancyGuard(t *testing.T) {
	d, sink, _ := newTestDetector(t, continueConfig())
	ctx := rtcontext.New()
	ctx.Enter()

	if !ctx.BeginReport() {
		t.Fatal("BeginReport() = false on fresh context")
	}
	// Simulates the reporter's internals hitting an intercepted operation.
	d.Report(ctx, TypeUnsafeCall, "heap-alloc", 1, 0)
	ctx.EndReport()

	if sink.Len() != 0 {
		t.Errorf("nested report produced output:\n%s", sink.String())
	}
	if d.Violations() != 0 {
		t.Errorf("nested report counted: Violations() = %d, want 0", d.Violations())
	}
}

func TestExplicitBlockingCallType(t *testing.T) {
	d, sink, _ := newTestDetector(t, continueConfig())
	ctx := rtcontext.New()
	ctx.Enter()

	d.Report(ctx, TypeBlockingCall, "audioCallbackHelper", 3, 0)

	if !strings.Contains(sink.String(), "blocking-call") {
		t.Errorf("explicit violation missing blocking-call label:\n%s", sink.String())
	}
}

func TestWarnf(t *testing.T) {
	d, sink, _ := newTestDetector(t, continueConfig())
	d.Warnf("context exit without matching enter on goroutine %d", 9)

	out := sink.String()
	if !strings.HasPrefix(out, "rtguard: ") {
		t.Errorf("warning missing tool prefix: %q", out)
	}
	if !strings.Contains(out, "goroutine 9") {
		t.Errorf("warning missing detail: %q", out)
	}
}

func TestWriteSummary(t *testing.T) {
	d, _, _ := newTestDetector(t, continueConfig())

	var clean strings.Builder
	d.WriteSummary(&clean)
	if !strings.Contains(clean.String(), "No realtime violations detected") {
		t.Errorf("clean summary wrong:\n%s", clean.String())
	}

	ctx := rtcontext.New()
	ctx.Enter()
	d.Report(ctx, TypeUnsafeCall, "sleep", 1, 0)

	var dirty strings.Builder
	d.WriteSummary(&dirty)
	if !strings.Contains(dirty.String(), "1 realtime violation(s) detected") {
		t.Errorf("summary after violation wrong:\n%s", dirty.String())
	}
}
