package detector

import (
	"fmt"
	"io"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/kolkov/rtguard/internal/rt/config"
	rtcontext "github.com/kolkov/rtguard/internal/rt/context"
	"github.com/kolkov/rtguard/internal/rt/suppress"
)

// Detector owns the violation decision and the reporting pipeline.
//
// Shared by all goroutines. The decision path reads only immutable
// configuration and the caller's own Context, so it needs no locking; the
// mutex below serializes sink output and the violation counter, and is
// taken only after a violation has been confirmed.
type Detector struct {
	cfg     config.Config
	matcher *suppress.Matcher

	// sink receives formatted violation records and tool-internal warnings.
	sink io.Writer

	// mu serializes report output across goroutines so records never
	// interleave on the sink. Bounded critical section, off the hot path.
	mu sync.Mutex

	// violations counts reported (post-dedup) violations.
	violations int

	// reported tracks violation sites already emitted when
	// SuppressEqualStacks is on. Key: Record.dedupKey().
	reported sync.Map

	// exit terminates the process on the halt path. Defaults to
	// atexit.Exit so registered sink flushers run first; tests swap it.
	exit func(code int)
}

// New builds a Detector over the given configuration and sink.
func New(cfg config.Config, sink io.Writer) *Detector {
	return &Detector{
		cfg:     cfg,
		matcher: suppress.New(cfg.Suppressions),
		sink:    sink,
		exit:    atexit.Exit,
	}
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() config.Config {
	return d.cfg
}

// Sink returns the writer that receives violation records. Used by the
// lifecycle layer to direct the end-of-run summary to the same place.
func (d *Detector) Sink() io.Writer {
	return d.sink
}

// Check applies the violation decision table to one intercepted call and
// reports whether a violation must be raised.
//
// Branch order matches how often each condition short-circuits in practice:
// nearly every intercepted call in a process happens outside any realtime
// context, so that test goes first. No locks, no allocation.
func (d *Detector) Check(ctx *rtcontext.Context, operation string) bool {
	if !ctx.InRealtimeContext() {
		return false
	}
	if !d.cfg.Enabled {
		return false
	}
	if ctx.Reporting() {
		// The reporter's own internals must never recurse into a
		// second violation.
		return false
	}
	if d.matcher.Match(operation) {
		return false
	}
	return true
}

// Report runs the full diagnostic pipeline for a confirmed violation:
// set the reporting marker, capture the stack, format and serialize the
// record, then apply the configured disposition.
//
// skip is the number of call frames between Report's caller and the
// intercepted call, so traces start at user code.
//
// The reporting marker is cleared on every path that does not terminate
// the process. Partial stacks are emitted rather than suppressed.
func (d *Detector) Report(ctx *rtcontext.Context, typ Type, operation string, gid int64, skip int) {
	if !ctx.BeginReport() {
		// A report is already in flight on this goroutine.
		return
	}

	rec := NewRecord(typ, operation, gid, skip+1)

	if d.cfg.SuppressEqualStacks {
		if _, seen := d.reported.LoadOrStore(rec.dedupKey(), struct{}{}); seen {
			ctx.EndReport()
			return
		}
	}

	d.mu.Lock()
	d.violations++
	count := d.violations
	rec.Format(d.sink)
	d.mu.Unlock()

	if d.cfg.HaltOnError || (d.cfg.ErrorLimit > 0 && count >= d.cfg.ErrorLimit) {
		// atexit handlers flush the sink before the process dies.
		d.exit(config.ViolationExitCode)
		// Unreachable in production; reachable in tests that stub exit.
	}

	ctx.EndReport()
}

// Violations returns the number of reported violations so far.
func (d *Detector) Violations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

// Warnf emits a tool-internal warning line to the sink. Used for usage
// imbalances and, in verbose mode, resolution failures. Serialized with
// report output so warnings never split a record.
//
//nolint:errcheck // sink write errors are not actionable
func (d *Detector) Warnf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.sink, "rtguard: "+format+"\n", args...)
}

// WriteSummary writes the end-of-run banner with the violation count.
//
//nolint:errcheck // sink write errors are not actionable
func (d *Detector) WriteSummary(w io.Writer) {
	d.mu.Lock()
	count := d.violations
	d.mu.Unlock()

	fmt.Fprintf(w, "\n==================\n")
	fmt.Fprintf(w, "Realtime Sanitizer Report (rtguard)\n")
	fmt.Fprintf(w, "==================\n")
	if count == 0 {
		fmt.Fprintf(w, "No realtime violations detected.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %d realtime violation(s) detected.\n", count)
		fmt.Fprintf(w, "\nSee above for details.\n")
	}
	fmt.Fprintf(w, "==================\n\n")
}

// SetExitFunc replaces the process-termination hook. Test seam: production
// code never calls this.
func (d *Detector) SetExitFunc(fn func(code int)) {
	d.exit = fn
}
