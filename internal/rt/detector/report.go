package detector

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
)

// Type labels the kind of detected violation.
type Type string

const (
	// TypeUnsafeCall is a call to an intercepted blocking operation from
	// inside an active realtime context.
	TypeUnsafeCall Type = "unsafe-library-call"

	// TypeBlockingCall is a call to a function explicitly marked blocking,
	// raised by the notification itself, independent of the interception
	// table.
	TypeBlockingCall Type = "blocking-call"
)

// maxStackDepth bounds the number of frames captured per violation.
const maxStackDepth = 32

// Record is one detected violation. Transient: it is built, formatted to
// the sink, and discarded; nothing retains it.
type Record struct {
	// Type is the violation-kind label.
	Type Type

	// Operation is the registered name of the blocking operation.
	Operation string

	// GoroutineID identifies the offending goroutine.
	GoroutineID int64

	// Time is when the violation was observed.
	Time time.Time

	// Stack holds the captured program counters, innermost first. May be
	// empty when capture failed; the record is still emitted.
	Stack []uintptr
}

// NewRecord builds a violation record, capturing the current call stack.
//
// skip is the number of frames to drop from the top so the trace starts at
// the intercepted call rather than inside the engine. Capture is best
// effort: a short or empty stack produces a partial record, never an error.
func NewRecord(typ Type, operation string, gid int64, skip int) *Record {
	return &Record{
		Type:        typ,
		Operation:   operation,
		GoroutineID: gid,
		Time:        time.Now(),
		Stack:       captureStack(skip + 1),
	}
}

// captureStack captures up to maxStackDepth program counters, skipping the
// given number of frames above the caller.
func captureStack(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+1, pcs)
	return pcs[:n]
}

// dedupKey identifies the violation site for equal-stack suppression.
// Keyed on kind, operation and the innermost user frame, so the same
// blocking call in a loop reports once while the same operation from a
// different site still reports.
func (r *Record) dedupKey() string {
	return fmt.Sprintf("%s:%s:0x%x", r.Type, r.Operation, r.sitePC())
}

// sitePC returns the innermost captured address outside the engine. The
// frames above it belong to the wrapper machinery and are identical for
// every violation of an operation, so they cannot identify the call site.
// Addresses with no symbol information count as user frames; the raw
// address still distinguishes one site from another.
func (r *Record) sitePC() uintptr {
	for _, pc := range r.Stack {
		fn := runtime.FuncForPC(pc)
		if fn == nil || !engineFrame(fn.Name()) {
			return pc
		}
	}
	return 0
}

// Format writes the record to w as one structured, human-readable block:
// a banner naming the tool and the violation kind, a summary line with the
// operation and goroutine, then the frames innermost first. Frames resolve
// to symbol and source location when debug info is available and fall back
// to the raw address otherwise.
//
//nolint:errcheck // sink write errors are not actionable mid-report
func (r *Record) Format(w io.Writer) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "WARNING: REALTIME VIOLATION: %s (rtguard)\n", r.Type)
	fmt.Fprintf(w, "Blocking operation %q called by goroutine %d at %s:\n",
		r.Operation, r.GoroutineID, r.Time.Format("15:04:05.000000"))

	if len(r.Stack) == 0 {
		fmt.Fprintf(w, "  (no stack trace captured)\n")
	} else {
		fmt.Fprint(w, formatFrames(r.Stack))
	}
	fmt.Fprintf(w, "==================\n")
}

// String renders the record as Format would. Test and debugging helper.
func (r *Record) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}

// enginePrefixes are function-name prefixes hidden from violation traces.
// The engine's own frames sit between the capture point and the user's
// blocking call and carry no diagnostic value.
var enginePrefixes = []string{
	"runtime.",
	"github.com/kolkov/rtguard/internal/rt/detector.",
	"github.com/kolkov/rtguard/internal/rt/api.",
	"github.com/kolkov/rtguard/rtguard.",
}

func engineFrame(function string) bool {
	for _, p := range enginePrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// formatFrames symbolizes and renders captured program counters.
//
// Output shape follows the classic sanitizer layout:
//
//	main.process()
//	    /path/to/main.go:24 +0x3b
//
// Frames that cannot be symbolized are printed as bare addresses; a trace
// that filters down to nothing still yields a line, because a partial
// report beats silence.
//
// Each address is resolved with runtime.FuncForPC rather than
// runtime.CallersFrames, because the latter silently drops addresses it
// cannot resolve and the bare-address fallback would never fire. The cost
// is that inlined calls render as their physical frame.
func formatFrames(pcs []uintptr) string {
	var buf strings.Builder
	for _, pc := range pcs {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			// No symbol for this address. The raw value is still provenance.
			fmt.Fprintf(&buf, "  0x%016x\n", pc)
			continue
		}
		if engineFrame(fn.Name()) {
			continue
		}

		file, line := fn.FileLine(pc)
		fmt.Fprintf(&buf, "  %s()\n", fn.Name())
		fmt.Fprintf(&buf, "      %s:%d +0x%x\n", file, line, pc&0xfff)
	}

	if buf.Len() == 0 {
		return "  (all frames internal to the runtime)\n"
	}
	return buf.String()
}
