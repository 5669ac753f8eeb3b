package api

import (
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tebeka/atexit"

	"github.com/kolkov/rtguard/internal/rt/config"
	rtcontext "github.com/kolkov/rtguard/internal/rt/context"
	"github.com/kolkov/rtguard/internal/rt/detector"
)

var (
	// enabled is the global kill switch, checked first on every entry
	// point. Cleared by Disable and Fini, and by Init when the options
	// string says enabled=false.
	enabled atomic.Bool

	// initialized guards Init: instrumented binaries may carry one
	// injected Init call per rewritten file, and only the first wins.
	initialized atomic.Bool

	// finalized guards Fini the same way.
	finalized atomic.Bool

	// det is the active detector. Swapped exactly once, by Init; the
	// init-time default lets violations surface even in processes that
	// never call Init explicitly.
	det atomic.Pointer[detector.Detector]

	// contexts maps goroutine ID (int64) to that goroutine's
	// *rtcontext.Context. Each goroutine only ever creates and mutates
	// its own entry; sync.Map keeps the cross-goroutine reads lock-free.
	contexts sync.Map

	// liveContexts counts entries in the contexts map. A zero count lets
	// intercepted calls bail out before the goroutine-ID parse, which is
	// what keeps the engine invisible to processes that never enter a
	// realtime context.
	liveContexts atomic.Int32

	// contextAllocs drives the periodic dead-goroutine sweep.
	contextAllocs atomic.Uint32

	// imbalanceWarned limits enter/exit imbalance warnings to one per
	// process unless verbose mode asks for all of them.
	imbalanceWarned atomic.Bool
)

// cleanupInterval is how many context allocations pass between sweeps of
// dead goroutines. Sweeping costs a full runtime.Stack(all) dump, so it is
// amortized over many allocations.
const cleanupInterval = 512

func init() {
	det.Store(detector.New(config.Default(), os.Stderr))
	enabled.Store(true)
}

// Init loads configuration from the environment and installs the detector.
//
// Safe to call from multiple injected call sites: only the first call does
// anything. Configuration problems are reported as warnings and never stop
// initialization; the engine always comes up with a usable configuration.
func Init() {
	if !initialized.CompareAndSwap(false, true) {
		return
	}

	cfg, cfgErr := config.FromEnv()
	sink, flush, sinkErr := cfg.Sink()

	d := detector.New(cfg, sink)
	if cfgErr != nil {
		d.Warnf("options: %v", cfgErr)
	}
	if sinkErr != nil {
		d.Warnf("%v", sinkErr)
	}

	// Flush runs after any halt-path exit, so records written just before
	// termination still reach the file sink.
	atexit.Register(func() { _ = flush() })

	det.Store(d)
	enabled.Store(cfg.Enabled)

	if cfg.Verbose {
		d.Warnf("initialized (halt_on_error=%v, error_limit=%d, suppressions=%d)",
			cfg.HaltOnError, cfg.ErrorLimit, len(cfg.Suppressions))
	}
}

// Fini disables the engine and writes the end-of-run summary. Idempotent.
func Fini() {
	if !finalized.CompareAndSwap(false, true) {
		return
	}
	enabled.Store(false)
	d := det.Load()
	d.WriteSummary(d.Sink())
}

// contextFor returns the Context owned by goroutine gid, creating it on
// first use. Only the owning goroutine ever calls this for its own gid, so
// the LoadOrStore race only matters across goroutine-ID reuse.
func contextFor(gid int64) *rtcontext.Context {
	if val, ok := contexts.Load(gid); ok {
		return val.(*rtcontext.Context)
	}
	ctx := rtcontext.New()
	if actual, loaded := contexts.LoadOrStore(gid, ctx); loaded {
		return actual.(*rtcontext.Context)
	}
	liveContexts.Add(1)
	maybeCleanup()
	return ctx
}

// loadContext returns goroutine gid's Context without creating one.
func loadContext(gid int64) (*rtcontext.Context, bool) {
	val, ok := contexts.Load(gid)
	if !ok {
		return nil, false
	}
	return val.(*rtcontext.Context), true
}

// maybeCleanup kicks off a dead-goroutine sweep every cleanupInterval
// context allocations. The sweep runs off the calling goroutine so context
// creation stays cheap.
func maybeCleanup() {
	if contextAllocs.Add(1)%cleanupInterval != 0 {
		return
	}
	go cleanupDeadGoroutines()
}

// cleanupDeadGoroutines drops context entries whose goroutines no longer
// exist. Entries for live goroutines are untouched, so in-flight state is
// never lost.
func cleanupDeadGoroutines() {
	live := make(map[int64]struct{})
	for _, gid := range liveGoroutineIDs() {
		live[gid] = struct{}{}
	}
	contexts.Range(func(key, _ any) bool {
		if _, ok := live[key.(int64)]; !ok {
			contexts.Delete(key)
			liveContexts.Add(-1)
		}
		return true
	})
}

// liveGoroutineIDs snapshots the IDs of every goroutine in the process.
func liveGoroutineIDs() []int64 {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, len(buf)*2)
	}
	return parseAllGIDs(buf)
}

// EnterContext records the calling goroutine's entry into a realtime
// (nonblocking) scope. Scopes nest.
func EnterContext() {
	if !enabled.Load() {
		return
	}
	contextFor(getGoroutineID()).Enter()
}

// ExitContext records exit from a realtime scope. An exit with no matching
// enter is reported as a tool warning and otherwise ignored.
func ExitContext() {
	if !enabled.Load() {
		return
	}
	gid := getGoroutineID()
	ctx, ok := loadContext(gid)
	if !ok || !ctx.Exit() {
		warnImbalance("realtime context exit without matching enter", gid)
	}
}

// PushDisabled opens a detection-suppression scope on the calling
// goroutine. Suppression scopes nest and may span intercepted calls.
func PushDisabled() {
	if !enabled.Load() {
		return
	}
	contextFor(getGoroutineID()).PushDisabled()
}

// PopDisabled closes a suppression scope, warning on imbalance.
func PopDisabled() {
	if !enabled.Load() {
		return
	}
	gid := getGoroutineID()
	ctx, ok := loadContext(gid)
	if !ok || !ctx.PopDisabled() {
		warnImbalance("detection re-enabled without matching disable", gid)
	}
}

func warnImbalance(msg string, gid int64) {
	d := det.Load()
	if d.Config().Verbose || imbalanceWarned.CompareAndSwap(false, true) {
		d.Warnf("%s on goroutine %d", msg, gid)
	}
}

// InRealtimeContext reports whether the calling goroutine is inside an
// active, unsuppressed realtime scope. Pure query: never allocates a
// context for goroutines that have none.
func InRealtimeContext() bool {
	if !enabled.Load() || liveContexts.Load() == 0 {
		return false
	}
	ctx, ok := loadContext(getGoroutineID())
	return ok && ctx.InRealtimeContext()
}

// NotifyBlockingCall reports that a function marked as inherently blocking
// was invoked. functionName identifies the callee in the diagnostic and is
// matched against suppression patterns like any operation name.
func NotifyBlockingCall(functionName string) {
	if !enabled.Load() || liveContexts.Load() == 0 {
		return
	}
	gid := getGoroutineID()
	ctx, ok := loadContext(gid)
	if !ok {
		return
	}
	d := det.Load()
	if d.Check(ctx, functionName) {
		d.Report(ctx, detector.TypeBlockingCall, functionName, gid, 1)
	}
}

// interceptCheck is the detection half of every wrapper: decide whether
// this intercepted call violates the calling goroutine's realtime scope
// and, if so, run the reporting pipeline. The wrapper forwards to the real
// implementation afterwards regardless.
func interceptCheck(operation string) {
	if !enabled.Load() || liveContexts.Load() == 0 {
		return
	}
	gid := getGoroutineID()
	ctx, ok := loadContext(gid)
	if !ok {
		return
	}
	d := det.Load()
	if d.Check(ctx, operation) {
		d.Report(ctx, detector.TypeUnsafeCall, operation, gid, 2)
	}
}

// Enable re-arms the kill switch. Detection still honors the enabled flag
// from configuration; this only undoes a prior Disable.
func Enable() {
	enabled.Store(true)
}

// Disable trips the kill switch: every entry point becomes a no-op until
// Enable. Unlike suppression scopes this is process-wide, not per
// goroutine.
func Disable() {
	enabled.Store(false)
}

// Active reports whether the engine is currently armed.
func Active() bool {
	return enabled.Load()
}

// Violations returns the number of violations reported so far.
func Violations() int {
	return det.Load().Violations()
}

// resetForTest installs a fresh detector over sink and clears all
// per-goroutine state. Not safe concurrently with engine use.
func resetForTest(cfg config.Config, sink io.Writer) *detector.Detector {
	d := detector.New(cfg, sink)
	det.Store(d)
	contexts.Range(func(key, _ any) bool {
		contexts.Delete(key)
		return true
	})
	liveContexts.Store(0)
	enabled.Store(cfg.Enabled)
	imbalanceWarned.Store(false)
	finalized.Store(false)
	return d
}
