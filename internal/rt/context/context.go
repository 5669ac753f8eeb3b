package context

// Context is the realtime-context state for a single goroutine.
//
// Layout:
//   - depth: count of nested nonblocking scopes currently active
//   - disabledDepth: count of nested suppression scopes currently active
//   - reporting: set while a violation report is being produced
//
// Invariant: the goroutine is subject to violation detection iff
// depth > 0 && disabledDepth == 0 && !reporting.
//
// All counters are plain integers, not atomics: a Context is exclusively
// owned by one goroutine, so there is nothing to synchronize. Keeping the
// fields plain is what makes InRealtimeContext() cheap enough to sit on
// every intercepted call.
type Context struct {
	// depth counts nested Enter/Exit pairs. Never negative: Exit clamps.
	depth uint32

	// disabledDepth counts nested PushDisabled/PopDisabled pairs.
	// While > 0, detection is suppressed regardless of depth.
	disabledDepth uint32

	// reporting guards against recursive violation detection while the
	// reporter itself runs (the reporter may allocate and take locks).
	// A boolean, not a counter: report generation never nests by design.
	reporting bool
}

// New allocates a fresh Context with all scopes inactive.
func New() *Context {
	return &Context{}
}

// Enter records entry into a nonblocking scope. Scopes nest: a nonblocking
// function calling another nonblocking function pushes the depth to 2, and
// the context stays active until the outermost scope exits.
//
//go:nosplit
func (c *Context) Enter() {
	c.depth++
}

// Exit records exit from a nonblocking scope.
//
// Calling Exit with no matching Enter is a caller bug (instrumentation is
// expected to emit balanced pairs, including on early returns and panics).
// The counter clamps at zero instead of underflowing; the return value is
// false exactly when the call was unbalanced so the caller can surface a
// diagnostic. The imbalance alone never crashes the process.
//
//go:nosplit
func (c *Context) Exit() bool {
	if c.depth == 0 {
		return false
	}
	c.depth--
	return true
}

// PushDisabled enters a suppression scope. Suppression nests independently
// of the realtime depth and may wrap arbitrary sub-scopes, including
// intercepted-call boundaries.
//
//go:nosplit
func (c *Context) PushDisabled() {
	c.disabledDepth++
}

// PopDisabled exits a suppression scope. Clamps at zero on imbalance,
// returning false, same contract as Exit.
//
//go:nosplit
func (c *Context) PopDisabled() bool {
	if c.disabledDepth == 0 {
		return false
	}
	c.disabledDepth--
	return true
}

// InRealtimeContext reports whether the owning goroutine is currently
// inside an active, unsuppressed realtime context.
//
// This is the hot-path query made by every intercepted call in the process,
// including calls far away from any realtime code. Two field reads, no
// locks, no allocation.
//
//go:nosplit
func (c *Context) InRealtimeContext() bool {
	return c.depth > 0 && c.disabledDepth == 0
}

// Depth returns the current nonblocking-scope nesting depth.
func (c *Context) Depth() uint32 {
	return c.depth
}

// DisabledDepth returns the current suppression-scope nesting depth.
func (c *Context) DisabledDepth() uint32 {
	return c.disabledDepth
}

// BeginReport marks the goroutine as producing a violation report and
// reports whether the marker was newly set. A false return means a report
// is already in flight on this goroutine and the caller must not start
// another one.
func (c *Context) BeginReport() bool {
	if c.reporting {
		return false
	}
	c.reporting = true
	return true
}

// EndReport clears the reporting marker. Must be called on every
// BeginReport()==true path that does not terminate the process.
func (c *Context) EndReport() {
	c.reporting = false
}

// Reporting reports whether a violation report is in flight on this
// goroutine.
//
//go:nosplit
func (c *Context) Reporting() bool {
	return c.reporting
}
