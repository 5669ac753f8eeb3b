// Package registry implements the process-wide intercepted-operation table.
//
// The set of known-blocking operations is a fixed catalogue, so the registry
// is a flat table from operation name to an Operation descriptor, populated
// during package initialization before user code runs. Each descriptor
// lazily resolves the "real" underlying implementation exactly once per
// process; resolution is first-caller-wins and idempotent, published through
// an atomic state transition so every goroutine observes the same target.
//
// The registry and the resolved-target cache are the only cross-goroutine
// shared state in the engine besides configuration. Both are write-once,
// read-many after startup.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// State is the resolution state of an Operation's real implementation.
//
// The only legal transitions are Unresolved → Resolved and
// Unresolved → Unavailable. Both are one-way and happen at most once.
type State uint32

const (
	// StateUnresolved means no resolution attempt has completed yet.
	StateUnresolved State = iota
	// StateResolved means the real implementation was located and cached.
	StateResolved
	// StateUnavailable means the underlying implementation does not exist
	// on this platform/build. Callers must treat this as "operation cannot
	// be intercepted here", never as a fatal error.
	StateUnavailable
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolved:
		return "resolved"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Kind classifies an intercepted operation for reporting and statistics.
type Kind int

const (
	// KindAllocation covers heap allocation and page pinning.
	KindAllocation Kind = iota
	// KindLock covers mutexes, rwmutexes, condition variables and waits.
	KindLock
	// KindSleep covers explicit sleeps and timed waits.
	KindSleep
	// KindFileIO covers file open/read/write/sync.
	KindFileIO
	// KindNetwork covers socket creation and connection establishment.
	KindNetwork
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "allocation"
	case KindLock:
		return "lock"
	case KindSleep:
		return "sleep"
	case KindFileIO:
		return "file-io"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Operation is an immutable descriptor for one intercepted operation.
//
// The descriptor itself never changes after Register; the only mutable
// pieces are the resolution state and the cached target, and those mutate
// exactly once.
type Operation struct {
	name string
	kind Kind

	// locate finds the real underlying implementation. It returns a typed
	// function value, or nil when the implementation does not exist on this
	// platform. Called at most once, under resolveMu.
	locate func() any

	// state publishes the resolution outcome. Stored last, after target,
	// so a StateResolved load guarantees the target is visible.
	state atomic.Uint32

	// target caches the resolved implementation as a typed function value.
	target atomic.Value

	// resolveMu serializes the one-time resolution. First caller wins;
	// concurrent callers block until resolution settles. Bounded critical
	// section, entered at most once per operation per process.
	resolveMu sync.Mutex
}

// NewOperation builds a descriptor for a named operation. locate may be nil,
// which resolves to StateUnavailable on first use.
func NewOperation(name string, kind Kind, locate func() any) *Operation {
	return &Operation{name: name, kind: kind, locate: locate}
}

// Name returns the operation's registered name.
func (op *Operation) Name() string { return op.name }

// Kind returns the operation's classification.
func (op *Operation) Kind() Kind { return op.kind }

// State returns the current resolution state without triggering resolution.
func (op *Operation) State() State {
	return State(op.state.Load())
}

// Resolve returns the cached real implementation, resolving it on first use.
//
// Fast path: a single atomic load when the operation is already settled.
// Slow path: the first caller runs locate() under resolveMu and publishes
// the result; racing callers block briefly and then observe the same
// outcome. Re-resolution can never yield a different target because the
// state transition is one-way.
//
// The returned value is nil exactly when the state is StateUnavailable.
func (op *Operation) Resolve() (any, State) {
	switch State(op.state.Load()) {
	case StateResolved:
		return op.target.Load(), StateResolved
	case StateUnavailable:
		return nil, StateUnavailable
	}

	op.resolveMu.Lock()
	defer op.resolveMu.Unlock()

	// Another caller may have settled the operation while we waited.
	switch State(op.state.Load()) {
	case StateResolved:
		return op.target.Load(), StateResolved
	case StateUnavailable:
		return nil, StateUnavailable
	}

	var resolved any
	if op.locate != nil {
		resolved = op.locate()
	}
	if resolved == nil {
		op.state.Store(uint32(StateUnavailable))
		return nil, StateUnavailable
	}

	// Publish target before state: a StateResolved observer must see it.
	op.target.Store(resolved)
	op.state.Store(uint32(StateResolved))
	return resolved, StateResolved
}

// ResolveAs resolves op and type-asserts the real implementation to T.
// The second result is false when the operation is unavailable or the
// cached target has a different type than the caller expects.
func ResolveAs[T any](op *Operation) (T, bool) {
	var zero T
	if op == nil {
		return zero, false
	}
	target, state := op.Resolve()
	if state != StateResolved {
		return zero, false
	}
	fn, ok := target.(T)
	if !ok {
		return zero, false
	}
	return fn, true
}

// table is the global name → *Operation mapping. Registrations happen during
// package init; afterwards the table is read-only, so sync.Map's lock-free
// read path serves the wrapper dispatch.
var table sync.Map

// Register adds an operation to the global table.
//
// Register runs at static initialization and must tolerate arbitrary init
// order relative to other subsystems: it touches nothing but the table, in
// particular it does not require configuration to be loaded. Registering a
// duplicate name is a programming error and is reported as one.
func Register(op *Operation) error {
	if op == nil || op.name == "" {
		return fmt.Errorf("registry: refusing to register unnamed operation")
	}
	if _, loaded := table.LoadOrStore(op.name, op); loaded {
		return fmt.Errorf("registry: operation %q already registered", op.name)
	}
	return nil
}

// Lookup returns the descriptor registered under name, or nil.
func Lookup(name string) *Operation {
	val, ok := table.Load(name)
	if !ok {
		return nil
	}
	return val.(*Operation)
}

// Operations returns all registered descriptors sorted by name. Not for the
// hot path; used by verbose listings and tests.
func Operations() []*Operation {
	var ops []*Operation
	table.Range(func(_, value any) bool {
		ops = append(ops, value.(*Operation))
		return true
	})
	sort.Slice(ops, func(i, j int) bool { return ops[i].name < ops[j].name })
	return ops
}

// Reset clears the table. Test helper only; not safe concurrently with
// Register or Lookup.
func Reset() {
	table = sync.Map{}
}
