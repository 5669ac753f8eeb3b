// Package rtguard provides the public API for the realtime-safety
// sanitizer runtime.
//
// See doc.go for detailed documentation and examples.
package rtguard

import (
	"net"
	"os"
	"sync"
	"time"

	internal "github.com/kolkov/rtguard/internal/rt/api"
)

// Init initializes the sanitizer runtime from the environment.
//
// This function should be called before any realtime context is entered.
// The rtguard tool automatically inserts this call at the beginning of the
// main() function.
//
// For manual instrumentation, call Init() at program startup:
//
//	func main() {
//		rtguard.Init()
//		defer rtguard.Fini()
//		// ... rest of program
//	}
//
// Init is safe to call multiple times (subsequent calls are no-ops).
// Configuration comes from the RTGUARD_OPTIONS environment variable; see
// the package documentation for the option reference.
func Init() {
	internal.Init()
}

// Fini disables the sanitizer and prints the end-of-run summary.
//
// Call at program exit, typically via defer in main. Safe to call
// multiple times; only the first call emits the summary.
func Fini() {
	internal.Fini()
}

// EnterContext marks the calling goroutine as having entered a realtime
// (nonblocking) scope. Until the matching ExitContext, intercepted
// blocking operations on this goroutine are reported as violations.
//
// Scopes nest: entering twice requires exiting twice. The rtguard tool
// inserts balanced Enter/Exit pairs around functions marked
// //rtguard:nonblocking; manual callers should prefer [NonBlocking],
// which cannot be left unbalanced.
func EnterContext() {
	internal.EnterContext()
}

// ExitContext marks the calling goroutine as having left a realtime
// scope. An exit without a matching enter is reported as a tool warning
// and otherwise ignored.
func ExitContext() {
	internal.ExitContext()
}

// NonBlocking runs fn inside a realtime scope. The scope is exited even
// when fn panics.
//
//	rtguard.NonBlocking(func() {
//		processAudioBlock(in, out) // blocking calls in here are violations
//	})
func NonBlocking(fn func()) {
	internal.EnterContext()
	defer internal.ExitContext()
	fn()
}

// DisableDetection opens a suppression scope on the calling goroutine:
// detection is paused until the matching EnableDetection, while the
// surrounding realtime scope stays intact. Suppression scopes nest.
//
// Use this around intentional one-off violations, such as a debug dump
// from a realtime thread. Prefer [ScopedDisable] where possible.
func DisableDetection() {
	internal.PushDisabled()
}

// EnableDetection closes the innermost suppression scope opened by
// DisableDetection.
func EnableDetection() {
	internal.PopDisabled()
}

// ScopedDisable runs fn with detection suppressed on the calling
// goroutine, restoring detection even when fn panics.
func ScopedDisable(fn func()) {
	internal.PushDisabled()
	defer internal.PopDisabled()
	fn()
}

// NotifyBlockingCall reports that a function known to block was invoked.
// Inside an active realtime scope this raises a violation attributed to
// functionName; outside one it does nothing.
//
// The rtguard tool inserts this call at the top of functions marked
// //rtguard:blocking.
func NotifyBlockingCall(functionName string) {
	internal.NotifyBlockingCall(functionName)
}

// InRealtimeContext reports whether the calling goroutine is inside an
// active, unsuppressed realtime scope.
func InRealtimeContext() bool {
	return internal.InRealtimeContext()
}

// Enable re-arms the sanitizer after a Disable.
func Enable() {
	internal.Enable()
}

// Disable trips the process-wide kill switch: every sanitizer entry point
// becomes a no-op until Enable. Unlike DisableDetection this affects all
// goroutines and suppresses context bookkeeping too.
func Disable() {
	internal.Disable()
}

// Active reports whether the sanitizer is currently armed.
func Active() bool {
	return internal.Active()
}

// Violations returns the number of violations reported so far in this
// process.
func Violations() int {
	return internal.Violations()
}

// Intercepted operation wrappers.
//
// Each wrapper behaves exactly like the operation it stands in for, with
// violation detection bolted on the front. The rtguard tool rewrites
// matching calls to these; manual callers can use them directly.

// Alloc allocates a byte slice through the intercepted allocation path.
func Alloc(size int) []byte {
	return internal.Alloc(size)
}

// PageLock pins the pages backing p into physical memory. A detected
// no-op on platforms without a pinning primitive.
func PageLock(p []byte) error {
	return internal.PageLock(p)
}

// Sleep pauses the calling goroutine for at least d, like time.Sleep.
func Sleep(d time.Duration) {
	internal.Sleep(d)
}

// LockMutex locks mu, like mu.Lock.
func LockMutex(mu *sync.Mutex) {
	internal.LockMutex(mu)
}

// UnlockMutex unlocks mu, like mu.Unlock.
func UnlockMutex(mu *sync.Mutex) {
	internal.UnlockMutex(mu)
}

// LockRWMutex write-locks mu, like mu.Lock.
func LockRWMutex(mu *sync.RWMutex) {
	internal.LockRWMutex(mu)
}

// RLockRWMutex read-locks mu, like mu.RLock.
func RLockRWMutex(mu *sync.RWMutex) {
	internal.RLockRWMutex(mu)
}

// WaitCond blocks on c, like c.Wait.
func WaitCond(c *sync.Cond) {
	internal.WaitCond(c)
}

// WaitGroupWait blocks until wg's counter reaches zero, like wg.Wait.
func WaitGroupWait(wg *sync.WaitGroup) {
	internal.WaitGroupWait(wg)
}

// Open opens a file read-only, like os.Open.
func Open(name string) (*os.File, error) {
	return internal.Open(name)
}

// OpenFile opens a file, like os.OpenFile.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return internal.OpenFile(name, flag, perm)
}

// FileRead reads from f into p, like f.Read.
func FileRead(f *os.File, p []byte) (int, error) {
	return internal.FileRead(f, p)
}

// FileWrite writes p to f, like f.Write.
func FileWrite(f *os.File, p []byte) (int, error) {
	return internal.FileWrite(f, p)
}

// FileSync flushes f to stable storage, like f.Sync.
func FileSync(f *os.File) error {
	return internal.FileSync(f)
}

// Dial connects to address on the named network, like net.Dial.
func Dial(network, address string) (net.Conn, error) {
	return internal.Dial(network, address)
}
