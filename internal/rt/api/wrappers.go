package api

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/kolkov/rtguard/internal/rt/registry"
)

// The wrappers below are the interception surface: each resolves the real
// implementation through the registry, runs violation detection, and then
// forwards. Detection never changes what the call does; a violating sleep
// still sleeps.
//
// When an operation resolves unavailable the wrapper falls back to an
// unintercepted passthrough (the direct call, or a no-op where the
// primitive has no portable equivalent) and skips detection entirely.

// fallbackWarned keys operations already warned about in verbose mode, so
// an unavailable operation produces one line, not one per call.
var fallbackWarned sync.Map

func warnFallback(name string) {
	d := det.Load()
	if !d.Config().Verbose {
		return
	}
	if _, seen := fallbackWarned.LoadOrStore(name, struct{}{}); seen {
		return
	}
	d.Warnf("operation %q unavailable, calls pass through unintercepted", name)
}

// Alloc allocates a byte slice through the intercepted allocation path.
func Alloc(size int) []byte {
	fn, ok := registry.ResolveAs[func(int) []byte](registry.Lookup(OpHeapAlloc))
	if !ok {
		warnFallback(OpHeapAlloc)
		return make([]byte, size)
	}
	interceptCheck(OpHeapAlloc)
	return fn(size)
}

// PageLock pins the pages backing p into physical memory. On platforms
// without a pinning primitive this is a detected no-op passthrough.
func PageLock(p []byte) error {
	fn, ok := registry.ResolveAs[func([]byte) error](registry.Lookup(OpPageLock))
	if !ok {
		warnFallback(OpPageLock)
		return nil
	}
	interceptCheck(OpPageLock)
	return fn(p)
}

// Sleep pauses the calling goroutine for at least d.
func Sleep(d time.Duration) {
	fn, ok := registry.ResolveAs[func(time.Duration)](registry.Lookup(OpSleep))
	if !ok {
		warnFallback(OpSleep)
		time.Sleep(d)
		return
	}
	interceptCheck(OpSleep)
	fn(d)
}

// LockMutex locks mu.
func LockMutex(mu *sync.Mutex) {
	fn, ok := registry.ResolveAs[func(*sync.Mutex)](registry.Lookup(OpMutexLock))
	if !ok {
		warnFallback(OpMutexLock)
		mu.Lock()
		return
	}
	interceptCheck(OpMutexLock)
	fn(mu)
}

// UnlockMutex unlocks mu. Unlock can wake waiters and enter the scheduler,
// so it is intercepted like the lock side.
func UnlockMutex(mu *sync.Mutex) {
	fn, ok := registry.ResolveAs[func(*sync.Mutex)](registry.Lookup(OpMutexUnlock))
	if !ok {
		warnFallback(OpMutexUnlock)
		mu.Unlock()
		return
	}
	interceptCheck(OpMutexUnlock)
	fn(mu)
}

// LockRWMutex write-locks mu.
func LockRWMutex(mu *sync.RWMutex) {
	fn, ok := registry.ResolveAs[func(*sync.RWMutex)](registry.Lookup(OpRWMutexLock))
	if !ok {
		warnFallback(OpRWMutexLock)
		mu.Lock()
		return
	}
	interceptCheck(OpRWMutexLock)
	fn(mu)
}

// RLockRWMutex read-locks mu.
func RLockRWMutex(mu *sync.RWMutex) {
	fn, ok := registry.ResolveAs[func(*sync.RWMutex)](registry.Lookup(OpRWMutexRLock))
	if !ok {
		warnFallback(OpRWMutexRLock)
		mu.RLock()
		return
	}
	interceptCheck(OpRWMutexRLock)
	fn(mu)
}

// WaitCond blocks on c until woken.
func WaitCond(c *sync.Cond) {
	fn, ok := registry.ResolveAs[func(*sync.Cond)](registry.Lookup(OpCondWait))
	if !ok {
		warnFallback(OpCondWait)
		c.Wait()
		return
	}
	interceptCheck(OpCondWait)
	fn(c)
}

// WaitGroupWait blocks until wg's counter reaches zero.
func WaitGroupWait(wg *sync.WaitGroup) {
	fn, ok := registry.ResolveAs[func(*sync.WaitGroup)](registry.Lookup(OpWaitGroupWait))
	if !ok {
		warnFallback(OpWaitGroupWait)
		wg.Wait()
		return
	}
	interceptCheck(OpWaitGroupWait)
	fn(wg)
}

// OpenFile opens a file through the intercepted file-open path.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	fn, ok := registry.ResolveAs[func(string, int, os.FileMode) (*os.File, error)](registry.Lookup(OpFileOpen))
	if !ok {
		warnFallback(OpFileOpen)
		return os.OpenFile(name, flag, perm)
	}
	interceptCheck(OpFileOpen)
	return fn(name, flag, perm)
}

// Open opens name read-only. Convenience over OpenFile, mirroring os.Open.
func Open(name string) (*os.File, error) {
	return OpenFile(name, os.O_RDONLY, 0)
}

// FileRead reads from f into p.
func FileRead(f *os.File, p []byte) (int, error) {
	fn, ok := registry.ResolveAs[func(*os.File, []byte) (int, error)](registry.Lookup(OpFileRead))
	if !ok {
		warnFallback(OpFileRead)
		return f.Read(p)
	}
	interceptCheck(OpFileRead)
	return fn(f, p)
}

// FileWrite writes p to f.
func FileWrite(f *os.File, p []byte) (int, error) {
	fn, ok := registry.ResolveAs[func(*os.File, []byte) (int, error)](registry.Lookup(OpFileWrite))
	if !ok {
		warnFallback(OpFileWrite)
		return f.Write(p)
	}
	interceptCheck(OpFileWrite)
	return fn(f, p)
}

// FileSync flushes f to stable storage.
func FileSync(f *os.File) error {
	fn, ok := registry.ResolveAs[func(*os.File) error](registry.Lookup(OpFileSync))
	if !ok {
		warnFallback(OpFileSync)
		return f.Sync()
	}
	interceptCheck(OpFileSync)
	return fn(f)
}

// Dial connects to address on the named network.
func Dial(network, address string) (net.Conn, error) {
	fn, ok := registry.ResolveAs[func(string, string) (net.Conn, error)](registry.Lookup(OpNetDial))
	if !ok {
		warnFallback(OpNetDial)
		return net.Dial(network, address)
	}
	interceptCheck(OpNetDial)
	return fn(network, address)
}
