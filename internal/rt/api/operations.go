package api

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/kolkov/rtguard/internal/rt/registry"
)

// Operation names as they appear in violation records and suppression
// patterns. Stable identifiers: changing one silently breaks existing
// suppression lists.
const (
	OpHeapAlloc     = "heap-alloc"
	OpPageLock      = "page-lock"
	OpSleep         = "sleep"
	OpMutexLock     = "mutex-lock"
	OpMutexUnlock   = "mutex-unlock"
	OpRWMutexLock   = "rwmutex-lock"
	OpRWMutexRLock  = "rwmutex-rlock"
	OpCondWait      = "cond-wait"
	OpWaitGroupWait = "waitgroup-wait"
	OpFileOpen      = "file-open"
	OpFileRead      = "file-read"
	OpFileWrite     = "file-write"
	OpFileSync      = "file-sync"
	OpNetDial       = "net-dial"
)

// pageLockHook supplies a platform page-pinning primitive with signature
// func([]byte) error. No port installs one yet, so page-lock resolves
// unavailable and PageLock passes through as a no-op.
var pageLockHook func() any

func init() {
	registerOperations()
}

// registerOperations populates the global operation table. Each locate
// closure returns the real implementation as a typed function value;
// method expressions turn the receiver into a leading parameter so the
// wrappers can cache one function value per operation rather than one per
// object.
func registerOperations() {
	// Re-registration only happens when tests rebuild the catalogue after
	// a registry reset, so duplicate errors are ignored.
	register := func(name string, kind registry.Kind, locate func() any) {
		_ = registry.Register(registry.NewOperation(name, kind, locate))
	}

	register(OpHeapAlloc, registry.KindAllocation, func() any {
		return func(size int) []byte { return make([]byte, size) }
	})
	register(OpPageLock, registry.KindAllocation, func() any {
		if pageLockHook == nil {
			return nil
		}
		return pageLockHook()
	})

	register(OpSleep, registry.KindSleep, func() any { return time.Sleep })

	register(OpMutexLock, registry.KindLock, func() any { return (*sync.Mutex).Lock })
	register(OpMutexUnlock, registry.KindLock, func() any { return (*sync.Mutex).Unlock })
	register(OpRWMutexLock, registry.KindLock, func() any { return (*sync.RWMutex).Lock })
	register(OpRWMutexRLock, registry.KindLock, func() any { return (*sync.RWMutex).RLock })
	register(OpCondWait, registry.KindLock, func() any { return (*sync.Cond).Wait })
	register(OpWaitGroupWait, registry.KindLock, func() any { return (*sync.WaitGroup).Wait })

	register(OpFileOpen, registry.KindFileIO, func() any { return os.OpenFile })
	register(OpFileRead, registry.KindFileIO, func() any { return (*os.File).Read })
	register(OpFileWrite, registry.KindFileIO, func() any { return (*os.File).Write })
	register(OpFileSync, registry.KindFileIO, func() any { return (*os.File).Sync })

	register(OpNetDial, registry.KindNetwork, func() any { return net.Dial })
}
