package api

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kolkov/rtguard/internal/rt/registry"
)

// The forwarding half of every wrapper: intercepted calls must behave
// exactly like the operations they stand in for.

func TestAllocForwards(t *testing.T) {
	setup(t, nil)

	buf := Alloc(128)
	if len(buf) != 128 {
		t.Errorf("Alloc(128) returned %d bytes", len(buf))
	}
}

func TestSleepForwards(t *testing.T) {
	setup(t, nil)

	const d = 20 * time.Millisecond
	start := time.Now()
	Sleep(d)
	if elapsed := time.Since(start); elapsed < d {
		t.Errorf("Sleep(%v) returned after %v", d, elapsed)
	}
}

func TestMutexForwards(t *testing.T) {
	setup(t, nil)

	var mu sync.Mutex
	LockMutex(&mu)
	if mu.TryLock() {
		t.Fatal("mutex not held after LockMutex")
	}
	UnlockMutex(&mu)
	if !mu.TryLock() {
		t.Fatal("mutex still held after UnlockMutex")
	}
	mu.Unlock()
}

func TestRWMutexForwards(t *testing.T) {
	setup(t, nil)

	var mu sync.RWMutex
	LockRWMutex(&mu)
	if mu.TryRLock() {
		t.Fatal("read lock acquired while write-locked")
	}
	mu.Unlock()

	RLockRWMutex(&mu)
	if mu.TryLock() {
		t.Fatal("write lock acquired while read-locked")
	}
	mu.RUnlock()
}

func TestCondWaitForwards(t *testing.T) {
	setup(t, nil)

	mu := &sync.Mutex{}
	cond := sync.NewCond(mu)
	woken := false

	mu.Lock()
	go func() {
		mu.Lock()
		woken = true
		mu.Unlock()
		cond.Signal()
	}()
	for !woken {
		WaitCond(cond)
	}
	mu.Unlock()
}

func TestWaitGroupForwards(t *testing.T) {
	setup(t, nil)

	var wg sync.WaitGroup
	ran := false
	wg.Add(1)
	go func() {
		defer wg.Done()
		ran = true
	}()
	WaitGroupWait(&wg)

	if !ran {
		t.Fatal("WaitGroupWait returned before the worker finished")
	}
}

func TestFileWrappersRoundTrip(t *testing.T) {
	setup(t, nil)

	path := filepath.Join(t.TempDir(), "wrapped.txt")

	f, err := OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	payload := []byte("intercepted")
	if n, err := FileWrite(f, payload); err != nil || n != len(payload) {
		t.Fatalf("FileWrite = (%d, %v), want (%d, nil)", n, err, len(payload))
	}
	if err := FileSync(f); err != nil {
		t.Fatalf("FileSync: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	got := make([]byte, len(payload))
	if n, err := FileRead(r, got); err != nil || n != len(payload) {
		t.Fatalf("FileRead = (%d, %v), want (%d, nil)", n, err, len(payload))
	}
	if string(got) != string(payload) {
		t.Errorf("read back %q, want %q", got, payload)
	}
}

func TestDialForwardsErrors(t *testing.T) {
	setup(t, nil)

	// Nonexistent unix socket: fails fast without touching the network.
	_, err := Dial("unix", filepath.Join(t.TempDir(), "absent.sock"))
	if err == nil {
		t.Fatal("Dial to absent socket succeeded")
	}
}

// TestPageLockUnavailable exercises the unintercepted-passthrough fallback:
// no platform hook is installed, so page-lock resolves unavailable, calls
// succeed as no-ops, and detection is skipped even inside a context.
func TestPageLockUnavailable(t *testing.T) {
	d, _ := setup(t, nil)

	EnterContext()
	err := PageLock(make([]byte, 64))
	ExitContext()

	if err != nil {
		t.Fatalf("PageLock fallback returned %v", err)
	}
	if d.Violations() != 0 {
		t.Errorf("unavailable operation reported %d violations, want 0", d.Violations())
	}
	if op := registry.Lookup(OpPageLock); op.State() != registry.StateUnavailable {
		t.Errorf("page-lock state = %v, want %v", op.State(), registry.StateUnavailable)
	}
}

// TestSleepViolationStillSleeps pins down detect-then-forward: reporting a
// violation never changes what the call does.
func TestSleepViolationStillSleeps(t *testing.T) {
	d, _ := setup(t, nil)

	const dur = 15 * time.Millisecond
	EnterContext()
	start := time.Now()
	Sleep(dur)
	elapsed := time.Since(start)
	ExitContext()

	if d.Violations() != 1 {
		t.Errorf("Violations() = %d, want 1", d.Violations())
	}
	if elapsed < dur {
		t.Errorf("violating Sleep(%v) returned after %v", dur, elapsed)
	}
}

// TestWrappersSilentOutsideContext sweeps the cheap wrappers on a
// goroutine that never entered a realtime scope: no call may report, no
// matter how often it repeats.
func TestWrappersSilentOutsideContext(t *testing.T) {
	d, sink := setup(t, nil)

	var mu sync.Mutex
	var rw sync.RWMutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		Alloc(8)
		LockMutex(&mu)
		UnlockMutex(&mu)
		LockRWMutex(&rw)
		rw.Unlock()
		RLockRWMutex(&rw)
		rw.RUnlock()
		WaitGroupWait(&wg)
		_ = PageLock(make([]byte, 8))
	}

	if d.Violations() != 0 {
		t.Errorf("Violations() = %d outside any context, want 0", d.Violations())
	}
	if sink.Len() != 0 {
		t.Errorf("unexpected output:\n%s", sink.String())
	}
}

func TestCatalogueRegistered(t *testing.T) {
	names := []string{
		OpHeapAlloc, OpPageLock, OpSleep,
		OpMutexLock, OpMutexUnlock, OpRWMutexLock, OpRWMutexRLock,
		OpCondWait, OpWaitGroupWait,
		OpFileOpen, OpFileRead, OpFileWrite, OpFileSync,
		OpNetDial,
	}
	for _, name := range names {
		if registry.Lookup(name) == nil {
			t.Errorf("operation %q not registered", name)
		}
	}
}
