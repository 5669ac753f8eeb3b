// Package rtguard provides a realtime-safety sanitizer runtime for Go.
//
// The sanitizer detects blocking operations (allocation, locking,
// sleeping, file and network I/O) invoked from code that declares itself
// nonblocking, such as audio callbacks or control loops with hard
// deadlines. Detection is dynamic: intercepted operations check the
// calling goroutine's realtime state and report a violation with a stack
// trace when a blocking operation is reached from a realtime scope. The
// intercepted call then proceeds normally; the sanitizer observes, it
// never alters behavior.
//
// # Quick Start
//
// Instrumentation is normally automatic via the rtguard tool:
//
//	$ rtguard build myprogram.go
//	$ ./myprogram
//
// Mark realtime functions with a directive comment:
//
//	//rtguard:nonblocking
//	func processBlock(in, out []float32) {
//		...
//	}
//
// For manual instrumentation:
//
//	package main
//
//	import "github.com/kolkov/rtguard/rtguard"
//
//	func main() {
//		rtguard.Init()
//		defer rtguard.Fini()
//
//		rtguard.NonBlocking(func() {
//			buf := make([]byte, 1024) // reported when reached via rtguard.Alloc
//			_ = buf
//		})
//	}
//
// # Configuration
//
// The RTGUARD_OPTIONS environment variable holds colon-separated
// key=value pairs, in the common sanitizer style:
//
//	RTGUARD_OPTIONS="halt_on_error=0:suppressions=heap-*,file-*:output=rtguard.log"
//
// Recognized keys:
//
//   - enabled: master switch (default true)
//   - halt_on_error: terminate with exit code 43 after the first
//     violation (default true)
//   - error_limit: in continue mode, terminate after this many
//     violations (default 0, unlimited)
//   - suppressions: comma-separated glob patterns of operation or
//     function names to ignore
//   - suppress_equal_stacks: report each violation site once
//     (default true)
//   - output: "stderr", "stdout", or a file path (default stderr)
//   - verbose: emit tool-internal diagnostics (default false)
//
// RTGUARD_OPTIONS_FILE may name a dotenv-style file whose variables are
// loaded before RTGUARD_OPTIONS is read.
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and finalization: [Init], [Fini]
//   - Realtime scope control: [EnterContext], [ExitContext], [NonBlocking]
//   - Suppression scopes: [DisableDetection], [EnableDetection], [ScopedDisable]
//   - Explicit markers: [NotifyBlockingCall]
//   - Intercepted operations: [Alloc], [Sleep], [LockMutex], [Open], [Dial], ...
//   - Version information: [GetInfo], [Version]
package rtguard
