// Package api implements the runtime entry points of the realtime-safety
// sanitizer.
//
// Everything the outside world does to the engine funnels through here:
// the compiler-style notifications (context enter/exit, suppression scopes,
// explicit blocking-call markers), the intercepted-operation wrappers, and
// process lifecycle (Init/Fini). The public rtguard package is a thin facade
// over this one.
//
// Hot-path shape: every wrapper first consults a pair of atomics (the global
// kill switch and the live-context count) and returns immediately when no
// goroutine has ever entered a realtime context. Only past that gate does it
// look up the calling goroutine's Context. The lookup is keyed by goroutine
// ID and cached in a sync.Map; dead goroutines are reclaimed periodically so
// the cache does not grow without bound.
package api
