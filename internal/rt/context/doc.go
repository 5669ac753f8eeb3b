// Package context implements the per-goroutine realtime-context tracker.
//
// Each goroutine that touches the sanitizer owns exactly one Context. The
// Context records how deep the goroutine currently is inside nested
// nonblocking scopes, how deep it is inside nested suppression scopes, and
// whether a violation report is currently being produced on this goroutine.
//
// A goroutine is "in a realtime context" iff depth > 0 and disabledDepth == 0.
//
// Ownership model: a Context is created lazily on the first notification for
// a goroutine, is mutated exclusively by that goroutine, and is reclaimed
// when the goroutine dies. No field is ever accessed from another goroutine,
// which is what allows every method here to run lock-free on the hot path.
package context
