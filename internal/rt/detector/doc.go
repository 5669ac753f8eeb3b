// Package detector decides whether an intercepted call is a realtime
// violation and, when it is, produces the diagnostic record.
//
// The decision function runs on every intercepted call in the process,
// including the overwhelming majority made far away from any realtime
// context, so the no-violation path is a handful of branches over
// goroutine-local state and never takes a lock.
//
// The reporting path is the opposite trade: it is rare, so it may allocate,
// symbolize frames and serialize against other reporters. It runs with the
// goroutine's reporting marker set, and the decision function treats that
// marker as "never a violation", so the reporter's own allocations and
// locks cannot recurse into a second report.
package detector
