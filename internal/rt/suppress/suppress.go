// Package suppress matches operation names against configured suppression
// patterns.
//
// Patterns are shell-style globs over operation names ("mutex-*", "file-?",
// "sleep"). Matching happens on the violation path only, never on the
// no-violation fast path, so plain linear matching is fine.
package suppress

import (
	"path"
	"strings"
)

// Matcher holds a fixed set of suppression patterns. Immutable after New,
// safe for concurrent use.
type Matcher struct {
	patterns []string
}

// New builds a Matcher from the configured pattern list. Empty and
// whitespace-only entries are dropped.
func New(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Empty reports whether the matcher holds no patterns. Callers use this to
// skip matching entirely in the common unconfigured case.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether the operation name matches any suppression pattern.
//
// A syntactically invalid glob falls back to exact string comparison rather
// than silently suppressing nothing: a typo in a suppression list should at
// worst narrow the suppression, never widen it.
func (m *Matcher) Match(name string) bool {
	if m.Empty() {
		return false
	}
	for _, p := range m.patterns {
		ok, err := path.Match(p, name)
		if err != nil {
			if p == name {
				return true
			}
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns, for verbose listings.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}
