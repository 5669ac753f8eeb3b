package suppress

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		op       string
		want     bool
	}{
		{"exact match", []string{"sleep"}, "sleep", true},
		{"exact miss", []string{"sleep"}, "heap-alloc", false},
		{"glob star", []string{"mutex-*"}, "mutex-lock", true},
		{"glob star miss", []string{"mutex-*"}, "rwmutex-lock", false},
		{"glob question", []string{"file-rea?"}, "file-read", true},
		{"second pattern wins", []string{"sleep", "file-*"}, "file-write", true},
		{"empty list", nil, "sleep", false},
		{"blank entries ignored", []string{"", "  ", "sleep"}, "sleep", true},
		{"invalid glob exact fallback", []string{"bad[pattern"}, "bad[pattern", true},
		{"invalid glob no wide match", []string{"bad[pattern"}, "sleep", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.patterns)
			if got := m.Match(tt.op); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v (patterns %v)", tt.op, got, tt.want, tt.patterns)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !New(nil).Empty() {
		t.Error("New(nil).Empty() = false, want true")
	}
	if !New([]string{"", " "}).Empty() {
		t.Error("blank-only matcher Empty() = false, want true")
	}
	if New([]string{"x"}).Empty() {
		t.Error("non-empty matcher Empty() = true, want false")
	}
	var m *Matcher
	if !m.Empty() {
		t.Error("nil matcher Empty() = false, want true")
	}
	if m.Match("sleep") {
		t.Error("nil matcher Match() = true, want false")
	}
}

func TestPatternsCopy(t *testing.T) {
	m := New([]string{"a", "b"})
	got := m.Patterns()
	got[0] = "mutated"
	if m.Patterns()[0] != "a" {
		t.Error("Patterns() exposed internal slice")
	}
}
