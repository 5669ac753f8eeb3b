package api

import (
	"sync"
	"testing"
)

func TestGetGoroutineID(t *testing.T) {
	gid := getGoroutineID()
	if gid <= 0 {
		t.Fatalf("getGoroutineID() = %d, want > 0", gid)
	}
	if again := getGoroutineID(); again != gid {
		t.Errorf("ID changed within one goroutine: %d then %d", gid, again)
	}

	var other int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = getGoroutineID()
	}()
	wg.Wait()

	if other == gid {
		t.Errorf("two goroutines share ID %d", gid)
	}
}

func TestParseGID(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want int64
	}{
		{"running header", "goroutine 123 [running]:\nmain.main()", 123},
		{"single digit", "goroutine 7 [runnable]:", 7},
		{"large id", "goroutine 9876543210 [running]:", 9876543210},
		{"empty", "", 0},
		{"wrong prefix", "main.main()\n", 0},
		{"no digits", "goroutine abc [running]:", 0},
		{"truncated prefix", "gorout", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseGID([]byte(tt.buf)); got != tt.want {
				t.Errorf("parseGID(%q) = %d, want %d", tt.buf, got, tt.want)
			}
		})
	}
}

func TestParseAllGIDs(t *testing.T) {
	dump := "goroutine 1 [running]:\nmain.main()\n\tmain.go:10\n\n" +
		"goroutine 18 [select]:\nnet/http.(*Server).Serve()\n\n" +
		"goroutine 42 [chan receive]:\nworker()\n"

	gids := parseAllGIDs([]byte(dump))
	want := map[int64]bool{1: true, 18: true, 42: true}

	if len(gids) != len(want) {
		t.Fatalf("parsed %d IDs %v, want %d", len(gids), gids, len(want))
	}
	for _, gid := range gids {
		if !want[gid] {
			t.Errorf("unexpected ID %d in %v", gid, gids)
		}
	}
}
