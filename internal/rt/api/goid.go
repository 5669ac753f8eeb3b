package api

import "runtime"

// getGoroutineID returns the current goroutine's ID.
//
// The ID is parsed from the first line of runtime.Stack output
// ("goroutine 123 [running]:"). This is the portable path: it works on
// every architecture and Go version, at the cost of roughly a microsecond
// per call. The cost is paid only after the cheap atomic gates in the
// wrappers have established that the process actually uses realtime
// contexts.
func getGoroutineID() int64 {
	// Only the first line is needed; 64 bytes always covers it.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine ID from stack-trace bytes.
//
// Expected format: "goroutine 123 [running]:...". Returns 0 when the
// buffer does not look like a stack header. Direct byte parsing, no
// allocation: this runs on the interception path.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}

// parseAllGIDs extracts every goroutine ID from a runtime.Stack(all=true)
// dump. Used by the dead-goroutine sweep to reclaim Context entries.
func parseAllGIDs(buf []byte) []int64 {
	var gids []int64
	for i := 0; i < len(buf); {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}
		line := buf[i:end]
		if len(line) >= 10 && string(line[:10]) == "goroutine " {
			if gid := parseGID(line); gid != 0 {
				gids = append(gids, gid)
			}
		}
		i = end + 1
	}
	return gids
}
