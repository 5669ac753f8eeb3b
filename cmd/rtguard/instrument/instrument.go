// Package instrument implements AST-level instrumentation for automatic
// realtime-safety checking.
//
// The package parses Go source files, reacts to rtguard directive comments,
// rewrites known-blocking standard library calls to their intercepted
// wrappers, and injects the sanitizer lifecycle into main().
//
// Directives:
//
//	//rtguard:nonblocking   the function body runs in a realtime scope;
//	                        Enter/Exit context calls are inserted around it
//	//rtguard:blocking      the function is known to block; a blocking-call
//	                        marker naming it is inserted at the top
//
// Call rewriting covers blocking operations recognizable without type
// information, i.e. package-level functions:
//
//	time.Sleep  → rtguard.Sleep
//	os.Open     → rtguard.Open
//	os.OpenFile → rtguard.OpenFile
//	net.Dial    → rtguard.Dial
//
// Method calls (mutex locks, file reads) cannot be rewritten from syntax
// alone; functions performing them should carry a directive instead.
//
// Example transformation:
//
//	// INPUT:
//	//rtguard:nonblocking
//	func process(buf []float32) {
//		time.Sleep(time.Millisecond)
//	}
//
//	// OUTPUT:
//	//rtguard:nonblocking
//	func process(buf []float32) {
//		rtguard.EnterContext()
//		defer rtguard.ExitContext()
//		rtguard.Sleep(time.Millisecond)
//	}
//
// Thread Safety: NOT thread-safe. Instrument one file at a time.
package instrument

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
)

const (
	// RuntimeImportPath is the import path of the sanitizer's public API,
	// injected into every file the instrumenter touches.
	RuntimeImportPath = "github.com/kolkov/rtguard/rtguard"

	// RuntimeAlias is the identifier instrumented code calls the runtime
	// by: rtguard.EnterContext(), rtguard.Sleep(), ...
	RuntimeAlias = "rtguard"
)

// Stats tracks what one instrumentation pass did to a file.
type Stats struct {
	ScopesInserted  int  // functions wrapped in Enter/Exit context pairs
	MarkersInserted int  // blocking-call markers inserted
	CallsRewritten  int  // stdlib calls redirected to wrappers
	MainInjected    bool // Init/Fini injected into func main
}

// Total returns the number of sanitizer calls inserted.
func (s *Stats) Total() int {
	n := 2*s.ScopesInserted + s.MarkersInserted + s.CallsRewritten
	if s.MainInjected {
		n += 2
	}
	return n
}

// Result holds the instrumented source and pass statistics.
type Result struct {
	Code  string
	Stats Stats
}

// File instruments a single Go source file.
//
// src follows the go/parser convention: nil reads from filename, otherwise
// it may be a string, []byte or io.Reader. The returned code is a complete
// file ready to compile against the sanitizer runtime.
//
// Files that need no instrumentation (no directives, no rewritable calls,
// no main function) come back unchanged, without the runtime import.
func File(filename string, src any) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	rw := newRewriter(fset, file)
	rw.rewrite()
	stats := rw.Stats()

	if stats.Total() > 0 {
		if err := ensureRuntimeImport(file); err != nil {
			return nil, NewError(fset, file.Pos(), err.Error())
		}
	}

	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("print %s: %w", filename, err)
	}

	return &Result{Code: buf.String(), Stats: stats}, nil
}
