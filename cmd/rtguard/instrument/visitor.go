// Package instrument - AST rewriting for directives and blocking calls.
package instrument

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

// Directive comments recognized on function declarations.
const (
	directiveNonblocking = "//rtguard:nonblocking"
	directiveBlocking    = "//rtguard:blocking"
)

// rewriteTargets maps stdlib package-level functions to their intercepted
// wrappers, keyed by import path then function name. Only package-level
// functions appear here: method calls cannot be identified without type
// information, so locking and file I/O methods rely on directives.
var rewriteTargets = map[string]map[string]string{
	"time": {"Sleep": "Sleep"},
	"os":   {"Open": "Open", "OpenFile": "OpenFile"},
	"net":  {"Dial": "Dial"},
}

// rewriter performs one instrumentation pass over a parsed file.
//
// The pass mutates the AST in place. Call rewriting swaps the Fun field of
// call expressions during the walk, which is safe; statement insertion
// happens per function body, outside any walk over that body's list.
type rewriter struct {
	fset *token.FileSet
	file *ast.File

	// imports maps local package identifiers ("time", "myos") to import
	// paths, so a call through a renamed import is still recognized and a
	// local variable shadowing a package name is less likely to match.
	imports map[string]string

	stats Stats
}

func newRewriter(fset *token.FileSet, file *ast.File) *rewriter {
	imports := make(map[string]string)
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		if imp.Name != nil {
			name = imp.Name.Name
		}
		imports[name] = path
	}
	return &rewriter{fset: fset, file: file, imports: imports}
}

// Stats returns what the pass changed.
func (r *rewriter) Stats() Stats {
	return r.stats
}

// rewrite applies the full pass: directive handling per function, call
// rewriting everywhere, lifecycle injection into main.
func (r *rewriter) rewrite() {
	for _, decl := range r.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}

		switch {
		case hasDirective(fn.Doc, directiveNonblocking):
			r.wrapNonblocking(fn)
		case hasDirective(fn.Doc, directiveBlocking):
			r.markBlocking(fn)
		}
	}

	ast.Inspect(r.file, r.rewriteCall)

	if r.file.Name.Name == "main" {
		r.injectLifecycle()
	}
}

// hasDirective reports whether doc carries the given directive comment.
// Directives follow the //go: convention: no space after the slashes, so a
// prose mention like "// rtguard:nonblocking would help here" never
// triggers instrumentation.
func hasDirective(doc *ast.CommentGroup, directive string) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if c.Text == directive || strings.HasPrefix(c.Text, directive+" ") {
			return true
		}
	}
	return false
}

// wrapNonblocking prepends the realtime scope pair to fn's body:
//
//	rtguard.EnterContext()
//	defer rtguard.ExitContext()
//
// The deferred exit keeps the pair balanced on every return path and on
// panic, which the detector's scope accounting depends on.
func (r *rewriter) wrapNonblocking(fn *ast.FuncDecl) {
	enter := &ast.ExprStmt{X: runtimeCall("EnterContext")}
	exit := &ast.DeferStmt{Call: runtimeCall("ExitContext")}

	fn.Body.List = append([]ast.Stmt{enter, exit}, fn.Body.List...)
	r.stats.ScopesInserted++
}

// markBlocking prepends a blocking-call marker naming the function:
//
//	rtguard.NotifyBlockingCall("loadPreset")
//
// The marker only reports when reached from a realtime scope, so marked
// functions stay silent in ordinary use.
func (r *rewriter) markBlocking(fn *ast.FuncDecl) {
	call := runtimeCall("NotifyBlockingCall")
	call.Args = []ast.Expr{&ast.BasicLit{
		Kind:  token.STRING,
		Value: strconv.Quote(fn.Name.Name),
	}}

	fn.Body.List = append([]ast.Stmt{&ast.ExprStmt{X: call}}, fn.Body.List...)
	r.stats.MarkersInserted++
}

// rewriteCall redirects a recognized stdlib call to its wrapper by
// swapping the call's Fun selector in place. Returns true so the walk
// continues into arguments, which may themselves contain calls.
func (r *rewriter) rewriteCall(node ast.Node) bool {
	call, ok := node.(*ast.CallExpr)
	if !ok {
		return true
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return true
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Obj != nil {
		// A non-nil Obj means the identifier resolves to a local
		// declaration, not a package.
		return true
	}

	path, ok := r.imports[pkg.Name]
	if !ok {
		return true
	}
	wrapper, ok := rewriteTargets[path][sel.Sel.Name]
	if !ok {
		return true
	}

	call.Fun = &ast.SelectorExpr{
		X:   ast.NewIdent(RuntimeAlias),
		Sel: ast.NewIdent(wrapper),
	}
	r.stats.CallsRewritten++
	return true
}

// injectLifecycle prepends Init and a deferred Fini to func main:
//
//	rtguard.Init()
//	defer rtguard.Fini()
//
// Init is idempotent, so a program whose main already calls it explicitly
// is not harmed by the injected copy.
func (r *rewriter) injectLifecycle() {
	for _, decl := range r.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
			continue
		}

		initStmt := &ast.ExprStmt{X: runtimeCall("Init")}
		finiStmt := &ast.DeferStmt{Call: runtimeCall("Fini")}
		fn.Body.List = append([]ast.Stmt{initStmt, finiStmt}, fn.Body.List...)
		r.stats.MainInjected = true
		return
	}
}

// runtimeCall builds the expression rtguard.<name>() with no arguments.
func runtimeCall(name string) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(RuntimeAlias),
			Sel: ast.NewIdent(name),
		},
	}
}
