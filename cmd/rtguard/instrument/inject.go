// Package instrument - runtime import injection.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

// ensureRuntimeImport adds the sanitizer runtime import to the file if it
// is not already present.
//
// Handled cases:
//   - no import section: a new grouped block is created after package
//   - runtime already imported: nothing is added
//   - runtime imported under another alias: an error, because inserted
//     calls reference the canonical identifier
//   - a different package occupies the rtguard identifier: an error, the
//     file must rename that import before instrumentation
func ensureRuntimeImport(file *ast.File) error {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}

		if path == RuntimeImportPath {
			if imp.Name != nil && imp.Name.Name != RuntimeAlias {
				return fmt.Errorf("runtime imported as %q, instrumented calls need %q",
					imp.Name.Name, RuntimeAlias)
			}
			return nil
		}

		localName := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			localName = path[i+1:]
		}
		if imp.Name != nil {
			localName = imp.Name.Name
		}
		if localName == RuntimeAlias {
			return fmt.Errorf("import %s occupies the %q identifier needed by instrumentation",
				imp.Path.Value, RuntimeAlias)
		}
	}

	spec := &ast.ImportSpec{
		Path: &ast.BasicLit{
			Kind:  token.STRING,
			Value: strconv.Quote(RuntimeImportPath),
		},
	}

	// Reuse the first import block when one exists, otherwise open a new
	// grouped block right after the package clause.
	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if ok && genDecl.Tok == token.IMPORT {
			importDecl = genDecl
			break
		}
	}
	if importDecl == nil {
		importDecl = &ast.GenDecl{
			Tok:    token.IMPORT,
			Lparen: 1, // non-zero Lparen forces grouped output
		}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	}

	importDecl.Specs = append(importDecl.Specs, spec)
	if importDecl.Lparen == 0 && len(importDecl.Specs) > 1 {
		importDecl.Lparen = 1
	}
	file.Imports = append(file.Imports, spec)

	return nil
}
