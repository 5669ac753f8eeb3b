// Package instrument - positioned error type.
package instrument

import (
	"fmt"
	"go/token"
)

// Error is an instrumentation failure tied to a source position.
//
// Format: file:line:column: message, the shape editors and CI log
// scrapers already understand. A Suggestion, when present, is appended on
// its own line.
type Error struct {
	File       string
	Line       int
	Column     int
	Message    string
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewError builds an Error at the given AST position.
func NewError(fset *token.FileSet, pos token.Pos, msg string) *Error {
	position := fset.Position(pos)
	return &Error{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewErrorWithSuggestion builds an Error carrying an actionable hint.
func NewErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *Error {
	err := NewError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}
