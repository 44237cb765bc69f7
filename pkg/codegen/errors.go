package codegen

import (
	"errors"
	"fmt"
)

var (
	ErrUnterminatedDirective = errors.New("unterminated directive")
	ErrUnmatchedClose        = errors.New("closing directive does not match any open block")
	ErrUnmatchedElse         = errors.New("else without a preceding if")
	ErrMissingAttribute      = errors.New("missing required attribute")
	ErrUnresolvedPlaceholder = errors.New("placeholder variable is not bound")
	ErrAssertionFailed       = errors.New("assertion failed")
	ErrUnknownDirective      = errors.New("unknown directive kind")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrBlockNotFound         = errors.New("named block not found")
	ErrNothingToRemove       = errors.New("remove on empty output")
	ErrInvalidVariable       = errors.New("variable key must be delimited by '$'")
	ErrOutsideRoot           = errors.New("path escapes its root directory")
)

// CompileError locates a compile failure in its template.
type CompileError struct {
	Template string
	Line     int // 1-based, 0 when the error is not tied to a line
	Err      error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d: %v", e.Template, e.Line, e.Err)
	}
	return fmt.Sprintf("compile %s: %v", e.Template, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
