package expr

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedChar      = errors.New("unexpected character")
	ErrUnterminatedLiteral = errors.New("unterminated literal")
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrUnexpectedToken     = errors.New("unexpected token")
	ErrUnbalancedBracket   = errors.New("unbalanced bracket")
	ErrMixedOperators      = errors.New("chained operators must be the same")
)

// SyntaxError describes a failure to lex or parse an attribute string.
type SyntaxError struct {
	Input string
	Pos   int
	Err   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: %v at offset %d in %q", e.Err, e.Pos, e.Input)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
