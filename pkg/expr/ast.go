package expr

import (
	"fmt"
	"strings"
)

// Op is an infix operator.
type Op int

const (
	OpEq Op = iota
	OpEqEq
	OpNeq
	OpAnd
	OpAndAnd
	OpOr
	OpOrOr
)

var opText = map[Op]string{
	OpEq:     "=",
	OpEqEq:   "==",
	OpNeq:    "!=",
	OpAnd:    "&",
	OpAndAnd: "&&",
	OpOr:     "|",
	OpOrOr:   "||",
}

var infixOps = map[string]Op{
	"=":  OpEq,
	"==": OpEqEq,
	"!=": OpNeq,
	"&":  OpAnd,
	"&&": OpAndAnd,
	"|":  OpOr,
	"||": OpOrOr,
}

func (o Op) String() string {
	if s, ok := opText[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Family folds the single and double spellings of an operator together.
func (o Op) Family() Op {
	switch o {
	case OpEqEq:
		return OpEq
	case OpAndAnd:
		return OpAnd
	case OpOrOr:
		return OpOr
	default:
		return o
	}
}

// Node is a parsed attribute expression.
type Node interface {
	fmt.Stringer
	node()
}

type (
	// Ident is a bare name such as `lang` or `$lang$`.
	Ident struct {
		Name string
	}

	// Number is a numeric term, kept as text.
	Number struct {
		Text string
	}

	// Literal is a quoted string.
	Literal struct {
		Text  string
		Quote byte
	}

	// Not negates its operand.
	Not struct {
		X Node
	}

	// Group is an operation wrapped in round or square brackets.
	Group struct {
		X       Node
		Bracket byte
	}

	// Binary is a single infix application.
	Binary struct {
		Op          Op
		Left, Right Node
	}

	// Chain is two or more applications of the same operator family,
	// e.g. `a = b = c`.
	Chain struct {
		Op       Op
		Operands []Node
	}
)

func (Ident) node()   {}
func (Number) node()  {}
func (Literal) node() {}
func (Not) node()     {}
func (Group) node()   {}
func (Binary) node()  {}
func (Chain) node()   {}

func (n Ident) String() string  { return n.Name }
func (n Number) String() string { return n.Text }

func (n Literal) String() string {
	return string(n.Quote) + n.Text + string(n.Quote)
}

func (n Not) String() string {
	return "!" + n.X.String()
}

func (n Group) String() string {
	if n.Bracket == '[' {
		return "[" + n.X.String() + "]"
	}
	return "(" + n.X.String() + ")"
}

func (n Binary) String() string {
	return n.Left.String() + " " + n.Op.String() + " " + n.Right.String()
}

func (n Chain) String() string {
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = o.String()
	}
	return strings.Join(parts, " "+n.Op.String()+" ")
}

// Terminal returns the text of an identifier, number or literal node.
func Terminal(n Node) (string, bool) {
	switch t := n.(type) {
	case Ident:
		return t.Name, true
	case Number:
		return t.Text, true
	case Literal:
		return t.Text, true
	default:
		return "", false
	}
}
