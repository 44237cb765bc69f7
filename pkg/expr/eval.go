package expr

import (
	"strconv"
	"strings"
)

// Resolver maps an identifier to its value. Implementations return the name
// itself when nothing is bound to it.
type Resolver interface {
	Resolve(name string) string
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(name string) string

func (f ResolverFunc) Resolve(name string) string {
	return f(name)
}

// Value is the result of evaluating a node: either a piece of text or a
// boolean produced by an operator.
type Value struct {
	text   string
	b      bool
	isBool bool
}

func Text(s string) Value { return Value{text: s} }
func Bool(b bool) Value   { return Value{b: b, isBool: true} }

// Bool reports the truthiness of v. Only the text "true", in any case, is
// true.
func (v Value) Bool() bool {
	if v.isBool {
		return v.b
	}
	return strings.EqualFold(v.text, "true")
}

func (v Value) String() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return v.text
}

// Eval evaluates a single node.
func Eval(n Node, r Resolver) Value {
	switch t := n.(type) {
	case Ident:
		return Text(r.Resolve(t.Name))
	case Number:
		return Text(t.Text)
	case Literal:
		return Text(t.Text)
	case Not:
		return Bool(!Eval(t.X, r).Bool())
	case Group:
		return Eval(t.X, r)
	case Binary:
		return evalBinary(t.Op, t.Left, t.Right, r)
	case Chain:
		return evalChain(t, r)
	default:
		return Bool(false)
	}
}

func evalBinary(op Op, left, right Node, r Resolver) Value {
	switch op.Family() {
	case OpEq:
		return Bool(Eval(left, r).String() == Eval(right, r).String())
	case OpNeq:
		return Bool(Eval(left, r).String() != Eval(right, r).String())
	case OpAnd:
		return Bool(Eval(left, r).Bool() && Eval(right, r).Bool())
	case OpOr:
		return Bool(Eval(left, r).Bool() || Eval(right, r).Bool())
	default:
		return Bool(false)
	}
}

func evalChain(c Chain, r Resolver) Value {
	switch c.Op.Family() {
	case OpEq:
		first := Eval(c.Operands[0], r).String()
		for _, o := range c.Operands[1:] {
			if Eval(o, r).String() != first {
				return Bool(false)
			}
		}
		return Bool(true)
	case OpAnd:
		for _, o := range c.Operands {
			if !Eval(o, r).Bool() {
				return Bool(false)
			}
		}
		return Bool(true)
	case OpOr:
		for _, o := range c.Operands {
			if Eval(o, r).Bool() {
				return Bool(true)
			}
		}
		return Bool(false)
	default:
		return Bool(false)
	}
}

// EvalAll reports whether every node evaluates to true. An empty list is true.
func EvalAll(nodes []Node, r Resolver) bool {
	for _, n := range nodes {
		if !Eval(n, r).Bool() {
			return false
		}
	}
	return true
}
