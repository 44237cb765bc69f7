package expr

import "fmt"

var closers = map[string]string{"(": ")", "[": "]"}

type parser struct {
	input  string
	tokens []Token
	pos    int
}

// Parse parses an attribute string into its top-level operations. An empty or
// blank input yields an empty list.
func Parse(input string) ([]Node, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}

	var nodes []Node
	for !p.done() {
		n, err := p.operation()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(input string) []Node {
	nodes, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return nodes
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() (Token, bool) {
	if p.done() {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) errorf(pos int, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{err}, args...)...)
	}
	return &SyntaxError{Input: p.input, Pos: pos, Err: err}
}

func (p *parser) endPos() int {
	return len(p.input)
}

// operation := operand { infix operand }
func (p *parser) operation() (Node, error) {
	first, err := p.operand()
	if err != nil {
		return nil, err
	}

	operands := []Node{first}
	var ops []Op
	var opPos []int
	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != TokenOperator {
			break
		}
		op, isInfix := infixOps[tok.Text]
		if !isInfix {
			if tok.Text == "!" {
				// a prefix operator starts the next operation
				break
			}
			return nil, p.errorf(tok.Pos, ErrUnknownOperator, "%q", tok.Text)
		}
		p.pos++
		next, err := p.operand()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		opPos = append(opPos, tok.Pos)
		operands = append(operands, next)
	}

	switch len(ops) {
	case 0:
		return first, nil
	case 1:
		return Binary{Op: ops[0], Left: operands[0], Right: operands[1]}, nil
	}

	for i, op := range ops {
		if op.Family() == OpNeq {
			return nil, p.errorf(opPos[i], ErrMixedOperators, "%q cannot be chained", op.String())
		}
		if op.Family() != ops[0].Family() {
			return nil, p.errorf(opPos[i], ErrMixedOperators, "%q after %q", op.String(), ops[0].String())
		}
	}
	return Chain{Op: ops[0], Operands: operands}, nil
}

// operand := [ "!" | "not" ] operand | term
func (p *parser) operand() (Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.errorf(p.endPos(), ErrUnexpectedToken, "end of input")
	}
	if (tok.Kind == TokenOperator && tok.Text == "!") || (tok.Kind == TokenIdent && tok.Text == "not") {
		p.pos++
		x, err := p.operand()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.term()
}

func (p *parser) term() (Node, error) {
	tok, _ := p.peek()
	switch tok.Kind {
	case TokenIdent:
		p.pos++
		return Ident{Name: tok.Text}, nil
	case TokenNumber:
		p.pos++
		return Number{Text: tok.Text}, nil
	case TokenLiteral:
		p.pos++
		return Literal{Text: tok.Text, Quote: tok.Quote}, nil
	case TokenOpen:
		want, ok := closers[tok.Text]
		if !ok {
			return nil, p.errorf(tok.Pos, ErrUnexpectedToken, "bracket %q is not supported", tok.Text)
		}
		p.pos++
		inner, err := p.operation()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.Kind != TokenClose || closing.Text != want {
			pos := p.endPos()
			if ok {
				pos = closing.Pos
			}
			return nil, p.errorf(pos, ErrUnbalancedBracket, "expected %q", want)
		}
		p.pos++
		return Group{X: inner, Bracket: tok.Text[0]}, nil
	case TokenClose:
		return nil, p.errorf(tok.Pos, ErrUnbalancedBracket, "unexpected %q", tok.Text)
	default:
		return nil, p.errorf(tok.Pos, ErrUnexpectedToken, "%s %q", tok.Kind, tok.Text)
	}
}
