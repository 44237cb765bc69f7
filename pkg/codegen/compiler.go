package codegen

import (
	"fmt"
	"strings"
)

// Compiler turns template lines into a CompiledTemplate. It holds no state
// between calls and is safe for concurrent use.
type Compiler struct {
	marking Marking
}

func NewCompiler(marking Marking) *Compiler {
	return &Compiler{marking: marking}
}

// fragment is a piece of a source line: literal text or a directive.
type fragment struct {
	text      string
	directive *Directive
	head      bool // first fragment of its line
	tail      bool // last fragment of its line
}

// frame is an open block on the compile stack. The root frame has no
// directive.
type frame struct {
	directive *CompiledDirective
	line      int
	blocks    []Block

	pending       []string
	pendingJoined bool
	pendingOpen   bool
}

func (f *frame) addText(frag fragment) {
	if len(f.pending) == 0 {
		f.pendingJoined = !frag.head
	}
	f.pending = append(f.pending, frag.text)
	f.pendingOpen = !frag.tail
}

func (f *frame) flush() {
	if len(f.pending) == 0 {
		return
	}
	f.blocks = append(f.blocks, Block{
		Kind:    BlockLiteral,
		Literal: LiteralBlock{Lines: f.pending, Joined: f.pendingJoined, Open: f.pendingOpen},
	})
	f.pending, f.pendingJoined, f.pendingOpen = nil, false, false
}

func (f *frame) attach(b Block) {
	f.flush()
	f.blocks = append(f.blocks, b)
}

func (f *frame) finish() []Block {
	f.flush()
	return f.blocks
}

type frameStack []*frame

func (s *frameStack) push(f *frame) { *s = append(*s, f) }

func (s *frameStack) pop() *frame {
	old := *s
	f := old[len(old)-1]
	*s = old[:len(old)-1]
	return f
}

func (s frameStack) top() *frame { return s[len(s)-1] }

// popAndAttach closes the innermost frame and attaches its block to the parent.
func (s *frameStack) popAndAttach() {
	f := s.pop()
	s.top().attach(NewDirectiveBlock(*f.directive, f.finish()...))
}

// Compile builds the block tree for the template id from its lines.
func (c *Compiler) Compile(id string, lines []string) (*CompiledTemplate, error) {
	stack := frameStack{&frame{}}

	for n, line := range lines {
		lineNo := n + 1
		for _, frag := range c.split(line) {
			if frag.directive == nil {
				stack.top().addText(frag)
				continue
			}
			if err := c.apply(&stack, *frag.directive, lineNo); err != nil {
				return nil, &CompileError{Template: id, Line: lineNo, Err: err}
			}
		}
	}

	if top := stack.top(); top.directive != nil && top.directive.Kind == KindEOT {
		stack.popAndAttach()
	}
	if len(stack) > 1 {
		top := stack.top()
		return nil, &CompileError{
			Template: id,
			Line:     top.line,
			Err:      fmt.Errorf("%w: %q", ErrUnterminatedDirective, top.directive.Key()),
		}
	}
	return &CompiledTemplate{ID: id, Blocks: stack.top().finish()}, nil
}

func (c *Compiler) apply(stack *frameStack, d Directive, lineNo int) error {
	cd, err := CompileDirective(d)
	if err != nil {
		return err
	}
	if d.IsTreatedInline() {
		stack.top().attach(NewDirectiveBlock(cd))
		return nil
	}

	top := stack.top()
	if top.directive != nil && top.directive.Kind == KindIf && d.Kind == KindElse {
		cd.Directive.Attrs = top.directive.Directive.Attrs
		cd.Parsed = top.directive.Parsed
		stack.popAndAttach()
		stack.push(&frame{directive: &cd, line: lineNo})
		return nil
	}

	if top.directive == nil || !top.directive.CanBeClosedBy(d) {
		switch {
		case d.Modifier == ModifierEnd:
			return fmt.Errorf("%w: %q", ErrUnmatchedClose, d.Key())
		case d.Kind == KindElse:
			return ErrUnmatchedElse
		}
		stack.push(&frame{directive: &cd, line: lineNo})
		return nil
	}

	stack.popAndAttach()
	return nil
}

// split cuts a source line into literal and directive fragments.
func (c *Compiler) split(line string) []fragment {
	var out []fragment
	rest, head := line, true
	for {
		pos, ok := c.marking.Extract(rest)
		if !ok {
			if head || strings.TrimSpace(rest) != "" {
				out = append(out, fragment{text: rest, head: head, tail: true})
			}
			return out
		}

		d := pos.Directive
		prefix := rest[:pos.Start]
		keep := strings.TrimSpace(prefix) != "" || d.IsTreatedInline()
		if !head && prefix == "" {
			keep = false
		}
		if keep {
			out = append(out, fragment{text: prefix, head: head})
		}
		out = append(out, fragment{directive: &d})
		rest, head = rest[pos.End:], false
	}
}
