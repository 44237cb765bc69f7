package codegen

// BlockKind tags the variant held by a Block.
type BlockKind int

const (
	BlockLiteral BlockKind = iota
	BlockDirective
)

// LiteralBlock is a run of template text copied to the output.
//
// Joined means the first line continues an output line left open by text that
// preceded a directive on the same source line. Open means the last line is
// continued by text following a directive on the same source line.
type LiteralBlock struct {
	Lines  []string
	Joined bool
	Open   bool
}

// DirectiveBlock is a directive and the blocks it encloses. Inline directives
// have no inner blocks.
type DirectiveBlock struct {
	Directive CompiledDirective
	Inner     []Block
}

// Block is a node of a compiled template. Exactly one of Literal or Directive
// is meaningful, as selected by Kind.
type Block struct {
	Kind      BlockKind
	Literal   LiteralBlock
	Directive DirectiveBlock
}

func NewLiteral(lines ...string) Block {
	return Block{Kind: BlockLiteral, Literal: LiteralBlock{Lines: lines}}
}

func NewDirectiveBlock(d CompiledDirective, inner ...Block) Block {
	return Block{Kind: BlockDirective, Directive: DirectiveBlock{Directive: d, Inner: inner}}
}

// CompiledTemplate is the immutable result of compiling one template file.
type CompiledTemplate struct {
	ID     string
	Blocks []Block
}

// FindBlock returns the first custom block called name, searching depth
// first.
func (t *CompiledTemplate) FindBlock(name string) (Block, bool) {
	return findBlock(t.Blocks, name)
}

func findBlock(blocks []Block, name string) (Block, bool) {
	for _, b := range blocks {
		if b.Kind != BlockDirective {
			continue
		}
		d := b.Directive.Directive
		if d.Kind == KindNone && d.Name == name && d.Modifier != ModifierEnd {
			return b, true
		}
		if found, ok := findBlock(b.Directive.Inner, name); ok {
			return found, true
		}
	}
	return Block{}, false
}

// References lists the ids of all imported templates, in order of first
// appearance.
func (t *CompiledTemplate) References() []string {
	var refs []string
	seen := make(map[string]struct{})
	walkBlocks(t.Blocks, func(b Block) {
		d := b.Directive.Directive
		if d.Kind != KindImport {
			return
		}
		if _, ok := seen[d.Target]; ok {
			return
		}
		seen[d.Target] = struct{}{}
		refs = append(refs, d.Target)
	})
	return refs
}

func walkBlocks(blocks []Block, fn func(Block)) {
	for _, b := range blocks {
		if b.Kind != BlockDirective {
			continue
		}
		fn(b)
		walkBlocks(b.Directive.Inner, fn)
	}
}
