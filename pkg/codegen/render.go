package codegen

import "fmt"

type renderStatus int

const (
	statusContinue renderStatus = iota
	statusSealed                // EOT reached, the rest of the template is dropped
	statusSkipped               // an assumption failed, the whole instance is dropped
)

// renderer walks compiled templates. It is created per top-level render and
// holds the template set resolved for it.
type renderer struct {
	templates  map[string]*CompiledTemplate
	skipReason string
}

type renderState struct {
	id   string
	vars TemplateVars
	buf  *LinesBuilder
}

func (r *renderer) renderBlocks(st *renderState, blocks []Block) (renderStatus, error) {
	for _, b := range blocks {
		var (
			status renderStatus
			err    error
		)
		switch b.Kind {
		case BlockLiteral:
			st.buf.AppendLiteral(b.Literal)
		case BlockDirective:
			status, err = r.renderDirective(st, b.Directive)
		}
		if err != nil || status != statusContinue {
			return status, err
		}
	}
	return statusContinue, nil
}

func (r *renderer) renderDirective(st *renderState, db DirectiveBlock) (renderStatus, error) {
	d := db.Directive
	switch d.Kind {
	case KindImport:
		return r.renderImport(st, d)

	case KindRemove:
		if !st.buf.RemoveLast() {
			return statusContinue, ErrNothingToRemove
		}

	case KindIf:
		if d.Parsed.Eval(st.vars.Vars) {
			return r.renderBlocks(st, db.Inner)
		}
		st.buf.RemoveLastIfBlank()

	case KindElse:
		if !d.Parsed.Eval(st.vars.Vars) {
			return r.renderBlocks(st, db.Inner)
		}
		st.buf.RemoveLastIfBlank()

	case KindPlaceholder:
		name, _ := d.Named.Get("file")
		st.buf.RemoveLastIfBlank()
		value, ok := st.vars.Vars.Get(NormalizeKey(name))
		if !ok {
			return statusContinue, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, NormalizeKey(name))
		}
		st.buf.AppendMultiline(value)

	case KindAssume:
		st.buf.RemoveLastIfBlank()
		if !d.Parsed.Eval(st.vars.Vars) {
			r.skipReason = fmt.Sprintf("%s: assume %s", st.id, d.Parsed)
			return statusSkipped, nil
		}

	case KindAssert:
		st.buf.RemoveLastIfBlank()
		if !d.Parsed.Eval(st.vars.Vars) {
			return statusContinue, fmt.Errorf("%w: %s", ErrAssertionFailed, d.Parsed)
		}

	case KindWith:
		return r.renderWith(st, db)

	case KindComment:
		st.buf.RemoveLastIfBlank()

	case KindEOT:
		st.buf.Seal()
		return statusSealed, nil

	case KindNone:
		return r.renderBlocks(st, db.Inner)

	default:
		return statusContinue, fmt.Errorf("%w: %v", ErrUnknownDirective, d.Kind)
	}
	return statusContinue, nil
}

func (r *renderer) renderImport(st *renderState, d CompiledDirective) (renderStatus, error) {
	target, ok := r.templates[d.Target]
	if !ok {
		return statusContinue, fmt.Errorf("%w: %s", ErrTemplateNotFound, d.Target)
	}
	blocks := target.Blocks
	if name, ok := d.Named.Get("block"); ok {
		b, found := target.FindBlock(name)
		if !found {
			return statusContinue, fmt.Errorf("%w: %q in %s", ErrBlockNotFound, name, target.ID)
		}
		blocks = []Block{b}
	}

	nested := &renderState{id: target.ID, vars: st.vars.ForImport(target.ID), buf: &LinesBuilder{}}
	status, err := r.renderBlocks(nested, blocks)
	if err != nil {
		return statusContinue, fmt.Errorf("import %s: %w", target.ID, err)
	}
	if status == statusSkipped {
		return statusSkipped, nil
	}
	// EOT in the imported template only truncates the import.
	st.buf.RemoveLastIfBlank()
	st.buf.AppendLines(interpolateLines(nested.buf.Lines(), nested.vars.Vars)...)
	return statusContinue, nil
}

func (r *renderer) renderWith(st *renderState, db DirectiveBlock) (renderStatus, error) {
	vars := st.vars.Vars.Merge(db.Directive.Named.Variables())
	child := &renderState{id: st.id, vars: st.vars.WithVars(vars), buf: &LinesBuilder{}}
	status, err := r.renderBlocks(child, db.Inner)
	if err != nil || status == statusSkipped {
		return status, err
	}
	st.buf.AppendLines(interpolateLines(child.buf.Lines(), vars)...)
	if status == statusSealed {
		st.buf.Seal()
	}
	return status, nil
}
