package codegen

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind identifies a predefined directive. Custom directives have KindNone.
type Kind int

const (
	KindNone Kind = iota
	KindIf
	KindElse
	KindImport
	KindPlaceholder
	KindAssume
	KindAssert
	KindWith
	KindRemove
	KindComment
	KindEOT
)

var keywords = map[string]Kind{
	"if":          KindIf,
	"else":        KindElse,
	"import":      KindImport,
	"placeholder": KindPlaceholder,
	"assume":      KindAssume,
	"assert":      KindAssert,
	"with":        KindWith,
	"remove":      KindRemove,
	"EOT":         KindEOT,
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindComment:
		return "comment"
	}
	for word, kind := range keywords {
		if kind == k {
			return word
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Scope decides whether a directive opens a block or stands alone.
type Scope int

const (
	ScopeDefault Scope = iota
	ScopeForceInline
	ScopeForceBlock
)

func (k Kind) Scope() Scope {
	switch k {
	case KindImport, KindPlaceholder, KindAssume, KindAssert, KindRemove, KindComment:
		return ScopeForceInline
	case KindIf, KindElse, KindWith, KindEOT:
		return ScopeForceBlock
	default:
		return ScopeDefault
	}
}

// Modifier marks a custom directive as the start or end of a named block.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierStart
	ModifierEnd
)

// Type is the syntactic form a directive was written in.
type Type int

const (
	TypeInline Type = iota
	TypeBlock
	TypeCommentInline
	TypeCommentBlock
)

func (t Type) IsComment() bool {
	return t == TypeCommentInline || t == TypeCommentBlock
}

func (t Type) IsInline() bool {
	return t == TypeInline || t == TypeCommentInline
}

// Directive is one parsed marker payload.
type Directive struct {
	Name     string
	Kind     Kind
	Modifier Modifier
	Type     Type
	Attrs    string
}

// ParseDirective interprets the trimmed payload of a marker. The first word is
// the key; the rest is kept verbatim as the attribute string.
func ParseDirective(content string, typ Type) Directive {
	content = strings.TrimSpace(content)
	if typ.IsComment() {
		return Directive{Kind: KindComment, Type: typ, Attrs: content}
	}

	key, attrs := content, ""
	if i := strings.IndexFunc(content, unicode.IsSpace); i >= 0 {
		key, attrs = content[:i], strings.TrimSpace(content[i+1:])
	}

	if kind, ok := keywords[key]; ok {
		return Directive{Kind: kind, Type: typ, Attrs: attrs}
	}

	d := Directive{Name: key, Kind: KindNone, Type: typ, Attrs: attrs}
	switch {
	case key == "start":
		d.Name, d.Modifier = "", ModifierStart
	case key == "end":
		d.Name, d.Modifier = "", ModifierEnd
	case strings.HasSuffix(key, "-start"):
		d.Name, d.Modifier = strings.TrimSuffix(key, "-start"), ModifierStart
	case strings.HasSuffix(key, "-end"):
		d.Name, d.Modifier = strings.TrimSuffix(key, "-end"), ModifierEnd
	}
	return d
}

// Key renders the directive keyword back, e.g. "if" or "header-end".
func (d Directive) Key() string {
	if d.Kind != KindNone {
		return d.Kind.String()
	}
	var suffix string
	switch d.Modifier {
	case ModifierStart:
		suffix = "start"
	case ModifierEnd:
		suffix = "end"
	default:
		return d.Name
	}
	if d.Name == "" {
		return suffix
	}
	return d.Name + "-" + suffix
}

// IsTreatedInline reports whether d stands alone rather than opening a block.
// Start and end markers are always structural.
func (d Directive) IsTreatedInline() bool {
	switch d.Kind.Scope() {
	case ScopeForceInline:
		return true
	case ScopeForceBlock:
		return false
	}
	return d.Type.IsInline() && d.Modifier == ModifierNone
}

// CanBeClosedBy reports whether closer ends the block opened by d.
func (d Directive) CanBeClosedBy(closer Directive) bool {
	return d.Name == closer.Name && d.Modifier != ModifierEnd && closer.Modifier == ModifierEnd
}

func (d Directive) String() string {
	if d.Attrs == "" {
		return d.Key()
	}
	return d.Key() + " " + d.Attrs
}
