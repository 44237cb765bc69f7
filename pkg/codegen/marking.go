package codegen

import (
	"io"
	"log/slog"
	"strings"
)

// DirectivePosition is a directive found in a line together with the byte
// span [Start, End) its markers occupy.
type DirectivePosition struct {
	Directive Directive
	Start     int
	End       int
}

// Marking finds directive markers in a single line of template text.
type Marking interface {
	// Extract returns the first directive in line, if any.
	Extract(line string) (DirectivePosition, bool)
	// Compose writes a directive back in marker syntax.
	Compose(d Directive) string
}

type marker struct {
	open, close, reversed string
	typ                   Type
}

// Checked in this order when two markers start at the same offset.
var javaMarkers = []marker{
	{open: "/*~", close: "~*/", reversed: "*~/", typ: TypeCommentBlock},
	{open: "//~", close: "~//", typ: TypeCommentInline},
	{open: "/*=", close: "=*/", reversed: "*=/", typ: TypeBlock},
	{open: "//=", close: "=//", typ: TypeInline},
}

// JavaMarking recognizes markers that live in C-family comments, which
// covers Java, Kotlin, Go, C and friends.
type JavaMarking struct {
	logger *slog.Logger
}

// NewJavaMarking creates a JavaMarking. Malformed marker pairs are reported on
// logger as warnings; a nil logger discards them.
func NewJavaMarking(logger *slog.Logger) *JavaMarking {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &JavaMarking{logger: logger}
}

// Extract returns the leftmost well-formed directive in line.
func (m *JavaMarking) Extract(line string) (DirectivePosition, bool) {
	var best DirectivePosition
	found := false
	for _, mk := range javaMarkers {
		pos, ok := m.extract(line, mk)
		if ok && (!found || pos.Start < best.Start) {
			best, found = pos, true
		}
	}
	return best, found
}

func (m *JavaMarking) extract(line string, mk marker) (DirectivePosition, bool) {
	i := strings.Index(line, mk.open)
	if mk.typ.IsInline() {
		if i < 0 {
			return DirectivePosition{}, false
		}
		body := line[i+len(mk.open):]
		end := len(line)
		if j := strings.Index(body, mk.close); j >= 0 {
			body = body[:j]
			end = i + len(mk.open) + j + len(mk.close)
		}
		return DirectivePosition{Directive: ParseDirective(body, mk.typ), Start: i, End: end}, true
	}

	if i < 0 {
		if strings.Contains(line, mk.close) || strings.Contains(line, mk.reversed) {
			m.warnTypo(line, mk)
		}
		return DirectivePosition{}, false
	}
	j := strings.Index(line[i+len(mk.open):], mk.close)
	if j < 0 {
		m.warnTypo(line, mk)
		return DirectivePosition{}, false
	}
	body := line[i+len(mk.open) : i+len(mk.open)+j]
	end := i + len(mk.open) + j + len(mk.close)
	return DirectivePosition{Directive: ParseDirective(body, mk.typ), Start: i, End: end}, true
}

func (m *JavaMarking) warnTypo(line string, mk marker) {
	m.logger.Warn("Possible typo in directive markers",
		slog.String("open", mk.open),
		slog.String("close", mk.close),
		slog.String("line", line),
	)
}

// Compose writes d in the marker family matching its Type.
func (m *JavaMarking) Compose(d Directive) string {
	text := d.String()
	if d.Kind == KindComment {
		text = d.Attrs
	}
	switch d.Type {
	case TypeBlock:
		return "/*= " + text + " =*/"
	case TypeCommentBlock:
		return "/*~ " + text + " ~*/"
	case TypeCommentInline:
		return "//~ " + text
	default:
		return "//= " + text
	}
}
