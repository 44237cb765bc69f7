package codegen

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestJavaMarkingExtract(t *testing.T) {
	m := NewJavaMarking(nil)
	tests := []struct {
		line       string
		want       Directive
		start, end int
	}{
		{"/*= if $x$ =*/", Directive{Kind: KindIf, Type: TypeBlock, Attrs: "$x$"}, 0, 14},
		{"foo /*= remove =*/", Directive{Kind: KindRemove, Type: TypeBlock}, 4, 18},
		{"//= remove", Directive{Kind: KindRemove, Type: TypeInline}, 0, 10},
		{"  //= remove ", Directive{Kind: KindRemove, Type: TypeInline}, 2, 13},
		{"  //= remove =// ", Directive{Kind: KindRemove, Type: TypeInline}, 2, 16},
		{"//= import `a/B.java`", Directive{Kind: KindImport, Type: TypeInline, Attrs: "`a/B.java`"}, 0, 21},
		{"//~ The text!", Directive{Kind: KindComment, Type: TypeCommentInline, Attrs: "The text!"}, 0, 13},
		{"/*~ note ~*/ x", Directive{Kind: KindComment, Type: TypeCommentBlock, Attrs: "note"}, 0, 12},
		{"a //=foo=// b /*= bar =*/", Directive{Name: "foo", Type: TypeInline}, 2, 11},
		{"/*==*/", Directive{Type: TypeBlock}, 0, 6},
	}
	for _, tt := range tests {
		pos, ok := m.Extract(tt.line)
		if !ok {
			t.Errorf("Extract(%q) found nothing", tt.line)
			continue
		}
		if pos.Directive != tt.want || pos.Start != tt.start || pos.End != tt.end {
			t.Errorf("Extract(%q) = %+v [%d,%d), want %+v [%d,%d)",
				tt.line, pos.Directive, pos.Start, pos.End, tt.want, tt.start, tt.end)
		}
	}
}

func TestJavaMarkingExtractNone(t *testing.T) {
	var buf bytes.Buffer
	m := NewJavaMarking(slog.New(slog.NewTextHandler(&buf, nil)))

	for _, line := range []string{"", "foo", "// remove", "// remove =//", "/* plain comment */"} {
		if pos, ok := m.Extract(line); ok {
			t.Errorf("Extract(%q) = %+v, want none", line, pos)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected warnings: %s", buf.String())
	}
}

func TestJavaMarkingWarnsOnTypos(t *testing.T) {
	for _, line := range []string{"/*= if $x$", "if $x$ =*/", "/*= if $x$ *=/", "/*~ note"} {
		var buf bytes.Buffer
		m := NewJavaMarking(slog.New(slog.NewTextHandler(&buf, nil)))
		if pos, ok := m.Extract(line); ok {
			t.Errorf("Extract(%q) = %+v, want none", line, pos)
		}
		if !strings.Contains(buf.String(), "Possible typo") {
			t.Errorf("Extract(%q) logged %q, want a typo warning", line, buf.String())
		}
	}
}

func TestJavaMarkingCompose(t *testing.T) {
	m := NewJavaMarking(nil)
	tests := []struct {
		d    Directive
		want string
	}{
		{Directive{Kind: KindRemove, Type: TypeBlock}, "/*= remove =*/"},
		{Directive{Kind: KindRemove, Type: TypeInline}, "//= remove"},
		{Directive{Kind: KindEOT, Type: TypeBlock}, "/*= EOT =*/"},
		{Directive{Name: "foo", Modifier: ModifierEnd, Type: TypeBlock}, "/*= foo-end =*/"},
		{Directive{Kind: KindIf, Type: TypeBlock, Attrs: "$x$ = y"}, "/*= if $x$ = y =*/"},
		{Directive{Kind: KindComment, Type: TypeCommentBlock, Attrs: "hi"}, "/*~ hi ~*/"},
	}
	for _, tt := range tests {
		got := m.Compose(tt.d)
		if got != tt.want {
			t.Errorf("Compose(%+v) = %q, want %q", tt.d, got, tt.want)
		}
		pos, ok := m.Extract(got)
		if !ok || pos.Directive != tt.d {
			t.Errorf("Extract(Compose(%+v)) = %+v, %v", tt.d, pos.Directive, ok)
		}
	}
}
