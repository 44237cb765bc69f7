package codegen

import (
	"strings"
	"unicode"
)

// LinesBuilder accumulates output lines during a render. Once sealed it
// accepts no more lines; appending to a sealed builder is a programming error
// and panics.
type LinesBuilder struct {
	lines  []string
	sealed bool
	open   bool // last line may be continued by a joined literal
}

func (b *LinesBuilder) mustWritable() {
	if b.sealed {
		panic("codegen: append to sealed LinesBuilder")
	}
}

func (b *LinesBuilder) AppendLine(line string) {
	b.mustWritable()
	b.lines = append(b.lines, line)
	b.open = false
}

func (b *LinesBuilder) AppendLines(lines ...string) {
	b.mustWritable()
	b.lines = append(b.lines, lines...)
	b.open = false
}

// AppendMultiline appends text split at line breaks.
func (b *LinesBuilder) AppendMultiline(text string) {
	b.AppendLines(splitLines(text)...)
}

// AppendLiteral appends a literal block, joining its first line onto the
// previous one when both sides of a same-line directive produced text.
func (b *LinesBuilder) AppendLiteral(lit LiteralBlock) {
	b.mustWritable()
	for i, line := range lit.Lines {
		if i == 0 && lit.Joined && b.open && len(b.lines) > 0 {
			last := b.lines[len(b.lines)-1]
			if strings.TrimRightFunc(last, unicode.IsSpace) != last {
				line = strings.TrimLeftFunc(line, unicode.IsSpace)
			}
			b.lines[len(b.lines)-1] = last + line
			continue
		}
		b.lines = append(b.lines, line)
	}
	b.open = lit.Open
}

// RemoveLast drops the most recent line and reports whether there was one.
func (b *LinesBuilder) RemoveLast() bool {
	if len(b.lines) == 0 {
		return false
	}
	b.lines = b.lines[:len(b.lines)-1]
	b.open = false
	return true
}

// RemoveLastIfBlank drops the most recent line if it holds only whitespace.
func (b *LinesBuilder) RemoveLastIfBlank() bool {
	if len(b.lines) == 0 || strings.TrimSpace(b.lines[len(b.lines)-1]) != "" {
		return false
	}
	return b.RemoveLast()
}

func (b *LinesBuilder) Seal()        { b.sealed = true }
func (b *LinesBuilder) Sealed() bool { return b.sealed }
func (b *LinesBuilder) Len() int     { return len(b.lines) }

// Lines returns a copy of the accumulated lines.
func (b *LinesBuilder) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// splitLines splits text the way a line scanner would: "\n" or "\r\n"
// separated, with no empty element for a trailing newline. Empty text has no
// lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// finalizeLines interpolates every line and strips trailing whitespace.
func finalizeLines(lines []string, vars Variables) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRightFunc(vars.Interpolate(l), unicode.IsSpace)
	}
	return out
}

func interpolateLines(lines []string, vars Variables) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = vars.Interpolate(l)
	}
	return out
}
