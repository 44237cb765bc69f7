package codegen

import (
	"fmt"

	"github.com/CTAG07/gentpl/pkg/expr"
)

// Attrs is a parsed attribute string.
type Attrs struct {
	raw   string
	nodes []expr.Node
}

func ParseAttrs(s string) (Attrs, error) {
	nodes, err := expr.Parse(s)
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{raw: s, nodes: nodes}, nil
}

func (a Attrs) String() string { return a.raw }
func (a Attrs) IsEmpty() bool  { return len(a.nodes) == 0 }

// Eval reports whether every top-level operation holds under vars.
func (a Attrs) Eval(vars Variables) bool {
	return expr.EvalAll(a.nodes, vars)
}

// Named extracts parameters. `key=value` operations bind key directly; bare
// terms fill names in order, without replacing a binding that already exists.
// A bare term always consumes its slot, bound or not.
func (a Attrs) Named(names ...string) NamedAttrs {
	var out NamedAttrs
	i := 0
	for _, n := range a.nodes {
		if b, ok := n.(expr.Binary); ok {
			if b.Op != expr.OpEq {
				continue
			}
			k, kok := expr.Terminal(b.Left)
			v, vok := expr.Terminal(b.Right)
			if kok && vok {
				out = out.put(k, v)
			}
			continue
		}
		text, ok := expr.Terminal(n)
		if !ok {
			continue
		}
		if i < len(names) {
			out = out.putIfAbsent(names[i], text)
		}
		i++
	}
	return out
}

// NamedAttr is one extracted parameter.
type NamedAttr struct {
	Key   string
	Value string
}

// NamedAttrs keeps parameters in the order they were first bound.
type NamedAttrs []NamedAttr

func (n NamedAttrs) Get(key string) (string, bool) {
	for _, a := range n {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (n NamedAttrs) put(key, value string) NamedAttrs {
	for i := range n {
		if n[i].Key == key {
			n[i].Value = value
			return n
		}
	}
	return append(n, NamedAttr{Key: key, Value: value})
}

func (n NamedAttrs) putIfAbsent(key, value string) NamedAttrs {
	if _, ok := n.Get(key); ok {
		return n
	}
	return append(n, NamedAttr{Key: key, Value: value})
}

func (n NamedAttrs) Map() map[string]string {
	out := make(map[string]string, len(n))
	for _, a := range n {
		out[a.Key] = a.Value
	}
	return out
}

// Variables converts the parameters into a variable set, delimiting keys.
func (n NamedAttrs) Variables() Variables {
	m := make(map[string]any, len(n))
	for _, a := range n {
		m[a.Key] = a.Value
	}
	return FixUpVariables(m)
}

// CompiledDirective is a Directive with its attributes parsed once at compile
// time.
type CompiledDirective struct {
	Directive
	Parsed Attrs
	Named  NamedAttrs
	Target string // import target id
}

var namedParams = map[Kind][]string{
	KindImport:      {"file", "block"},
	KindPlaceholder: {"file"},
}

// CompileDirective parses the attributes of d and validates what a directive
// of its kind requires.
func CompileDirective(d Directive) (CompiledDirective, error) {
	cd := CompiledDirective{Directive: d}
	if d.Kind == KindComment {
		return cd, nil
	}

	attrs, err := ParseAttrs(d.Attrs)
	if err != nil {
		return cd, fmt.Errorf("%s: %w", d.Key(), err)
	}
	cd.Parsed = attrs

	switch d.Kind {
	case KindImport, KindPlaceholder:
		cd.Named = attrs.Named(namedParams[d.Kind]...)
		file, ok := cd.Named.Get("file")
		if !ok || file == "" {
			return cd, fmt.Errorf("%s: %w \"file\"", d.Key(), ErrMissingAttribute)
		}
		if d.Kind == KindImport {
			if cd.Target, err = templateID(file); err != nil {
				return cd, fmt.Errorf("%s: %w", d.Key(), err)
			}
		}
	case KindWith, KindNone:
		cd.Named = attrs.Named()
	}
	return cd, nil
}
