package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"
)

// Variables is an immutable set of `$key$` → value bindings. The zero value is
// an empty set.
type Variables struct {
	values   map[string]string
	keys     []string // sorted
	replacer *strings.Replacer
}

func isDelimited(key string) bool {
	return len(key) > 2 && key[0] == '$' && key[len(key)-1] == '$'
}

// NormalizeKey wraps a bare name in `$` delimiters. Keys that already carry
// them are returned unchanged.
func NormalizeKey(name string) string {
	if isDelimited(name) {
		return name
	}
	return "$" + strings.Trim(name, "$") + "$"
}

// NewVariables copies m into a Variables set. Every key must already be
// delimited.
func NewVariables(m map[string]string) (Variables, error) {
	for k := range m {
		if !isDelimited(k) {
			return Variables{}, fmt.Errorf("%w: %q", ErrInvalidVariable, k)
		}
	}
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return newVariables(values), nil
}

// FixUpVariables builds a Variables set from loosely typed input: keys are
// delimited when necessary and values are converted to strings, nil becoming
// the empty string.
func FixUpVariables(m map[string]any) Variables {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[NormalizeKey(k)] = cast.ToString(v)
	}
	return newVariables(values)
}

// VarsOf builds Variables from alternating key, value arguments.
func VarsOf(kv ...string) Variables {
	if len(kv)%2 != 0 {
		panic("codegen: VarsOf needs an even number of arguments")
	}
	values := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		values[NormalizeKey(kv[i])] = kv[i+1]
	}
	return newVariables(values)
}

func newVariables(values map[string]string) Variables {
	if len(values) == 0 {
		return Variables{}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Longest keys first so that `$ab$` wins over `$a$` at the same offset.
	ordered := make([]string, len(keys))
	copy(ordered, keys)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	pairs := make([]string, 0, 2*len(ordered))
	for _, k := range ordered {
		pairs = append(pairs, k, values[k])
	}

	return Variables{values: values, keys: keys, replacer: strings.NewReplacer(pairs...)}
}

func (v Variables) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

func (v Variables) GetOr(key, def string) string {
	if val, ok := v.values[key]; ok {
		return val
	}
	return def
}

// Resolve implements expr.Resolver: unbound names evaluate to themselves.
func (v Variables) Resolve(name string) string {
	return v.GetOr(name, name)
}

func (v Variables) Len() int {
	return len(v.values)
}

// Keys returns the keys in sorted order.
func (v Variables) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Map returns a copy of the bindings.
func (v Variables) Map() map[string]string {
	out := make(map[string]string, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Merge returns a new set holding v's bindings overwritten by other's.
func (v Variables) Merge(other Variables) Variables {
	if other.Len() == 0 {
		return v
	}
	if v.Len() == 0 {
		return other
	}
	values := v.Map()
	for k, val := range other.values {
		values[k] = val
	}
	return newVariables(values)
}

// Interpolate substitutes every bound key in s. Substitution is a single pass:
// text produced by a value is not scanned again.
func (v Variables) Interpolate(s string) string {
	if v.replacer == nil || strings.IndexByte(s, '$') < 0 {
		return s
	}
	return v.replacer.Replace(s)
}

// Fingerprint hashes the bindings independently of insertion order.
func (v Variables) Fingerprint() string {
	d := xxhash.New()
	for _, k := range v.keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(v.values[k])
		_, _ = d.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

func (v Variables) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v.values[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// TemplateVars is the variable environment of one render: the base bindings
// plus per-template overrides applied when that template is imported.
type TemplateVars struct {
	Vars    Variables
	Context map[string]Variables
}

// ForImport returns the environment an imported template renders with.
func (tv TemplateVars) ForImport(id string) TemplateVars {
	return TemplateVars{Vars: tv.Vars.Merge(tv.Context[id]), Context: tv.Context}
}

// WithVars replaces the base bindings, keeping the import context.
func (tv TemplateVars) WithVars(vars Variables) TemplateVars {
	return TemplateVars{Vars: vars, Context: tv.Context}
}
