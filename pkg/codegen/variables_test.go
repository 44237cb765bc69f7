package codegen

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewVariables(t *testing.T) {
	v, err := NewVariables(map[string]string{"$a$": "1"})
	if err != nil {
		t.Fatalf("NewVariables() error = %v", err)
	}
	if got, _ := v.Get("$a$"); got != "1" {
		t.Errorf("Get($a$) = %q, want 1", got)
	}

	for _, key := range []string{"a", "$a", "a$", "$$", ""} {
		if _, err := NewVariables(map[string]string{key: "x"}); !errors.Is(err, ErrInvalidVariable) {
			t.Errorf("NewVariables(%q) error = %v, want ErrInvalidVariable", key, err)
		}
	}
}

func TestFixUpVariables(t *testing.T) {
	v := FixUpVariables(map[string]any{"a": 1, "$b$": nil, "c": true, "d": "text"})
	want := map[string]string{"$a$": "1", "$b$": "", "$c$": "true", "$d$": "text"}
	if got := v.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}
	if got := v.Keys(); !reflect.DeepEqual(got, []string{"$a$", "$b$", "$c$", "$d$"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestVariablesInterpolate(t *testing.T) {
	tests := []struct {
		vars Variables
		in   string
		want string
	}{
		{Variables{}, "no $vars$ here", "no $vars$ here"},
		{VarsOf("a", "X"), "no dollar", "no dollar"},
		{VarsOf("a", "X"), "$a$ and $a$", "X and X"},
		{VarsOf("a", "X", "ab", "Y"), "$a$$ab$", "XY"},
		{VarsOf("Name", "Foo"), "class $Name$ extends Base$Name$ {}", "class Foo extends BaseFoo {}"},
		// a value that mentions another key is not expanded again
		{VarsOf("a", "$b$", "b", "B"), "$a$ $b$", "$b$ B"},
		{VarsOf("b", "B", "a", "$b$"), "$a$ $b$", "$b$ B"},
		{VarsOf("a", "X"), "$unbound$", "$unbound$"},
	}
	for _, tt := range tests {
		if got := tt.vars.Interpolate(tt.in); got != tt.want {
			t.Errorf("%v.Interpolate(%q) = %q, want %q", tt.vars, tt.in, got, tt.want)
		}
	}
}

func TestVariablesMerge(t *testing.T) {
	base := VarsOf("a", "1", "b", "2")
	over := VarsOf("b", "3", "c", "4")
	merged := base.Merge(over)

	want := map[string]string{"$a$": "1", "$b$": "3", "$c$": "4"}
	if got := merged.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %v, want %v", got, want)
	}
	if got, _ := base.Get("$b$"); got != "2" {
		t.Errorf("Merge mutated its receiver: $b$ = %q", got)
	}
	if merged.Interpolate("$b$") != "3" {
		t.Errorf("merged interpolation used stale bindings")
	}
}

func TestVariablesResolve(t *testing.T) {
	v := VarsOf("x", "1")
	if got := v.Resolve("$x$"); got != "1" {
		t.Errorf("Resolve($x$) = %q", got)
	}
	if got := v.Resolve("java"); got != "java" {
		t.Errorf("Resolve(java) = %q, want the name itself", got)
	}
}

func TestVariablesFingerprint(t *testing.T) {
	a := VarsOf("x", "1", "y", "2")
	b := VarsOf("y", "2", "x", "1")
	c := VarsOf("x", "1", "y", "3")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint depends on construction order")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different bindings produced the same fingerprint")
	}
	if got := a.String(); got != "{$x$=1, $y$=2}" {
		t.Errorf("String() = %q", got)
	}
}

func TestTemplateVarsForImport(t *testing.T) {
	tv := TemplateVars{
		Vars:    VarsOf("a", "base", "b", "keep"),
		Context: map[string]Variables{"lib/x.java": VarsOf("a", "ctx")},
	}
	got := tv.ForImport("lib/x.java").Vars.Map()
	want := map[string]string{"$a$": "ctx", "$b$": "keep"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForImport() = %v, want %v", got, want)
	}
	if tv.ForImport("other.java").Vars.Map()["$a$"] != "base" {
		t.Error("ForImport without context should keep base vars")
	}
}
