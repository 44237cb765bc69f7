package codegen

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, files map[string]string, opts ...Option) (*Engine, *MemFileSystem) {
	t.Helper()
	fsys := NewMemFileSystem()
	for name, content := range files {
		fsys.WriteFile(filepath.Join("src", name), content)
	}
	return NewEngine("src", "out", append([]Option{WithFileSystem(fsys)}, opts...)...), fsys
}

func vars(kv ...string) TemplateVars {
	return TemplateVars{Vars: VarsOf(kv...)}
}

func renderLines(t *testing.T, e *Engine, id string, tv TemplateVars) []string {
	t.Helper()
	res, err := e.Render(context.Background(), id, tv)
	require.NoError(t, err)
	require.Equal(t, OutcomeRendered, res.Outcome, "unexpected skip: %s", res.SkipReason)
	return res.Lines
}

func TestRenderLiterals(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "package $pkg$;   \n\nclass A {}\t",
	})
	res, err := e.Render(context.Background(), "a.java", vars("pkg", "com.example"))
	require.NoError(t, err)
	assert.Equal(t, []string{"package com.example;", "", "class A {}"}, res.Lines)
	assert.Equal(t, filepath.Join("out", "a.java"), res.Path)
	assert.Equal(t, "a.java", res.Template)
}

func TestRenderPathInterpolation(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"pkg/$Name$Impl.java": "class $Name$Impl {}",
	})
	res, err := e.Render(context.Background(), "pkg/$Name$Impl.java", vars("Name", "Foo"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "pkg", "FooImpl.java"), res.Path)
	assert.Equal(t, []string{"class FooImpl {}"}, res.Lines)
}

func TestRenderPathStaysInDestination(t *testing.T) {
	e, fsys := newTestEngine(t, map[string]string{
		"$Name$.txt": "x",
	})
	for _, name := range []string{"../escape", "a/../../escape", ".."} {
		_, err := e.RenderToDest(context.Background(), "$Name$.txt", vars("Name", name))
		assert.ErrorIs(t, err, ErrOutsideRoot, "Name=%q", name)
	}
	_, ok := fsys.ReadFile("escape.txt")
	assert.False(t, ok)

	res, err := e.Render(context.Background(), "$Name$.txt", vars("Name", "a/../b"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "b.txt"), res.Path)
}

func TestRenderIfElse(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"t.java": "/*= if $lang$ = java =*/\njava\n/*= else =*/\nother\n/*= end =*/\nend",
	})
	assert.Equal(t, []string{"java", "end"}, renderLines(t, e, "t.java", vars("lang", "java")))
	assert.Equal(t, []string{"other", "end"}, renderLines(t, e, "t.java", vars("lang", "go")))
	assert.Equal(t, []string{"other", "end"}, renderLines(t, e, "t.java", vars()))
}

func TestRenderSameLine(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"hello.txt": "Hello //=if $x$=// World //=end=//",
		"mid.txt":   "a /*= if $x$ =*/b/*= end =*/ c",
	})
	assert.Equal(t, []string{"Hello World"}, renderLines(t, e, "hello.txt", vars("x", "true")))
	assert.Equal(t, []string{"Hello"}, renderLines(t, e, "hello.txt", vars("x", "false")))
	assert.Equal(t, []string{"a b c"}, renderLines(t, e, "mid.txt", vars("x", "true")))
	assert.Equal(t, []string{"a c"}, renderLines(t, e, "mid.txt", vars("x", "false")))
}

func TestRenderPlaceholder(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "class A {\n    //= placeholder $body$\n}",
		"b.java": "/*= placeholder body =*/",
		"c.java": "A\n//= placeholder $body$\nB",
	})
	assert.Equal(t,
		[]string{"class A {", "int x;", "int y;", "}"},
		renderLines(t, e, "a.java", vars("body", "int x;\nint y;")))
	assert.Equal(t, []string{"B"}, renderLines(t, e, "b.java", vars("body", "B")))
	assert.Equal(t, []string{"A", "B"}, renderLines(t, e, "c.java", vars("body", "")), "an empty value adds no lines")

	_, err := e.Render(context.Background(), "a.java", vars())
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
}

func TestRenderImport(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"main.java":     "header\n//= import `lib/part.java`\nfooter",
		"lib/part.java": "part $v$ $w$",
	})
	tv := TemplateVars{
		Vars:    VarsOf("v", "base", "w", "W"),
		Context: map[string]Variables{"lib/part.java": VarsOf("v", "ctx")},
	}
	assert.Equal(t, []string{"header", "part ctx W", "footer"}, renderLines(t, e, "main.java", tv))

	// the imported section equals rendering the import on its own with merged vars
	standalone := renderLines(t, e, "lib/part.java", tv.ForImport("lib/part.java"))
	assert.Equal(t, []string{"part ctx W"}, standalone)
}

func TestRenderNestedImports(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.txt": "A\n//= import `b.txt`\nA2",
		"b.txt": "B $v$\n//= import `c.txt`",
		"c.txt": "C $v$ $w$",
	})
	tv := TemplateVars{
		Vars:    VarsOf("v", "0", "w", "W"),
		Context: map[string]Variables{
			"b.txt": VarsOf("v", "1"),
			"c.txt": VarsOf("w", "cw"),
		},
	}
	// c.txt sees the bindings of b.txt plus its own context entry
	assert.Equal(t, []string{"A", "B 1", "C 1 cw", "A2"}, renderLines(t, e, "a.txt", tv))
	assert.Equal(t, []string{"C 0 cw"}, renderLines(t, e, "c.txt", tv.ForImport("c.txt")))

	_, refs, err := e.Compile("b.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, refs)
}

func TestRenderImportNamedBlock(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"part.java":    "a\n/*= foo =*/\nin foo $v$\n/*= foo-end =*/\nb",
		"main.java":    "x\n//= import `part.java` block=foo\ny",
		"nope.java":    "//= import `part.java` block=nope",
		"missing.java": "//= import `gone.java`",
	})
	assert.Equal(t, []string{"x", "in foo V", "y"}, renderLines(t, e, "main.java", vars("v", "V")))

	_, err := e.Render(context.Background(), "nope.java", vars())
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = e.Render(context.Background(), "missing.java", vars())
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderImportEOTOnlyTruncatesImport(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"part.java": "p1\n/*= EOT =*/\np2",
		"main.java": "m1\n//= import `part.java`\nm2",
	})
	assert.Equal(t, []string{"m1", "p1", "m2"}, renderLines(t, e, "main.java", vars()))
}

func TestRenderRemove(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java":     "a\nb /*= remove =*/\nc",
		"b.java":     "//= remove\na",
		"twice.java": "//= remove =////= remove",
	})
	assert.Equal(t, []string{"a", "c"}, renderLines(t, e, "a.java", vars()))
	assert.Equal(t, []string{"a"}, renderLines(t, e, "b.java", vars()))

	_, err := e.Render(context.Background(), "twice.java", vars())
	assert.ErrorIs(t, err, ErrNothingToRemove)
}

func TestRenderAssume(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java":    "/*= assume $lang$ = java =*/\nclass A",
		"main.java": "//= import `p.java`\nX",
		"p.java":    "//= assume $ok$",
	})
	assert.Equal(t, []string{"class A"}, renderLines(t, e, "a.java", vars("lang", "java")))

	res, err := e.Render(context.Background(), "a.java", vars("lang", "go"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Path)
	assert.Contains(t, res.SkipReason, "$lang$ = java")

	res, err = e.Render(context.Background(), "main.java", vars())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome, "a failed assumption in an import skips the whole instance")
}

func TestRenderAssert(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "//= assert $v$ = 1\nX",
	})
	assert.Equal(t, []string{"X"}, renderLines(t, e, "a.java", vars("v", "1")))

	_, err := e.Render(context.Background(), "a.java", vars("v", "2"))
	assert.ErrorIs(t, err, ErrAssertionFailed)
}

func TestRenderWith(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"list.java":  "/*= with $T$=Foo =*/\nList<$T$> $name$;\n/*= end =*/",
		"scope.java": "/*= with $x$=inner =*/\n$x$\n/*= end =*/\n$x$",
		"cond.java":  "/*= with $x$=yes =*/\n/*= if $x$ = yes =*/\nin\n/*= end =*/\n/*= end =*/",
	})
	assert.Equal(t, []string{"List<Foo> items;"}, renderLines(t, e, "list.java", vars("name", "items")))
	assert.Equal(t, []string{"inner", "outer"}, renderLines(t, e, "scope.java", vars("x", "outer")))
	assert.Equal(t, []string{"in"}, renderLines(t, e, "cond.java", vars()))
}

func TestRenderComments(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "a\n//~ note\nb\n/*~ block note ~*/\nc",
	})
	assert.Equal(t, []string{"a", "b", "c"}, renderLines(t, e, "a.java", vars()))
}

func TestRenderEOT(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "a\n/*= EOT =*/\nb",
		"b.java": "/*= if $x$ =*/\na\n/*= EOT =*/\nb\n/*= end =*/\n/*= end =*/\nc",
	})
	assert.Equal(t, []string{"a"}, renderLines(t, e, "a.java", vars()))
	assert.Equal(t, []string{"a"}, renderLines(t, e, "b.java", vars("x", "true")))
	assert.Equal(t, []string{"c"}, renderLines(t, e, "b.java", vars("x", "false")))
}

func TestRenderCustomBlock(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "/*= section =*/\nS\n/*= section-end =*/\nT",
	})
	assert.Equal(t, []string{"S", "T"}, renderLines(t, e, "a.java", vars()))
}

func TestRenderText(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"lib.java": "L",
	})
	res, err := e.RenderText(context.Background(), "preview", "//= import `lib.java`\n$x$", vars("x", "X"))
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "X"}, res.Lines)
	assert.Equal(t, "L\nX\n", res.Text())

	_, err = e.RenderText(context.Background(), "preview", "/*= if $x$ =*/", vars())
	assert.ErrorIs(t, err, ErrUnterminatedDirective)
}

func TestRenderToString(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "/*= assume $on$ =*/\na\nb",
	})
	text, ok, err := e.RenderToString(context.Background(), "a.java", vars("on", "true"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a\nb\n", text)

	text, ok, err = e.RenderToString(context.Background(), "a.java", vars("on", "false"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
}

type mapTracker struct {
	mu      sync.Mutex
	hashes  map[string]string
	tracked []TrackedOutput
}

func newMapTracker() *mapTracker {
	return &mapTracker{hashes: make(map[string]string)}
}

func (m *mapTracker) Lookup(_ context.Context, path string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[path]
	return h, ok, nil
}

func (m *mapTracker) Track(_ context.Context, out TrackedOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[out.Path] = out.ContentHash
	m.tracked = append(m.tracked, out)
	return nil
}

func TestRenderToDest(t *testing.T) {
	tracker := newMapTracker()
	e, fsys := newTestEngine(t, map[string]string{
		"$Name$.java": "class $Name$",
	}, WithTracker(tracker))
	ctx := context.Background()
	dest := filepath.Join("out", "Foo.java")

	res, err := e.RenderToDest(ctx, "$Name$.java", vars("Name", "Foo"))
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	content, ok := fsys.ReadFile(dest)
	require.True(t, ok)
	assert.Equal(t, "class Foo\n", content)

	// identical content is left alone
	fsys.WriteFile(dest, "sentinel")
	res, err = e.RenderToDest(ctx, "$Name$.java", vars("Name", "Foo"))
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	content, _ = fsys.ReadFile(dest)
	assert.Equal(t, "sentinel", content)

	require.Len(t, tracker.tracked, 2)
	assert.Equal(t, "$Name$.java", tracker.tracked[1].Template)
	assert.True(t, tracker.tracked[1].Unchanged)
	assert.Equal(t, tracker.tracked[0].ContentHash, tracker.tracked[1].ContentHash)
}

func TestRenderToDestRewritesMissingOutput(t *testing.T) {
	tracker := newMapTracker()
	e, _ := newTestEngine(t, map[string]string{"a.txt": "A"}, WithTracker(tracker))
	ctx := context.Background()

	_, err := e.RenderToDest(ctx, "a.txt", vars())
	require.NoError(t, err)

	other := NewMemFileSystem()
	other.WriteFile(filepath.Join("src", "a.txt"), "A")
	e2 := NewEngine("src", "out", WithFileSystem(other), WithTracker(tracker))
	res, err := e2.RenderToDest(ctx, "a.txt", vars())
	require.NoError(t, err)
	assert.False(t, res.Unchanged, "a tracked output that no longer exists must be rewritten")
	_, ok := other.ReadFile(filepath.Join("out", "a.txt"))
	assert.True(t, ok)
}

func TestRenderSkipWritesNothing(t *testing.T) {
	e, fsys := newTestEngine(t, map[string]string{
		"a.java": "//= assume false\nA",
	})
	res, err := e.RenderToDest(context.Background(), "a.java", vars())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	_, ok := fsys.ReadFile(filepath.Join("out", "a.java"))
	assert.False(t, ok)
}

func TestRenderAll(t *testing.T) {
	e, fsys := newTestEngine(t, map[string]string{
		"$Name$.java": "/*= assume $Name$ != Skip =*/\nclass $Name$",
	})
	paths, err := e.RenderAll(context.Background(), "$Name$.java", []TemplateVars{
		vars("Name", "A"),
		vars("Name", "Skip"),
		vars("Name", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("out", "A.java"), filepath.Join("out", "B.java")}, paths)

	content, _ := fsys.ReadFile(filepath.Join("out", "B.java"))
	assert.Equal(t, "class B\n", content)
	_, ok := fsys.ReadFile(filepath.Join("out", "Skip.java"))
	assert.False(t, ok)
}

func TestRenderAllStopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"a.txt": "A"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RenderAll(ctx, "a.txt", []TemplateVars{vars()})
	assert.ErrorIs(t, err, context.Canceled)
}

type countingFS struct {
	*MemFileSystem
	reads atomic.Int32
}

func (c *countingFS) ReadLines(path string) ([]string, error) {
	c.reads.Add(1)
	return c.MemFileSystem.ReadLines(path)
}

func TestCompileCachesOnce(t *testing.T) {
	fsys := &countingFS{MemFileSystem: NewMemFileSystem()}
	fsys.WriteFile(filepath.Join("src", "a.java"), "A\n//= import `b.java`")
	fsys.WriteFile(filepath.Join("src", "b.java"), "B")
	e := NewEngine("src", "out", WithFileSystem(fsys))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Render(context.Background(), "a.java", vars())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(2), fsys.reads.Load())

	t1, refs, err := e.Compile("a.java")
	require.NoError(t, err)
	t2, _, err := e.Compile("./a.java")
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Equal(t, []string{"b.java"}, refs)
}

func TestCompileFailureIsNotCached(t *testing.T) {
	e, fsys := newTestEngine(t, map[string]string{
		"a.java": "/*= if $x$ =*/",
	})
	_, _, err := e.Compile("a.java")
	require.ErrorIs(t, err, ErrUnterminatedDirective)

	fsys.WriteFile(filepath.Join("src", "a.java"), "fixed")
	_, _, err = e.Compile("a.java")
	assert.NoError(t, err)
}

func TestCompileRejectsEscapingPaths(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, _, err := e.Compile("../etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestRefresh(t *testing.T) {
	e, fsys := newTestEngine(t, map[string]string{"a.txt": "old"})
	assert.Equal(t, []string{"old"}, renderLines(t, e, "a.txt", vars()))

	fsys.WriteFile(filepath.Join("src", "a.txt"), "new")
	assert.Equal(t, []string{"old"}, renderLines(t, e, "a.txt", vars()))

	e.Refresh()
	assert.Equal(t, []string{"new"}, renderLines(t, e, "a.txt", vars()))
}

// stallingFS reads the file, then holds the first ReadLines call until
// released.
type stallingFS struct {
	*MemFileSystem
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *stallingFS) ReadLines(path string) ([]string, error) {
	lines, err := s.MemFileSystem.ReadLines(path)
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return lines, err
}

func TestRefreshDuringCompile(t *testing.T) {
	fsys := &stallingFS{
		MemFileSystem: NewMemFileSystem(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	fsys.WriteFile(filepath.Join("src", "a.txt"), "old")
	e := NewEngine("src", "out", WithFileSystem(fsys))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := e.Compile("a.txt")
		assert.NoError(t, err)
	}()

	<-fsys.started
	fsys.WriteFile(filepath.Join("src", "a.txt"), "new")
	e.Refresh()
	close(fsys.release)
	<-done

	assert.Equal(t, []string{"new"}, renderLines(t, e, "a.txt", vars()))
}

func TestRenderConcurrent(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.java": "/*= if $n$ = 7 =*/\nseven\n/*= else =*/\nn=$n$\n/*= end =*/",
	})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := e.Render(context.Background(), "a.java", vars("n", fmt.Sprint(n)))
			if !assert.NoError(t, err) {
				return
			}
			want := fmt.Sprintf("n=%d", n)
			if n == 7 {
				want = "seven"
			}
			assert.Equal(t, []string{want}, res.Lines)
		}(i)
	}
	wg.Wait()
}
