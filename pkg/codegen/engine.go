package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Outcome tells whether a render produced output.
type Outcome int

const (
	OutcomeRendered Outcome = iota
	OutcomeSkipped
)

func (o Outcome) String() string {
	if o == OutcomeSkipped {
		return "skipped"
	}
	return "rendered"
}

// Result is the output of rendering one template against one variable set.
type Result struct {
	Template   string
	Outcome    Outcome
	Lines      []string
	Path       string // destination file; empty when skipped
	SkipReason string
	Unchanged  bool // the destination already held this content
}

func (r Result) Text() string {
	return joinLines(r.Lines)
}

// TrackedOutput describes a file written by the engine.
type TrackedOutput struct {
	Path        string
	Template    string
	ContentHash string
	VarsHash    string
	Unchanged   bool
}

// Tracker remembers what previous runs wrote. It lets the engine leave
// identical outputs alone.
type Tracker interface {
	Lookup(ctx context.Context, path string) (contentHash string, found bool, err error)
	Track(ctx context.Context, out TrackedOutput) error
}

// Engine compiles templates below a source root on demand, caches them, and
// renders them into a destination root. All methods are safe for concurrent
// use.
type Engine struct {
	sourceRoot string
	destRoot   string
	fs         FileSystem
	marking    Marking
	compiler   *Compiler
	config     Config
	tracker    Tracker
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.RWMutex
	cache      map[string]*CompiledTemplate
	generation uint64 // bumped by Refresh; compiles from older generations are discarded
	group      singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithFileSystem(fsys FileSystem) Option {
	return func(e *Engine) { e.fs = fsys }
}

func WithMarking(m Marking) Option {
	return func(e *Engine) { e.marking = m }
}

func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

// WithTracker enables skipping of unchanged outputs and records every write.
func WithTracker(t Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithClock overrides the time source used for the `$now$` default.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(sourceRoot, destRoot string, opts ...Option) *Engine {
	e := &Engine{
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
		fs:         OSFileSystem{},
		config:     DefaultConfig(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		cache:      make(map[string]*CompiledTemplate),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.marking == nil {
		e.marking = NewJavaMarking(e.logger)
	}
	e.compiler = NewCompiler(e.marking)
	return e
}

func (e *Engine) SourceRoot() string { return e.sourceRoot }
func (e *Engine) DestRoot() string   { return e.destRoot }

// Refresh forgets every compiled template, so edits on disk are picked up by
// the next render.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*CompiledTemplate)
	e.generation++
	e.logger.Info("Template cache cleared")
}

func (e *Engine) cached(id string) (*CompiledTemplate, uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.cache[id]
	return t, e.generation, ok
}

// Compile returns the compiled template for id and the ids it imports. A
// template is compiled at most once per cache lifetime even under concurrent
// calls; failures are not cached.
func (e *Engine) Compile(id string) (*CompiledTemplate, []string, error) {
	id, err := templateID(id)
	if err != nil {
		return nil, nil, err
	}
	t, gen, ok := e.cached(id)
	if ok {
		return t, t.References(), nil
	}

	key := strconv.FormatUint(gen, 10) + ":" + id
	v, err, _ := e.group.Do(key, func() (any, error) {
		if t, _, ok := e.cached(id); ok {
			return t, nil
		}
		lines, err := e.fs.ReadLines(filepath.Join(e.sourceRoot, filepath.FromSlash(id)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
			}
			return nil, fmt.Errorf("could not read template %s: %w", id, err)
		}
		t, err := e.compiler.Compile(id, lines)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		if e.generation == gen {
			e.cache[id] = t
		}
		e.mu.Unlock()

		e.logger.Debug("Template compiled",
			slog.String("template", id),
			slog.Int("lines", len(lines)),
			slog.Int("blocks", len(t.Blocks)),
		)
		return t, nil
	})
	if err != nil {
		return nil, nil, err
	}
	t = v.(*CompiledTemplate)
	return t, t.References(), nil
}

// CompileAll compiles ids and everything they transitively import.
func (e *Engine) CompileAll(ids ...string) (map[string]*CompiledTemplate, error) {
	set := make(map[string]*CompiledTemplate)
	queue := append([]string(nil), ids...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := set[id]; ok {
			continue
		}
		t, refs, err := e.Compile(id)
		if err != nil {
			return nil, err
		}
		set[t.ID] = t
		for _, ref := range refs {
			if _, ok := set[ref]; !ok {
				queue = append(queue, ref)
			}
		}
	}
	return set, nil
}

// Render renders template id against vars without touching the destination.
func (e *Engine) Render(ctx context.Context, id string, vars TemplateVars) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	set, err := e.CompileAll(id)
	if err != nil {
		return Result{}, err
	}
	id, _ = templateID(id)
	return e.render(ctx, set[id], set, vars)
}

// RenderText compiles text as a throwaway template called name and renders
// it. Imports resolve against the engine's source root as usual.
func (e *Engine) RenderText(ctx context.Context, name, text string, vars TemplateVars) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t, err := e.compiler.Compile(name, splitLines(text))
	if err != nil {
		return Result{}, err
	}
	set, err := e.CompileAll(t.References()...)
	if err != nil {
		return Result{}, err
	}
	return e.render(ctx, t, set, vars)
}

// RenderToString renders id and returns the output text. ok is false when an
// assumption skipped the template.
func (e *Engine) RenderToString(ctx context.Context, id string, vars TemplateVars) (text string, ok bool, err error) {
	res, err := e.Render(ctx, id, vars)
	if err != nil || res.Outcome == OutcomeSkipped {
		return "", false, err
	}
	return res.Text(), true, nil
}

func (e *Engine) render(ctx context.Context, t *CompiledTemplate, set map[string]*CompiledTemplate, vars TemplateVars) (Result, error) {
	r := &renderer{templates: set}
	st := &renderState{id: t.ID, vars: vars, buf: &LinesBuilder{}}
	status, err := r.renderBlocks(st, t.Blocks)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", t.ID, err)
	}
	if status == statusSkipped {
		e.logger.DebugContext(ctx, "Template skipped",
			slog.String("template", t.ID),
			slog.String("reason", r.skipReason),
		)
		return Result{Template: t.ID, Outcome: OutcomeSkipped, SkipReason: r.skipReason}, nil
	}
	dest, err := e.destPath(t.ID, vars.Vars)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Template: t.ID,
		Outcome:  OutcomeRendered,
		Lines:    finalizeLines(st.buf.Lines(), vars.Vars),
		Path:     dest,
	}, nil
}

// destPath interpolates the template id into a path below the destination
// root.
func (e *Engine) destPath(id string, vars Variables) (string, error) {
	name := vars.Interpolate(id)
	rel, err := templateID(name)
	if err != nil {
		return "", fmt.Errorf("%w: output path %q of %s", ErrOutsideRoot, name, id)
	}
	return filepath.Join(e.destRoot, filepath.FromSlash(rel)), nil
}

// RenderToDest renders id and writes the result to its destination path.
// Skipped renders write nothing.
func (e *Engine) RenderToDest(ctx context.Context, id string, vars TemplateVars) (Result, error) {
	res, err := e.Render(ctx, id, vars)
	if err != nil || res.Outcome == OutcomeSkipped {
		return res, err
	}

	out := TrackedOutput{
		Path:        res.Path,
		Template:    res.Template,
		ContentHash: contentHash(res.Lines),
		VarsHash:    vars.Vars.Fingerprint(),
	}

	if e.tracker != nil && e.config.SkipUnchanged {
		prev, found, err := e.tracker.Lookup(ctx, res.Path)
		if err != nil {
			return res, fmt.Errorf("could not look up %s: %w", res.Path, err)
		}
		if found && prev == out.ContentHash {
			exists, err := e.fs.Exists(res.Path)
			if err != nil {
				return res, err
			}
			res.Unchanged = exists
		}
	}

	if !res.Unchanged {
		if err = e.fs.CreateDirs(filepath.Dir(res.Path)); err != nil {
			return res, fmt.Errorf("could not create directories for %s: %w", res.Path, err)
		}
		if err = e.fs.WriteLines(res.Path, res.Lines); err != nil {
			return res, fmt.Errorf("could not write %s: %w", res.Path, err)
		}
	}

	if e.tracker != nil {
		out.Unchanged = res.Unchanged
		if err = e.tracker.Track(ctx, out); err != nil {
			return res, fmt.Errorf("could not record %s: %w", res.Path, err)
		}
	}

	e.logger.DebugContext(ctx, "Template rendered",
		slog.String("template", res.Template),
		slog.String("path", res.Path),
		slog.Bool("unchanged", res.Unchanged),
	)
	return res, nil
}

// RenderAll renders id once per variable set, in order, and returns the paths
// written. Skipped sets contribute no path.
func (e *Engine) RenderAll(ctx context.Context, id string, varsList []TemplateVars) ([]string, error) {
	results, err := e.renderAll(ctx, id, varsList)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, res := range results {
		if res.Outcome == OutcomeRendered {
			paths = append(paths, res.Path)
		}
	}
	return paths, nil
}

func (e *Engine) renderAll(ctx context.Context, id string, varsList []TemplateVars) ([]Result, error) {
	results := make([]Result, 0, len(varsList))
	for _, vars := range varsList {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.RenderToDest(ctx, id, vars)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func contentHash(lines []string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(lines, "\n")))
}
