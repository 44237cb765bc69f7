package codegen

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
)

// FileSystem is everything the engine needs from storage.
type FileSystem interface {
	ReadLines(path string) ([]string, error)
	// WriteLines replaces the file at path. Readers never observe a partially
	// written file.
	WriteLines(path string, lines []string) error
	// Walk calls fn for every regular file under root, in lexical order.
	Walk(root string, fn func(path string) error) error
	CreateDirs(path string) error
	Exists(path string) (bool, error)
}

// templateID converts a reference into the slash separated id of a template
// relative to the source root.
func templateID(ref string) (string, error) {
	p := strings.TrimLeft(path.Clean(filepath.ToSlash(ref)), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, ref)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, ref)
	}
	return p, nil
}

// OSFileSystem is the FileSystem backed by the local disk.
type OSFileSystem struct{}

const maxLineSize = 1024 * 1024

func (OSFileSystem) ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return lines, nil
}

func (OSFileSystem) WriteLines(path string, lines []string) error {
	return atomic.WriteFile(path, strings.NewReader(joinLines(lines)))
}

func (OSFileSystem) Walk(root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(p)
	})
}

func (OSFileSystem) CreateDirs(path string) error {
	return os.MkdirAll(path, 0755)
}

func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// MemFileSystem keeps files in memory. It backs tests and template previews.
type MemFileSystem struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{files: make(map[string]string)}
}

// WriteFile stores raw content at path.
func (m *MemFileSystem) WriteFile(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = content
}

// ReadFile returns the raw content stored at path.
func (m *MemFileSystem) ReadFile(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[filepath.Clean(path)]
	return content, ok
}

func (m *MemFileSystem) ReadLines(path string) ([]string, error) {
	content, ok := m.ReadFile(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if content == "" {
		return nil, nil
	}
	return splitLines(content), nil
}

func (m *MemFileSystem) WriteLines(path string, lines []string) error {
	m.WriteFile(path, joinLines(lines))
	return nil
}

func (m *MemFileSystem) Walk(root string, fn func(path string) error) error {
	root = filepath.Clean(root)
	m.mu.RLock()
	var paths []string
	for p := range m.files {
		if root == "." || strings.HasPrefix(p, root+string(filepath.Separator)) {
			paths = append(paths, p)
		}
	}
	m.mu.RUnlock()

	sort.Strings(paths)
	for _, p := range paths {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemFileSystem) CreateDirs(string) error { return nil }

func (m *MemFileSystem) Exists(path string) (bool, error) {
	_, ok := m.ReadFile(path)
	return ok, nil
}
