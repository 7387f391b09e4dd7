package plugin

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// BuildFunc turns a plugin binary into a Plugin. name is the file's base name.
type BuildFunc func(ctx context.Context, name string, wasm []byte) (Plugin, error)

// loaderConfig holds configuration for the RecursiveLoader.
type loaderConfig struct {
	extensions []string
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		extensions: []string{".wasm"},
	}
}

// LoaderOption configures the RecursiveLoader.
type LoaderOption func(*loaderConfig)

// WithExtensions replaces the file extensions recognised inside directories.
// Extensions are matched case-insensitively and include the leading dot.
func WithExtensions(exts ...string) LoaderOption {
	return func(c *loaderConfig) {
		c.extensions = make([]string, len(exts))
		for i, ext := range exts {
			c.extensions[i] = strings.ToLower(ext)
		}
	}
}

// RecursiveLoader discovers plugins under a list of roots. A root that is a
// file is loaded whatever its extension; a directory is walked recursively and
// only files with a recognised extension are loaded.
type RecursiveLoader struct {
	roots  []string
	build  BuildFunc
	config loaderConfig
}

// NewRecursiveLoader creates a loader over roots.
func NewRecursiveLoader(roots []string, build BuildFunc, opts ...LoaderOption) *RecursiveLoader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RecursiveLoader{
		roots:  slices.Clone(roots),
		build:  build,
		config: cfg,
	}
}

// All lazily yields one result per discovered plugin: roots in order, and the
// entries of each directory in lexical order, depth first. A failure for one
// path is yielded as a *LoadError and enumeration continues with the rest.
func (l *RecursiveLoader) All(ctx context.Context) iter.Seq2[Plugin, error] {
	return func(yield func(Plugin, error) bool) {
		work := slices.Clone(l.roots)
		slices.Reverse(work)

		for len(work) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			path := work[len(work)-1]
			work = work[:len(work)-1]

			info, err := os.Stat(path)
			if err != nil {
				if !yield(nil, &LoadError{Path: path, Err: err}) {
					return
				}
				continue
			}

			if info.IsDir() {
				children, err := l.children(path)
				if err != nil {
					if !yield(nil, &LoadError{Path: path, Err: err}) {
						return
					}
					continue
				}
				// Pushed in reverse so the lexically first child pops first.
				for i := len(children) - 1; i >= 0; i-- {
					work = append(work, children[i])
				}
				continue
			}

			p, err := l.load(ctx, path)
			if !yield(p, err) {
				return
			}
		}
	}
}

// children lists the subdirectories and recognised files of dir, sorted.
func (l *RecursiveLoader) children(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if l.keep(path, entry) {
			out = append(out, path)
		}
	}
	return out, nil
}

func (l *RecursiveLoader) keep(path string, entry fs.DirEntry) bool {
	if entry.IsDir() || l.recognised(entry.Name()) {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	// A link to a directory is followed. A dangling link is kept so that the
	// failure is reported rather than silently skipped.
	info, err := os.Stat(path)
	return err != nil || info.IsDir()
}

func (l *RecursiveLoader) recognised(name string) bool {
	return slices.Contains(l.config.extensions, strings.ToLower(filepath.Ext(name)))
}

func (l *RecursiveLoader) load(ctx context.Context, path string) (Plugin, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	p, err := l.build(ctx, filepath.Base(path), wasm)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return p, nil
}

// LoadAll drains a loader sequence, logging each per-item error and keeping
// every plugin that loaded.
func LoadAll(ctx context.Context, seq iter.Seq2[Plugin, error], logger *slog.Logger) []Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	var plugins []Plugin
	for p, err := range seq {
		if err != nil {
			logger.ErrorContext(ctx, "rush: failed to load plugin", "error", err)
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins
}
