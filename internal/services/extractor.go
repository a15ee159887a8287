// Package services maps changed repository paths onto deployable service IDs.
package services

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"

	"svcpipe/internal/core"
)

const (
	DefaultRoot     = "services"
	DefaultTemplate = "_templates"
)

// DefaultSkipPatterns drop housekeeping files that never warrant a deploy.
var DefaultSkipPatterns = []string{".gitignore", "README*"}

// Options configure an Extractor.
type Options struct {
	Root         string   // services root, relative to the repository root
	TemplateDir  string   // reserved directory that is never a service
	SkipPatterns []string // path.Match globs checked against every path element
}

// Extractor resolves service IDs against a repository filesystem.
type Extractor struct {
	fsys   fs.FS
	opts   Options
	logger *zap.Logger
}

// NewExtractor creates an Extractor over fsys, which must be rooted at the
// repository root (e.g. os.DirFS(repo)).
func NewExtractor(fsys fs.FS, opts Options, logger *zap.Logger) *Extractor {
	if opts.Root == "" {
		opts.Root = DefaultRoot
	}
	opts.Root = strings.Trim(path.Clean(opts.Root), "/")
	if opts.TemplateDir == "" {
		opts.TemplateDir = DefaultTemplate
	}
	if opts.SkipPatterns == nil {
		opts.SkipPatterns = DefaultSkipPatterns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fsys: fsys, opts: opts, logger: logger}
}

// Root returns the services root this extractor resolves against.
func (e *Extractor) Root() string {
	return e.opts.Root
}

// Extract returns the sorted, duplicate-free services touched by changedPaths.
// Depth below the service directory does not matter: services/foo/a/b/c
// attributes to foo.
func (e *Extractor) Extract(changedPaths []string) []core.ServiceID {
	if !e.rootExists() {
		return nil
	}

	found := make([]core.ServiceID, 0, len(changedPaths))
	prefix := e.opts.Root + "/"
	for _, p := range changedPaths {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if e.skipped(p) {
			e.logger.Debug("Skipping housekeeping file", zap.String("path", p))
			continue
		}

		rest := strings.TrimPrefix(p, prefix)
		name, _, _ := strings.Cut(rest, "/")
		if e.isService(name) {
			found = append(found, core.ServiceID(name))
		} else {
			e.logger.Debug("Skipping non-service", zap.String("name", name), zap.String("path", p))
		}
	}
	return core.NormalizeServices(found)
}

// ListAll returns every service directory under the root, sorted.
func (e *Extractor) ListAll() []core.ServiceID {
	entries, err := fs.ReadDir(e.fsys, e.opts.Root)
	if err != nil {
		e.logger.Warn("Services directory not readable", zap.String("root", e.opts.Root), zap.Error(err))
		return nil
	}
	var out []core.ServiceID
	for _, entry := range entries {
		if e.isService(entry.Name()) {
			out = append(out, core.ServiceID(entry.Name()))
		}
	}
	return core.NormalizeServices(out)
}

func (e *Extractor) rootExists() bool {
	info, err := fs.Stat(e.fsys, e.opts.Root)
	if err == nil && info.IsDir() {
		return true
	}
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("Services directory not found", zap.String("root", e.opts.Root))
	} else {
		e.logger.Warn("Services directory not readable", zap.String("root", e.opts.Root), zap.Error(err))
	}
	return false
}

// isService reports whether name is an existing, non-reserved directory under the root.
// fs.Stat follows symlinks, so a linked service directory counts.
func (e *Extractor) isService(name string) bool {
	if name == "" || name == "." || name == ".." || name == e.opts.TemplateDir {
		return false
	}
	info, err := fs.Stat(e.fsys, path.Join(e.opts.Root, name))
	return err == nil && info.IsDir()
}

func (e *Extractor) skipped(p string) bool {
	for _, elem := range strings.Split(p, "/") {
		for _, pattern := range e.opts.SkipPatterns {
			if ok, _ := path.Match(pattern, elem); ok {
				return true
			}
		}
	}
	return false
}
