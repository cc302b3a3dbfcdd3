// Package workspace resolves editor-style globs against one or more root
// directories and loads files as line-indexed documents.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"linkdex/internal/logging"
)

// Workspace is a fixed set of root directories. Globs are evaluated per
// root; a path outside every root never matches anything.
type Workspace struct {
	roots   []string
	ignores [][]string
	log     zerolog.Logger
}

// New builds a workspace over the given roots. Roots are made absolute;
// relative patterns in the config always resolve against them. Each root's
// ignore file is loaded once here.
func New(roots []string) *Workspace {
	w := &Workspace{log: logging.GetLogger("workspace")}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.log.Warn().Str("root", root).Err(err).Msg("cannot resolve root, skipping")
			continue
		}
		w.roots = append(w.roots, abs)
		w.ignores = append(w.ignores, loadIgnorePatterns(abs))
	}
	return w
}

// Roots returns the absolute workspace roots.
func (w *Workspace) Roots() []string {
	return w.roots
}

// GlobFiles returns the absolute paths of all regular files under any root
// matching the doublestar pattern. Files inside ignored directories are
// excluded, like an editor's default search excludes. Results are sorted
// and deduplicated. Invalid patterns and unreadable roots contribute no
// files.
func (w *Workspace) GlobFiles(pattern string) []string {
	if !doublestar.ValidatePattern(pattern) {
		w.log.Warn().Str("pattern", pattern).Msg("invalid glob pattern")
		return nil
	}
	seen := make(map[string]struct{})
	var files []string
	for i, root := range w.roots {
		matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
		if err != nil {
			w.log.Warn().Str("root", root).Str("pattern", pattern).Err(err).Msg("glob failed")
			continue
		}
		for _, rel := range matches {
			if pathIgnored(rel, w.ignores[i]) {
				continue
			}
			abs := filepath.Join(root, filepath.FromSlash(rel))
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			files = append(files, abs)
		}
	}
	sort.Strings(files)
	return files
}

// MatchGlob reports whether path, relative to some workspace root, matches
// the doublestar pattern.
func (w *Workspace) MatchGlob(path, pattern string) bool {
	rel, ok := w.Rel(path)
	if !ok {
		return false
	}
	matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
	if err != nil {
		return false
	}
	return matched
}

// Rel returns path relative to the first root containing it.
func (w *Workspace) Rel(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return rel, true
	}
	return "", false
}

// DisplayPath returns the root-relative path when the file is inside the
// workspace, otherwise the path unchanged.
func (w *Workspace) DisplayPath(path string) string {
	if rel, ok := w.Rel(path); ok {
		return filepath.ToSlash(rel)
	}
	return path
}
