package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile lists directories excluded from scans and watches, one pattern
// per line, resolved per root.
const IgnoreFile = ".linkdexignore"

// defaultIgnores apply when a root has no ignore file. They mirror the
// directories editors exclude from search by default.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".idea",
	".vscode",
	"dist",
	"build",
}

// loadIgnorePatterns reads the root's ignore file. A missing or empty file
// yields the defaults.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

// matchesIgnore checks a directory name or root-relative path against the
// ignore patterns. Exact names, path prefixes, and globs all count.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if strings.HasPrefix(relPath, p) {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}

// pathIgnored reports whether any directory on the relative path is ignored.
// Only directories are checked; a file's own name never matches.
func pathIgnored(rel string, patterns []string) bool {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i := 0; i < len(segments)-1; i++ {
		if matchesIgnore(segments[i], strings.Join(segments[:i+1], "/"), patterns) {
			return true
		}
	}
	return false
}

// SkipDir reports whether the absolute directory path should be excluded
// from watches and scans. Directories outside every root are skipped too.
func (w *Workspace) SkipDir(path string) bool {
	for i, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			return false
		}
		patterns := w.ignores[i]
		segments := strings.Split(filepath.ToSlash(rel), "/")
		for j, seg := range segments {
			if matchesIgnore(seg, strings.Join(segments[:j+1], "/"), patterns) {
				return true
			}
		}
		return false
	}
	return true
}
