package resolver

import (
	"path/filepath"
	"strings"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/workspace"
)

// Excerpt is a clipped window of destination file content.
type Excerpt struct {
	Text     string
	Language string
	// Start and End are the zero-based line bounds of the window.
	Start int
	End   int
}

// DestinationContent loads the preview window around a destination: the
// configured number of lines before and after, clipped to the file. The
// destination file is read fresh on every call.
func (r *Resolver) DestinationContent(loc index.Location, pv config.Preview) (Excerpt, error) {
	doc, err := workspace.LoadDocument(loc.File)
	if err != nil {
		return Excerpt{}, err
	}
	start := max(0, loc.Line-pv.LinesBefore)
	end := min(doc.LineCount()-1, loc.Line+pv.LinesAfter)
	if start > end {
		// Stale index entry pointing past the end of a shrunk file.
		return Excerpt{Language: languageHint(loc.File)}, nil
	}
	return Excerpt{
		Text:     strings.Join(doc.Lines[start:end+1], "\n"),
		Language: languageHint(loc.File),
		Start:    start,
		End:      end,
	}, nil
}

// InlineAnnotation runs the preview's editor pattern over an excerpt and
// returns the extracted text, or "" when the pattern is unset, misses, or
// yields only whitespace.
func InlineAnnotation(excerpt string, pv config.Preview) string {
	if pv.Editor == nil {
		return ""
	}
	m := pv.Editor.FindStringSubmatchIndex(excerpt)
	if m == nil {
		return ""
	}
	return index.ExtractKey(excerpt, m)
}

var languageHints = map[string]string{
	".md":   "markdown",
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".sh":   "bash",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".java": "java",
	".rb":   "ruby",
}

func languageHint(path string) string {
	return languageHints[strings.ToLower(filepath.Ext(path))]
}
