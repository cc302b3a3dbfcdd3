package workspace

import (
	"fmt"
	"os"
	"strings"
)

// Document is a file split into lines. Line numbers are zero-based and
// columns are byte offsets within a line.
type Document struct {
	Path  string
	Lines []string
}

// LoadDocument reads the file at path into a Document.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewDocument(path, string(data)), nil
}

// NewDocument builds a Document from in-memory text.
func NewDocument(path, text string) *Document {
	return &Document{Path: path, Lines: SplitLines(text)}
}

// SplitLines splits text on \r\n, \r, or \n. The result always has at least
// one element; a trailing newline yields a final empty line, mirroring how
// editors count lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Line returns the line at index i, or false when out of range.
func (d *Document) Line(i int) (string, bool) {
	if i < 0 || i >= len(d.Lines) {
		return "", false
	}
	return d.Lines[i], true
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	return len(d.Lines)
}
