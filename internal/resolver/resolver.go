// Package resolver re-applies source patterns to documents and classifies
// every match against the destination index. Matching is always done fresh
// from the document text; only destinations are served from the index.
package resolver

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/logging"
	"linkdex/internal/workspace"
)

// Position is a zero-based line and byte column in a document.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Range is a span within a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether p falls inside the range. The end position is
// inclusive, so a cursor sitting just past the last character of a link
// still counts as on the link.
func (r Range) Contains(p Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Col < r.Start.Col {
		return false
	}
	if p.Line == r.End.Line && p.Col > r.End.Col {
		return false
	}
	return true
}

// Match is one source-pattern hit in a document.
type Match struct {
	Range Range
	Text  string
	Key   string
}

// Link is a source match classified against the index. Destination is nil
// when no destination exists for the key.
type Link struct {
	Source      Match
	Rule        string
	Destination *index.Location
	Preview     config.Preview
}

// Broken reports whether the link has no destination.
func (l Link) Broken() bool {
	return l.Destination == nil
}

// Resolver holds the current rule set and the index to classify against.
// The rule set is swapped wholesale on config reload and is read-only
// during a resolution pass.
type Resolver struct {
	ws  *workspace.Workspace
	idx *index.Index

	mu    sync.RWMutex
	rules []config.Rule

	log zerolog.Logger
}

// New builds a resolver over the workspace and index. Rules start empty;
// call SetRules before resolving.
func New(ws *workspace.Workspace, idx *index.Index) *Resolver {
	return &Resolver{ws: ws, idx: idx, log: logging.GetLogger("resolver")}
}

// SetRules replaces the rule set.
func (r *Resolver) SetRules(rules []config.Rule) {
	r.mu.Lock()
	r.rules = rules
	r.mu.Unlock()
}

// Rules returns the current rule set.
func (r *Resolver) Rules() []config.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules
}

// MatchesOnLine applies one source pattern to a single line, returning all
// non-overlapping matches in order.
func MatchesOnLine(doc *workspace.Document, sd config.SourceDescriptor, line int) []Match {
	text, ok := doc.Line(line)
	if !ok {
		return nil
	}
	var matches []Match
	for _, m := range sd.Pattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, Match{
			Range: Range{Start: Position{line, m[0]}, End: Position{line, m[1]}},
			Text:  text[m[0]:m[1]],
			Key:   index.ExtractKey(text, m),
		})
	}
	return matches
}

// MatchesInDocument applies one source pattern to the whole document at
// once, so patterns may span lines. Offsets are mapped back to line and
// column positions.
func MatchesInDocument(doc *workspace.Document, sd config.SourceDescriptor) []Match {
	text := strings.Join(doc.Lines, "\n")
	starts := lineStarts(doc.Lines)
	var matches []Match
	for _, m := range sd.Pattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, Match{
			Range: Range{Start: toPosition(starts, m[0]), End: toPosition(starts, m[1])},
			Text:  text[m[0]:m[1]],
			Key:   index.ExtractKey(text, m),
		})
	}
	return matches
}

func lineStarts(lines []string) []int {
	starts := make([]int, len(lines))
	off := 0
	for i, line := range lines {
		starts[i] = off
		off += len(line) + 1
	}
	return starts
}

func toPosition(starts []int, off int) Position {
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	return Position{Line: line, Col: off - starts[line]}
}

// LinkAt returns the link under pos, or nil when the position is not on any
// match. Rules are tried in order and the first hit wins, so overlapping
// rules resolve to the earliest configured one.
func (r *Resolver) LinkAt(doc *workspace.Document, pos Position) *Link {
	for _, rule := range r.Rules() {
		for _, sd := range rule.From {
			if !r.ws.MatchGlob(doc.Path, sd.Includes) {
				continue
			}
			for _, m := range MatchesOnLine(doc, sd, pos.Line) {
				if m.Range.Contains(pos) {
					link := r.classify(rule, m)
					return &link
				}
			}
		}
	}
	return nil
}

// ResolveAll returns every link in the document across all rules, in rule
// order then document order. Overlapping matches from different rules each
// produce their own link.
func (r *Resolver) ResolveAll(doc *workspace.Document) []Link {
	var links []Link
	for _, rule := range r.Rules() {
		for _, sd := range rule.From {
			if !r.ws.MatchGlob(doc.Path, sd.Includes) {
				continue
			}
			for _, m := range MatchesInDocument(doc, sd) {
				links = append(links, r.classify(rule, m))
			}
		}
	}
	return links
}

// Destinations returns every indexed location for key, for definition
// queries where all targets are surfaced rather than just the first.
func (r *Resolver) Destinations(key string) []index.Location {
	return r.idx.Destinations(key)
}

// classify looks the match key up in the index. The first destination in
// index order becomes the target; the preview config comes from the same
// rule's destination descriptor whose glob matches the target file.
func (r *Resolver) classify(rule config.Rule, m Match) Link {
	link := Link{Source: m, Rule: rule.Name}
	dests := r.idx.Destinations(m.Key)
	if len(dests) == 0 {
		return link
	}
	link.Destination = &dests[0]
	link.Preview = r.previewFor(rule, dests[0].File)
	return link
}

func (r *Resolver) previewFor(rule config.Rule, destFile string) config.Preview {
	for _, dd := range rule.To {
		if r.ws.MatchGlob(destFile, dd.Includes) {
			return dd.Preview
		}
	}
	return config.DefaultPreview()
}
