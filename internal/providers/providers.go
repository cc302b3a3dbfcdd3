// Package providers turns resolved links into the shapes editor hosts
// consume: clickable document links, hover previews, definition targets,
// and decoration sets. Every provider recomputes from the live document and
// index; nothing here is cached.
package providers

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"linkdex/internal/index"
	"linkdex/internal/logging"
	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

// DocumentLink is a clickable link with a navigation target.
type DocumentLink struct {
	Range   resolver.Range `json:"range"`
	Target  string         `json:"target"`
	Tooltip string         `json:"tooltip"`
}

// InlineAnnotation is text rendered after a resolved link, extracted from
// the destination preview.
type InlineAnnotation struct {
	Range resolver.Range `json:"range"`
	Text  string         `json:"text"`
}

// Decorations are the three disjoint highlight sets for one document.
type Decorations struct {
	Resolved []resolver.Range   `json:"resolved"`
	Broken   []resolver.Range   `json:"broken"`
	Inline   []InlineAnnotation `json:"inline"`
}

// Hover is a markdown popup anchored to the link range.
type Hover struct {
	Markdown string         `json:"markdown"`
	Range    resolver.Range `json:"range"`
}

// FileLinks groups the links found in a single file.
type FileLinks struct {
	Path  string
	Links []resolver.Link
}

// Providers answers editor queries against the resolver.
type Providers struct {
	ws  *workspace.Workspace
	res *resolver.Resolver
	log zerolog.Logger
}

// New wires the provider surface over a workspace and resolver.
func New(ws *workspace.Workspace, res *resolver.Resolver) *Providers {
	return &Providers{ws: ws, res: res, log: logging.GetLogger("providers")}
}

// DocumentLinks returns a clickable link for every resolved match in the
// document. Broken matches are left to the decoration set.
func (p *Providers) DocumentLinks(doc *workspace.Document) []DocumentLink {
	var links []DocumentLink
	for _, link := range p.res.ResolveAll(doc) {
		if link.Broken() {
			continue
		}
		dest := *link.Destination
		links = append(links, DocumentLink{
			Range:   link.Source.Range,
			Target:  fileURI(dest.File),
			Tooltip: fmt.Sprintf("Follow link to %s:%d", p.ws.DisplayPath(dest.File), dest.Line+1),
		})
	}
	return links
}

// Definition returns every indexed destination for the link under pos.
// Positions not on a link, and broken links, yield nothing.
func (p *Providers) Definition(doc *workspace.Document, pos resolver.Position) []index.Location {
	link := p.res.LinkAt(doc, pos)
	if link == nil || link.Broken() {
		return nil
	}
	return p.res.Destinations(link.Source.Key)
}

// Hover returns the preview popup for the link under pos. Resolved links
// with hover disabled in their preview config return nil; broken links
// always get a notice.
func (p *Providers) Hover(doc *workspace.Document, pos resolver.Position) *Hover {
	link := p.res.LinkAt(doc, pos)
	if link == nil {
		return nil
	}
	return p.LinkHover(*link)
}

// LinkHover builds the hover popup for an already-resolved link.
func (p *Providers) LinkHover(link resolver.Link) *Hover {
	if link.Broken() {
		return &Hover{
			Markdown: fmt.Sprintf("**Broken Link**\n\nNo destination matches `%s`.", link.Source.Key),
			Range:    link.Source.Range,
		}
	}
	if !link.Preview.Hover {
		return nil
	}
	dest := *link.Destination
	excerpt, err := p.res.DestinationContent(dest, link.Preview)
	if err != nil {
		p.log.Warn().Str("file", dest.File).Err(err).Msg("cannot load destination preview")
		return nil
	}
	markdown := fmt.Sprintf("**%s:%d**\n\n```%s\n%s\n```",
		p.ws.DisplayPath(dest.File), dest.Line+1, excerpt.Language, excerpt.Text)
	return &Hover{Markdown: markdown, Range: link.Source.Range}
}

// Decorations classifies every match in the document into resolved and
// broken ranges, plus inline annotations where a destination preview
// configures an editor pattern.
func (p *Providers) Decorations(doc *workspace.Document) Decorations {
	var deco Decorations
	for _, link := range p.res.ResolveAll(doc) {
		if link.Broken() {
			deco.Broken = append(deco.Broken, link.Source.Range)
			continue
		}
		deco.Resolved = append(deco.Resolved, link.Source.Range)
		if link.Preview.Editor == nil {
			continue
		}
		excerpt, err := p.res.DestinationContent(*link.Destination, link.Preview)
		if err != nil {
			p.log.Warn().Str("file", link.Destination.File).Err(err).Msg("cannot load destination for annotation")
			continue
		}
		if text := resolver.InlineAnnotation(excerpt.Text, link.Preview); text != "" {
			deco.Inline = append(deco.Inline, InlineAnnotation{Range: link.Source.Range, Text: text})
		}
	}
	return deco
}

// WorkspaceLinks resolves every source file of every rule. Files that match
// several source globs are resolved once. Unreadable files are skipped.
func (p *Providers) WorkspaceLinks() []FileLinks {
	seen := make(map[string]struct{})
	var files []string
	for _, rule := range p.res.Rules() {
		for _, sd := range rule.From {
			for _, file := range p.ws.GlobFiles(sd.Includes) {
				if _, ok := seen[file]; ok {
					continue
				}
				seen[file] = struct{}{}
				files = append(files, file)
			}
		}
	}
	sort.Strings(files)

	var out []FileLinks
	for _, file := range files {
		doc, err := workspace.LoadDocument(file)
		if err != nil {
			p.log.Warn().Str("file", file).Err(err).Msg("cannot read source file")
			continue
		}
		if links := p.res.ResolveAll(doc); len(links) > 0 {
			out = append(out, FileLinks{Path: file, Links: links})
		}
	}
	return out
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
