// Package config loads and validates link rules. Raw rules from the config
// file are normalized once into compiled form; descriptors that fail
// validation are dropped here so the rest of the engine never sees a nil
// pattern or an empty glob.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"linkdex/internal/logging"
)

// DefaultDebounce is applied when the config does not set debounce_ms.
const DefaultDebounce = 500 * time.Millisecond

// Preview controls how destination context is shown for a resolved link.
type Preview struct {
	LinesBefore int
	LinesAfter  int
	Hover       bool
	// Editor extracts an inline annotation from the preview excerpt. Nil
	// means no inline annotation. Compiled in multiline mode so ^ and $
	// anchor per line of the excerpt.
	Editor *regexp.Regexp
}

// DefaultPreview returns the preview settings used when a destination
// descriptor does not configure its own.
func DefaultPreview() Preview {
	return Preview{LinesBefore: 2, LinesAfter: 2, Hover: true}
}

// SourceDescriptor selects files by glob and matches link references in them.
type SourceDescriptor struct {
	Includes string
	Pattern  *regexp.Regexp
}

// DestinationDescriptor selects files by glob and matches link targets in
// them. Its regex is applied at most once per line during indexing.
type DestinationDescriptor struct {
	Includes string
	Pattern  *regexp.Regexp
	Preview  Preview
}

// Rule pairs source descriptors with the destinations their keys resolve to.
type Rule struct {
	Name string
	From []SourceDescriptor
	To   []DestinationDescriptor
}

// Config is the validated engine configuration.
type Config struct {
	Roots    []string
	Rules    []Rule
	Debounce time.Duration
}

// DestinationGlobs returns the deduplicated include globs of every
// destination descriptor. The watch controller uses these to decide whether
// a saved file warrants a rebuild.
func (c *Config) DestinationGlobs() []string {
	seen := make(map[string]struct{})
	var globs []string
	for _, rule := range c.Rules {
		for _, dest := range rule.To {
			if _, ok := seen[dest.Includes]; ok {
				continue
			}
			seen[dest.Includes] = struct{}{}
			globs = append(globs, dest.Includes)
		}
	}
	return globs
}

// Raw config shapes as they appear in the file. Normalization turns these
// into the compiled types above.

type fileConfig struct {
	Roots      []string     `koanf:"roots"`
	DebounceMs int          `koanf:"debounce_ms"`
	Rules      []ruleConfig `koanf:"rules"`
}

type ruleConfig struct {
	Name string             `koanf:"name"`
	From []descriptorConfig `koanf:"from"`
	To   []descriptorConfig `koanf:"to"`
}

type descriptorConfig struct {
	Includes string         `koanf:"includes"`
	Patterns string         `koanf:"patterns"`
	Preview  *previewConfig `koanf:"preview"`
}

type previewConfig struct {
	LinesBefore *int   `koanf:"lines_before"`
	LinesAfter  *int   `koanf:"lines_after"`
	Hover       *bool  `koanf:"hover"`
	Editor      string `koanf:"editor"`
}

func normalize(raw fileConfig, roots []string) (*Config, error) {
	log := logging.GetLogger("config")

	if len(roots) == 0 {
		roots = raw.Roots
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}
	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}
		absRoots = append(absRoots, abs)
	}

	debounce := DefaultDebounce
	if raw.DebounceMs > 0 {
		debounce = time.Duration(raw.DebounceMs) * time.Millisecond
	}

	cfg := &Config{Roots: absRoots, Debounce: debounce}
	for i, rc := range raw.Rules {
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i+1)
		}
		rule := Rule{Name: name}
		for _, dc := range rc.From {
			sd, ok := normalizeSource(dc, name, log)
			if ok {
				rule.From = append(rule.From, sd)
			}
		}
		for _, dc := range rc.To {
			dd, ok := normalizeDestination(dc, name, log)
			if ok {
				rule.To = append(rule.To, dd)
			}
		}
		if len(rule.From) == 0 || len(rule.To) == 0 {
			log.Debug().Str("rule", name).Msg("rule has no usable source/destination pair, skipping")
			continue
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	return cfg, nil
}

func normalizeSource(dc descriptorConfig, rule string, log zerolog.Logger) (SourceDescriptor, bool) {
	pattern, ok := compileDescriptor(dc, rule, "source", log)
	if !ok {
		return SourceDescriptor{}, false
	}
	return SourceDescriptor{Includes: dc.Includes, Pattern: pattern}, true
}

func normalizeDestination(dc descriptorConfig, rule string, log zerolog.Logger) (DestinationDescriptor, bool) {
	pattern, ok := compileDescriptor(dc, rule, "destination", log)
	if !ok {
		return DestinationDescriptor{}, false
	}
	dd := DestinationDescriptor{
		Includes: dc.Includes,
		Pattern:  pattern,
		Preview:  DefaultPreview(),
	}
	if pc := dc.Preview; pc != nil {
		if pc.LinesBefore != nil {
			dd.Preview.LinesBefore = max(0, *pc.LinesBefore)
		}
		if pc.LinesAfter != nil {
			dd.Preview.LinesAfter = max(0, *pc.LinesAfter)
		}
		if pc.Hover != nil {
			dd.Preview.Hover = *pc.Hover
		}
		if pc.Editor != "" {
			editor, err := regexp.Compile("(?m)" + pc.Editor)
			if err != nil {
				log.Warn().Str("rule", rule).Str("pattern", pc.Editor).Err(err).
					Msg("invalid editor pattern, inline annotations disabled for this destination")
			} else {
				dd.Preview.Editor = editor
			}
		}
	}
	return dd, true
}

// compileDescriptor validates the shared fields of a descriptor. A failure
// disables only this descriptor; siblings in the same rule are unaffected.
func compileDescriptor(dc descriptorConfig, rule, kind string, log zerolog.Logger) (*regexp.Regexp, bool) {
	if strings.TrimSpace(dc.Includes) == "" || strings.TrimSpace(dc.Patterns) == "" {
		log.Debug().Str("rule", rule).Str("kind", kind).
			Msg("descriptor missing includes or patterns, skipping")
		return nil, false
	}
	pattern, err := regexp.Compile(dc.Patterns)
	if err != nil {
		log.Warn().Str("rule", rule).Str("kind", kind).Str("pattern", dc.Patterns).Err(err).
			Msg("invalid pattern, descriptor disabled")
		return nil, false
	}
	return pattern, true
}
