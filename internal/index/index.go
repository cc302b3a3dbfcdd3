// Package index maintains the in-memory destination index: every key a
// destination pattern has produced, mapped to the locations that define it.
// The index is rebuilt wholesale and never patched incrementally.
package index

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linkdex/internal/logging"
	"linkdex/internal/workspace"
)

// Location identifies one line of one file. Line is zero-based; columns are
// byte offsets. Destination locations span the whole matched line.
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	StartCol int    `json:"startCol"`
	EndCol   int    `json:"endCol"`
}

// Stats reports the outcome of the most recent completed rebuild.
type Stats struct {
	Files      int
	Keys       int
	Locations  int
	Duration   time.Duration
	Generation uint64
}

// ProgressFunc reports scan progress during a rebuild.
type ProgressFunc func(done, total int)

// Index is the shared key-to-locations table. Reads are served under a
// read lock while a rebuild repopulates the table concurrently, so queries
// during a rebuild may see a partially filled index but never a torn entry.
type Index struct {
	ws *workspace.Workspace

	mu      sync.RWMutex
	entries map[string][]Location
	seen    map[string]map[Location]struct{}
	gen     uint64
	stats   Stats

	// OnProgress, when set before rebuilds begin, receives scan progress.
	OnProgress ProgressFunc

	log zerolog.Logger
}

// New returns an empty index over the given workspace.
func New(ws *workspace.Workspace) *Index {
	return &Index{
		ws:      ws,
		entries: make(map[string][]Location),
		seen:    make(map[string]map[Location]struct{}),
		log:     logging.GetLogger("index"),
	}
}

// ExtractKey derives the index key from a regex match. With a participating
// first capture group the group text is the key, otherwise the whole match.
// The key is whitespace-trimmed; empty keys are the caller's cue to skip.
// m is a FindStringSubmatchIndex result against text.
func ExtractKey(text string, m []int) string {
	if len(m) >= 4 && m[2] >= 0 {
		return strings.TrimSpace(text[m[2]:m[3]])
	}
	return strings.TrimSpace(text[m[0]:m[1]])
}

// HasDestination reports whether at least one destination exists for key.
func (ix *Index) HasDestination(key string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries[key]) > 0
}

// Destinations returns a copy of the locations recorded for key, ordered by
// file, line, and column.
func (ix *Index) Destinations(key string) []Location {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	locs := ix.entries[key]
	if len(locs) == 0 {
		return nil
	}
	out := make([]Location, len(locs))
	copy(out, locs)
	return out
}

// Stats returns the stats of the last completed rebuild.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.stats
}

// add records one destination hit if gen is still current. Identical
// locations for the same key collapse to one entry.
func (ix *Index) add(gen uint64, key string, loc Location) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.gen != gen {
		return
	}
	set, ok := ix.seen[key]
	if !ok {
		set = make(map[Location]struct{})
		ix.seen[key] = set
	}
	if _, dup := set[loc]; dup {
		return
	}
	set[loc] = struct{}{}
	ix.entries[key] = append(ix.entries[key], loc)
}

// beginGeneration clears the table and claims a new generation. Older
// in-flight rebuilds become no-ops from this point on.
func (ix *Index) beginGeneration() uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.gen++
	ix.entries = make(map[string][]Location)
	ix.seen = make(map[string]map[Location]struct{})
	return ix.gen
}

// finalize sorts the table and publishes stats. Returns false when the
// generation was superseded by a newer rebuild.
func (ix *Index) finalize(gen uint64, files int, start time.Time) (Stats, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.gen != gen {
		return Stats{Generation: gen}, false
	}
	locations := 0
	for key, locs := range ix.entries {
		sort.Slice(locs, func(i, j int) bool {
			a, b := locs[i], locs[j]
			if a.File != b.File {
				return a.File < b.File
			}
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.StartCol < b.StartCol
		})
		ix.entries[key] = locs
		locations += len(locs)
	}
	ix.stats = Stats{
		Files:      files,
		Keys:       len(ix.entries),
		Locations:  locations,
		Duration:   time.Since(start),
		Generation: gen,
	}
	return ix.stats, true
}
