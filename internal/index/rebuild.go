package index

import (
	"context"
	"os"
	"regexp"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"linkdex/internal/config"
	"linkdex/internal/workspace"
)

// scanJob is one destination descriptor applied to one file.
type scanJob struct {
	file    string
	pattern *regexp.Regexp
}

// destHit is a single indexed destination produced by a scan worker.
type destHit struct {
	key string
	loc Location
}

// Rebuild replaces the whole index from the given rules. The table is
// cleared up front, then destination files are scanned on a bounded worker
// pool. Unreadable files and empty globs reduce the result, never abort it.
// A rebuild that was superseded by a newer one leaves the table untouched.
func (ix *Index) Rebuild(ctx context.Context, rules []config.Rule) (Stats, error) {
	start := time.Now()
	gen := ix.beginGeneration()

	jobs, files := collectJobs(ix.ws, rules)
	ix.log.Debug().Uint64("generation", gen).Int("files", files).Int("jobs", len(jobs)).
		Msg("rebuild started")

	numWorkers := runtime.NumCPU()
	if numWorkers > len(jobs) {
		numWorkers = max(1, len(jobs))
	}

	jobCh := make(chan scanJob)
	hitCh := make(chan destHit, 64)

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	var done atomic.Int64
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					return
				}
				ix.scanFile(job, hitCh)
				if ix.OnProgress != nil {
					ix.OnProgress(int(done.Add(1)), len(jobs))
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(hitCh)
	}()

	for hit := range hitCh {
		ix.add(gen, hit.key, hit.loc)
	}

	if err := ctx.Err(); err != nil {
		return Stats{Generation: gen}, err
	}

	stats, current := ix.finalize(gen, files, start)
	if !current {
		ix.log.Debug().Uint64("generation", gen).Msg("rebuild superseded, discarded")
		return stats, nil
	}
	ix.log.Info().Int("files", stats.Files).Int("keys", stats.Keys).
		Int("locations", stats.Locations).Dur("took", stats.Duration).
		Msg("rebuild complete")
	return stats, nil
}

// collectJobs expands every destination descriptor's glob. The same file may
// appear in several jobs when descriptors overlap; the file count dedupes.
func collectJobs(ws *workspace.Workspace, rules []config.Rule) ([]scanJob, int) {
	var jobs []scanJob
	seen := make(map[string]struct{})
	for _, rule := range rules {
		for _, dest := range rule.To {
			for _, file := range ws.GlobFiles(dest.Includes) {
				jobs = append(jobs, scanJob{file: file, pattern: dest.Pattern})
				seen[file] = struct{}{}
			}
		}
	}
	return jobs, len(seen)
}

// scanFile applies the destination pattern to each line of the file, at most
// once per line. Matches with an empty key are not indexed.
func (ix *Index) scanFile(job scanJob, hits chan<- destHit) {
	data, err := os.ReadFile(job.file)
	if err != nil {
		ix.log.Warn().Str("file", job.file).Err(err).Msg("cannot read destination file")
		return
	}
	for i, line := range workspace.SplitLines(string(data)) {
		m := job.pattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		key := ExtractKey(line, m)
		if key == "" {
			continue
		}
		hits <- destHit{
			key: key,
			loc: Location{File: job.file, Line: i, StartCol: 0, EndCol: len(line)},
		}
	}
}
