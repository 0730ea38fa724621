package checkfiledups

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Scanner runs the pipeline for one root and owns the cache for the run
type Scanner struct {
	opts     Options
	fs       afero.Fs
	sink     EventSink
	cache    *CacheStore
	progress *Progress
}

// ScanResult is everything a completed or interrupted scan produced
type ScanResult struct {
	Root        string
	Report      DuplicateReport
	Totals      EnumerationTotals
	Stats       HashStats
	Elapsed     time.Duration
	Interrupted bool
}

// NewScanner normalises opts and returns a scanner with no cache loaded yet
func NewScanner(opts Options, sink EventSink) (*Scanner, error) {
	if err := opts.Normalise(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = discardSink{}
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Scanner{
		opts:     opts,
		fs:       fs,
		sink:     sink,
		progress: &Progress{},
	}, nil
}

// Options returns the normalised options
func (s *Scanner) Options() Options {
	return s.opts
}

// Progress exposes the live counters and pass-1 totals
func (s *Scanner) Progress() *Progress {
	return s.progress
}

// Cache returns the loaded cache, or nil when caching is disabled or not yet loaded
func (s *Scanner) Cache() *CacheStore {
	return s.cache
}

// LoadCache loads the cache file once. With caching disabled it does nothing.
func (s *Scanner) LoadCache() {
	if !s.opts.CacheEnabled || s.cache != nil {
		return
	}
	s.cache = LoadCacheFile(s.opts.CacheFile, s.opts.BasePath, s.fs, s.sink)
}

// SaveCache persists the cache and emits CacheSaved or CacheSaveFailed.
// With caching disabled it does nothing.
func (s *Scanner) SaveCache() error {
	if !s.opts.CacheEnabled || s.cache == nil {
		return nil
	}

	size, err := SaveCacheFile(s.cache, s.opts.CacheFile, s.opts.Codec)
	if err != nil {
		s.sink.Emit(Event{Kind: EventCacheSaveFailed, Path: s.opts.CacheFile, Err: err})
		return err
	}
	s.sink.Emit(Event{Kind: EventCacheSaved, Path: s.opts.CacheFile, Bytes: size})
	return nil
}

// PruneCache drops entries for files that no longer exist and emits PruneResult
func (s *Scanner) PruneCache() (int, int) {
	s.LoadCache()
	if s.cache == nil {
		return 0, 0
	}
	removed, total := s.cache.Prune()
	s.sink.Emit(Event{Kind: EventPruneResult, Removed: removed, Total: total})
	return removed, total
}

// skipRules builds the rule set from the options and the optional skip file
func (s *Scanner) skipRules() (*SkipRules, error) {
	rules, err := NewSkipRules(s.opts.SkipRules)
	if err != nil {
		return nil, err
	}
	if s.opts.SkipFile != "" {
		if err := rules.LoadFile(s.opts.SkipFile); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Scan enumerates, hashes and groups. A root that is missing or not a directory
// is returned before anything is walked. When shutdown fires the partial result
// is returned with ErrInterrupted.
func (s *Scanner) Scan(shutdown <-chan struct{}) (*ScanResult, error) {
	defer VerboseEnter()()
	start := time.Now()

	root := s.opts.RootPath
	if err := ValidateRoot(s.fs, root); err != nil {
		return nil, err
	}

	rules, err := s.skipRules()
	if err != nil {
		return nil, fmt.Errorf("failed to build skip rules: %w", err)
	}

	enum := NewEnumerator(s.fs, root, rules, s.sink, shutdown)
	enum.MinSize = s.opts.MinSize
	enum.Exclude(s.opts.CacheFile)
	for _, path := range s.opts.Exclude {
		enum.Exclude(path)
	}

	result := &ScanResult{Root: root}
	finish := func(err error) (*ScanResult, error) {
		result.Elapsed = time.Since(start)
		result.Interrupted = errors.Is(err, ErrInterrupted)
		return result, err
	}

	VerboseLog(1, "Counting files under %s", root)
	totals, err := enum.Count()
	if err != nil {
		return finish(err)
	}
	result.Totals = totals
	s.progress.SetTotals(totals)

	descs, err := enum.Collect()
	if err != nil {
		return finish(err)
	}

	var reporter *ProgressReporter
	if s.opts.ShowProgress {
		reporter = NewProgressReporter(s.progress, s.opts.ProgressInterval)
		reporter.Start()
	}

	hasher := NewHasher(s.fs, s.cache, s.opts.Workers, s.progress, s.sink, shutdown)
	VerboseLog(1, "Hashing %d files with %d workers", len(descs), hasher.Workers())
	records, stats, err := hasher.Run(descs)
	if reporter != nil {
		reporter.Stop()
	}
	result.Stats = stats
	if err != nil {
		return finish(err)
	}

	result.Report = GroupDuplicates(records)
	return finish(nil)
}
