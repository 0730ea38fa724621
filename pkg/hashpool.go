package checkfiledups

import (
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

// HashStats summarises one hashing run
type HashStats struct {
	Hits        uint64 // digests served from the cache
	Misses      uint64 // digests computed from file contents
	Failures    uint64 // files that could not be read
	Interrupted bool
}

// Hasher resolves descriptors to records with a fixed pool of workers. The
// cache is optional; without one every file is read.
type Hasher struct {
	fs       afero.Fs
	cache    *CacheStore
	workers  int
	progress *Progress
	sink     EventSink
	shutdown <-chan struct{}

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

// NewHasher returns a pool of workers goroutines (clamped to 1..MaxHashWorkers)
func NewHasher(fs afero.Fs, cache *CacheStore, workers int, progress *Progress, sink EventSink, shutdown <-chan struct{}) *Hasher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if sink == nil {
		sink = discardSink{}
	}
	if progress == nil {
		progress = &Progress{}
	}
	workers = min(max(workers, 1), MaxHashWorkers)
	return &Hasher{
		fs:       fs,
		cache:    cache,
		workers:  workers,
		progress: progress,
		sink:     sink,
		shutdown: shutdown,
	}
}

// Workers returns the pool size
func (h *Hasher) Workers() int {
	return h.workers
}

// Run hashes descs and returns one record per file that resolved. Files that
// fail are reported as events and left out. When shutdown fires, workers finish
// the file in hand, nothing new is started, and Run returns the records gathered
// so far with ErrInterrupted.
func (h *Hasher) Run(descs []FileDescriptor) ([]FileRecord, HashStats, error) {
	defer VerboseEnter()()

	jobs := make(chan FileDescriptor, jobQueueSize)
	results := make(chan FileRecord, jobQueueSize)

	go func() {
		defer close(jobs)
		for _, desc := range descs {
			select {
			case jobs <- desc:
			case <-h.shutdown:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < h.workers; i++ {
		wg.Add(1)
		go h.worker(i, jobs, results, &wg)
	}

	records := make([]FileRecord, 0, len(descs))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for rec := range results {
			records = append(records, rec)
		}
	}()

	wg.Wait()
	close(results)
	<-collected

	stats := HashStats{
		Hits:     h.hits.Load(),
		Misses:   h.misses.Load(),
		Failures: h.failures.Load(),
	}

	if h.interrupted() {
		stats.Interrupted = true
		VerboseLog(1, "Hashing interrupted after %d of %d files", len(records)+int(stats.Failures), len(descs))
		return records, stats, ErrInterrupted
	}

	VerboseLog(2, "Hashed %d files with %d workers (%d cached, %d read, %d failed)",
		len(records), h.workers, stats.Hits, stats.Misses, stats.Failures)
	return records, stats, nil
}

func (h *Hasher) interrupted() bool {
	select {
	case <-h.shutdown:
		return true
	default:
		return false
	}
}

// worker checks for shutdown only between files, never inside one
func (h *Hasher) worker(id int, jobs <-chan FileDescriptor, results chan<- FileRecord, wg *sync.WaitGroup) {
	defer wg.Done()

	for desc := range jobs {
		if h.interrupted() {
			if IsDebugEnabled("shutdown") {
				VerboseLog(3, "hash worker %d: stopping on shutdown", id)
			}
			return
		}

		rec, ok := h.resolve(desc)
		h.progress.AddFile(desc.Size)
		if ok {
			results <- rec
		}
	}
}

// resolve returns the record for desc from the cache or by reading the file
func (h *Hasher) resolve(desc FileDescriptor) (FileRecord, bool) {
	var key string
	if h.cache != nil {
		key = h.cache.KeyFor(desc.Path)
		if digest, ok := h.cache.Get(key, desc.ModTime, desc.Size); ok {
			h.hits.Add(1)
			return FileRecord{FileDescriptor: desc, Digest: digest, FromCache: true}, true
		}
	}

	if IsDebugEnabled("hash") {
		VerboseLog(3, "hashing %s (%d bytes)", desc.Path, desc.Size)
	}

	digest, n, err := HashFile(h.fs, desc.Path)
	if err != nil {
		h.failures.Add(1)
		h.sink.Emit(Event{Kind: EventFileError, Path: desc.Path, Err: err})
		return FileRecord{}, false
	}
	h.misses.Add(1)

	rec := FileRecord{FileDescriptor: desc, Digest: digest}
	if n != desc.Size {
		// Changed between enumeration and hashing; report what was read, don't cache it
		if IsDebugEnabled("hash") {
			VerboseLog(3, "%s changed size while scanning (%d -> %d), not caching", desc.Path, desc.Size, n)
		}
		rec.Size = n
		return rec, true
	}

	if h.cache != nil {
		h.cache.Set(key, desc.ModTime, desc.Size, digest)
	}
	return rec, true
}
