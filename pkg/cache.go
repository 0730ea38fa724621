package checkfiledups

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// CacheEntry is a digest plus the modification time and size it was computed against
type CacheEntry struct {
	ModTime uint64
	Size    uint64
	Digest  Digest
}

// cacheShard is one lock domain of the store; keys map to shards by xxhash
type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// CacheStore is a concurrency-safe mapping from normalised path to CacheEntry.
// Writes to the same key serialise on the key's shard; unrelated keys mostly
// land on different shards and proceed independently.
type CacheStore struct {
	basePath string
	fs       afero.Fs
	shards   [cacheShardCount]cacheShard

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats summarises lookups made against a store
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// NewCacheStore returns an empty store whose keys are relative to basePath
func NewCacheStore(basePath string, fs afero.Fs) *CacheStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cs := &CacheStore{basePath: basePath, fs: fs}
	for i := range cs.shards {
		cs.shards[i].entries = make(map[string]CacheEntry)
	}
	return cs
}

// BasePath returns the directory keys are made relative to
func (cs *CacheStore) BasePath() string {
	return cs.basePath
}

// KeyFor returns the normalised cache key for a filesystem path
func (cs *CacheStore) KeyFor(path string) string {
	return NormalisePath(cs.basePath, path)
}

func (cs *CacheStore) shard(key string) *cacheShard {
	return &cs.shards[xxhash.Sum64String(key)%cacheShardCount]
}

// Get returns the stored digest only if both modTime and size match exactly
func (cs *CacheStore) Get(key string, modTime, size uint64) (Digest, bool) {
	sh := cs.shard(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok || entry.ModTime != modTime || entry.Size != size {
		cs.misses.Add(1)
		if ok && IsDebugEnabled("cache") {
			VerboseLog(3, "cache: stale entry for %s (mtime %d/%d, size %d/%d)", key, entry.ModTime, modTime, entry.Size, size)
		}
		return Digest{}, false
	}
	cs.hits.Add(1)
	return entry.Digest, true
}

// Set inserts or overwrites the entry for key
func (cs *CacheStore) Set(key string, modTime, size uint64, digest Digest) {
	sh := cs.shard(key)
	sh.mu.Lock()
	sh.entries[key] = CacheEntry{ModTime: modTime, Size: size, Digest: digest}
	sh.mu.Unlock()
}

// Lookup returns the raw entry for key without validating it
func (cs *CacheStore) Lookup(key string) (CacheEntry, bool) {
	sh := cs.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.entries[key]
	return entry, ok
}

// Len returns the number of entries
func (cs *CacheStore) Len() int {
	n := 0
	for i := range cs.shards {
		sh := &cs.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Stats returns the entry count and lookup counters
func (cs *CacheStore) Stats() CacheStats {
	return CacheStats{
		Entries: cs.Len(),
		Hits:    cs.hits.Load(),
		Misses:  cs.misses.Load(),
	}
}

// Snapshot copies every entry. Each shard is copied under its read lock, so no
// entry is ever observed half written; sets landing after a shard was copied
// are not included.
func (cs *CacheStore) Snapshot() map[string]CacheEntry {
	out := make(map[string]CacheEntry, cs.Len())
	for i := range cs.shards {
		sh := &cs.shards[i]
		sh.mu.RLock()
		for k, v := range sh.entries {
			out[k] = v
		}
		sh.mu.RUnlock()
	}
	return out
}

// Keys returns all keys in ascending order
func (cs *CacheStore) Keys() []string {
	keys := make([]string, 0, cs.Len())
	for i := range cs.shards {
		sh := &cs.shards[i]
		sh.mu.RLock()
		for k := range sh.entries {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// replaceAll swaps in loaded entries, used by LoadCacheFile
func (cs *CacheStore) replaceAll(entries map[string]CacheEntry) {
	for i := range cs.shards {
		sh := &cs.shards[i]
		sh.mu.Lock()
		sh.entries = make(map[string]CacheEntry)
		sh.mu.Unlock()
	}
	for k, v := range entries {
		cs.Set(k, v.ModTime, v.Size, v.Digest)
	}
}

// Prune removes entries whose path no longer exists and returns (removed, total before prune)
func (cs *CacheStore) Prune() (int, int) {
	defer VerboseEnter()()

	removed, total := 0, 0
	for i := range cs.shards {
		sh := &cs.shards[i]
		sh.mu.Lock()
		total += len(sh.entries)
		for key := range sh.entries {
			exists, err := afero.Exists(cs.fs, ResolveCacheKey(cs.basePath, key))
			if err != nil {
				// Unknown state (e.g. permission denied on a parent), keep the entry
				continue
			}
			if !exists {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	VerboseLog(2, "Pruned %d of %d cache entries", removed, total)
	return removed, total
}
