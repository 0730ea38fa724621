// Package checkfiledups finds duplicate files under a directory tree by content hash,
// backed by a validated on-disk hash cache so repeated runs only rehash what changed.
//
// # Core API
//
// The main entry point is Scanner, which owns the cache for a run:
//
//	opts := checkfiledups.DefaultOptions("/path/to/dir")
//	sc, err := checkfiledups.NewScanner(opts, checkfiledups.NewLogSink())
//	coord := checkfiledups.NewShutdownCoordinator()
//	code := sc.Execute(checkfiledups.ModeScan, coord, os.Stdout)
//
// # Pipeline
//
// A run enumerates the tree twice (a count-only pass that sizes the progress
// reporter, then a collecting pass), hashes the collected files across a fixed
// pool of workers, then groups the records by digest:
//
//	totals, _ := enum.Count()
//	descs, _ := enum.Collect()
//	records, stats, err := hasher.Run(descs)
//	report := GroupDuplicates(records)
//
// # Cache
//
// CacheStore maps a path, normalised to forward slashes relative to the base
// path, to the modification time, size and BLAKE3 digest it was computed against.
// An entry is only reused when both the modification time and the size match.
// The store is persisted as a zstd compressed JSON document behind a small
// binary header, written to a temporary file and renamed into place.
//
// # Interruption
//
// ShutdownCoordinator closes a channel that workers check between files. The
// cache is flushed once, after in-flight files finish, and the process exits
// with ExitInterrupted.
package checkfiledups
