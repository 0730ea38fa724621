package checkfiledups

import "errors"

var (
	// ErrRootNotFound is returned when the scan root does not exist
	ErrRootNotFound = errors.New("root path does not exist")
	// ErrRootNotDirectory is returned when the scan root is not a directory
	ErrRootNotDirectory = errors.New("root path is not a directory")
	// ErrInterrupted is returned by pipeline stages that stopped early on shutdown
	ErrInterrupted = errors.New("operation interrupted by shutdown")
	// ErrCacheCorrupt is returned when a cache file fails header, checksum or payload validation
	ErrCacheCorrupt = errors.New("cache file is corrupt")
	// ErrCacheVersion is returned for cache files written by an unsupported format version
	ErrCacheVersion = errors.New("unsupported cache file version")
)
