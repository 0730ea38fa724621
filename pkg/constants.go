package checkfiledups

import "time"

// Default file names, resolved against the working directory
const (
	DefaultConfigFile = "checkfiledups.ini"
	DefaultCacheFile  = "checkfiledups-cache.zst"
	DefaultLogFile    = "checkfiledups.log"
)

// Cache file header layout
const (
	HeaderSize          = 88 // signature(4) + byte_order(8) + version(4) + entry_count(4) + flags(2) + checksum_type(2) + checksum(64)
	ChecksumSize        = 64 // Maximum checksum size (512 bits)
	CurrentCacheVersion = 1  // Current cache file format version
)

// ByteOrderMagic is written in host order so a reader can tell which order the writer used
const ByteOrderMagic uint64 = 0x0102030405060708

// byteOrderMagicSwapped is ByteOrderMagic as seen by a host of the opposite endianness
const byteOrderMagicSwapped uint64 = 0x0807060504030201

// Cache header flags
const (
	CacheFlagZstd uint16 = 1 << 0 // Payload is zstd compressed
)

// Checksum type constants
const (
	ChecksumTypeXXHash64 uint16 = 1
)

// Hashing constants
const (
	ChunkSize  = 8 * 1024 // Read size for streaming file contents into the digest
	DigestSize = 32       // BLAKE3 output size in bytes
)

// Process exit codes
const (
	ExitOK              = 0
	ExitFatal           = 1
	ExitCacheSaveFailed = 2
	ExitInterrupted     = 130 // 128 + SIGINT
)

// Defaults used when no config value is present
const (
	DefaultHashWorkers      = 1
	MaxHashWorkers          = 64
	DefaultProgressInterval = 500 * time.Millisecond
	cacheShardCount         = 64
	jobQueueSize            = 256
)
