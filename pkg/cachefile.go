package checkfiledups

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/google/vectorio"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// cacheSignature identifies checkfiledups cache files
var cacheSignature = [4]byte{'c', 'f', 'd', 'c'}

// cacheHeader is the fixed-size header preceding the compressed payload
type cacheHeader struct {
	Signature    [4]byte
	ByteOrder    uint64
	Version      uint32
	EntryCount   uint32
	Flags        uint16
	ChecksumType uint16
	Checksum     [ChecksumSize]byte
}

// encode serialises the header in host byte order
func (h *cacheHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	order := binary.NativeEndian
	copy(buf[0:4], h.Signature[:])
	order.PutUint64(buf[4:12], h.ByteOrder)
	order.PutUint32(buf[12:16], h.Version)
	order.PutUint32(buf[16:20], h.EntryCount)
	order.PutUint16(buf[20:22], h.Flags)
	order.PutUint16(buf[22:24], h.ChecksumType)
	copy(buf[24:HeaderSize], h.Checksum[:])
	return buf
}

// decodeCacheHeader parses a header written on a host of either byte order
func decodeCacheHeader(buf []byte) (*cacheHeader, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: header truncated (%d bytes)", ErrCacheCorrupt, len(buf))
	}

	var order binary.ByteOrder = binary.NativeEndian
	switch order.Uint64(buf[4:12]) {
	case ByteOrderMagic:
	case byteOrderMagicSwapped:
		// written on a host of the opposite endianness
		if isLittleEndianHost() {
			order = binary.BigEndian
		} else {
			order = binary.LittleEndian
		}
	default:
		return nil, fmt.Errorf("%w: bad byte order magic", ErrCacheCorrupt)
	}

	h := &cacheHeader{}
	copy(h.Signature[:], buf[0:4])
	h.ByteOrder = ByteOrderMagic
	h.Version = order.Uint32(buf[12:16])
	h.EntryCount = order.Uint32(buf[16:20])
	h.Flags = order.Uint16(buf[20:22])
	h.ChecksumType = order.Uint16(buf[22:24])
	copy(h.Checksum[:], buf[24:HeaderSize])

	if h.Signature != cacheSignature {
		return nil, fmt.Errorf("%w: bad signature %q", ErrCacheCorrupt, h.Signature[:])
	}
	if h.Version != CurrentCacheVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCacheVersion, h.Version)
	}
	if h.ChecksumType != ChecksumTypeXXHash64 {
		return nil, fmt.Errorf("%w: unknown checksum type %d", ErrCacheCorrupt, h.ChecksumType)
	}
	return h, nil
}

func isLittleEndianHost() bool {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	return probe[0] == 1
}

// payloadChecksum is the xxhash64 of the payload, big endian in the first 8 checksum bytes
func payloadChecksum(payload []byte) [ChecksumSize]byte {
	var sum [ChecksumSize]byte
	binary.BigEndian.PutUint64(sum[:8], xxhash.Sum64(payload))
	return sum
}

// cacheTuple is the on-disk form of a CacheEntry: [modTime, size, "digest"]
type cacheTuple CacheEntry

func (t cacheTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.ModTime, t.Size, t.Digest.String()})
}

func (t *cacheTuple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("expected 3 fields, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &t.ModTime); err != nil {
		return fmt.Errorf("invalid mtime: %w", err)
	}
	if err := json.Unmarshal(parts[1], &t.Size); err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	var hexDigest string
	if err := json.Unmarshal(parts[2], &hexDigest); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	digest, err := ParseDigest(hexDigest)
	if err != nil {
		return err
	}
	t.Digest = digest
	return nil
}

// CacheCodec controls how the payload is compressed
type CacheCodec struct {
	Level       zstd.EncoderLevel
	Concurrency int // encoder goroutines, 0 uses GOMAXPROCS
}

// DefaultCacheCodec returns zstd default level with GOMAXPROCS encoders
func DefaultCacheCodec() CacheCodec {
	return CacheCodec{Level: zstd.SpeedDefault}
}

// encodeCachePayload serialises entries to compressed JSON
func encodeCachePayload(entries map[string]CacheEntry, codec CacheCodec) ([]byte, error) {
	doc := make(map[string]cacheTuple, len(entries))
	for k, v := range entries {
		doc[k] = cacheTuple(v)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise cache: %w", err)
	}

	opts := []zstd.EOption{zstd.WithEncoderLevel(codec.Level)}
	if codec.Concurrency > 0 {
		opts = append(opts, zstd.WithEncoderConcurrency(codec.Concurrency))
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to compress cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compressed cache: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeCachePayload reverses encodeCachePayload
func decodeCachePayload(payload []byte) (map[string]CacheEntry, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCacheCorrupt, err)
	}

	var doc map[string]cacheTuple
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCacheCorrupt, err)
	}

	entries := make(map[string]CacheEntry, len(doc))
	for k, v := range doc {
		entries[k] = CacheEntry(v)
	}
	return entries, nil
}

// readCacheFile maps the file read-only and returns its decoded entries
func readCacheFile(cacheFile string) (map[string]CacheEntry, error) {
	file, err := os.Open(cacheFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat cache file: %w", err)
	}
	if stat.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCacheCorrupt, stat.Size())
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap cache file: %w", err)
	}
	defer unix.Munmap(data)

	header, err := decodeCacheHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}

	payload := data[HeaderSize:]
	if payloadChecksum(payload) != header.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCacheCorrupt)
	}
	if header.Flags&CacheFlagZstd == 0 {
		return nil, fmt.Errorf("%w: unsupported payload encoding (flags 0x%x)", ErrCacheCorrupt, header.Flags)
	}

	// DecodeAll copies out of the mapping, so entries outlive the munmap
	entries, err := decodeCachePayload(payload)
	if err != nil {
		return nil, err
	}
	if uint32(len(entries)) != header.EntryCount {
		return nil, fmt.Errorf("%w: header claims %d entries, payload has %d", ErrCacheCorrupt, header.EntryCount, len(entries))
	}
	return entries, nil
}

// LoadCacheFile loads cacheFile into a new store. It never fails: a missing file
// yields an empty store, and an unreadable or corrupt one yields an empty store
// plus an EventCacheLoadFailed event.
func LoadCacheFile(cacheFile, basePath string, fs afero.Fs, sink EventSink) *CacheStore {
	defer VerboseEnter()()
	if sink == nil {
		sink = discardSink{}
	}

	store := NewCacheStore(basePath, fs)
	cleanupOrphanedTempFiles(cacheFile, sink)

	entries, err := readCacheFile(cacheFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			VerboseLog(1, "No hash cache found at %s, starting fresh", cacheFile)
			return store
		}
		sink.Emit(Event{Kind: EventCacheLoadFailed, Path: cacheFile, Err: err})
		return store
	}

	store.replaceAll(entries)
	VerboseLog(1, "Loaded hash cache from %s (%d entries)", cacheFile, len(entries))
	return store
}

// SaveCacheFile writes a snapshot of store to cacheFile atomically: the header and
// payload go to a temporary sibling with one writev, which is fsynced and renamed
// over cacheFile. It returns the size of the written file.
func SaveCacheFile(store *CacheStore, cacheFile string, codec CacheCodec) (int64, error) {
	defer VerboseEnter()()

	entries := store.Snapshot()
	payload, err := encodeCachePayload(entries, codec)
	if err != nil {
		return 0, err
	}

	header := cacheHeader{
		Signature:    cacheSignature,
		ByteOrder:    ByteOrderMagic,
		Version:      CurrentCacheVersion,
		EntryCount:   uint32(len(entries)),
		Flags:        CacheFlagZstd,
		ChecksumType: ChecksumTypeXXHash64,
		Checksum:     payloadChecksum(payload),
	}
	headerBytes := header.encode()

	if dir := filepath.Dir(cacheFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	tempPath := generateTempFileName(cacheFile)
	if err := writeCacheTemp(tempPath, headerBytes, payload); err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	if err := os.Rename(tempPath, cacheFile); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename cache file: %w", err)
	}
	syncDir(filepath.Dir(cacheFile))

	return int64(len(headerBytes) + len(payload)), nil
}

// writeCacheTemp creates tempPath exclusively and writes header+payload durably
func writeCacheTemp(tempPath string, header, payload []byte) error {
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file %s: %w", tempPath, err)
	}
	defer file.Close()

	iovecs := []syscall.Iovec{
		{Base: &header[0], Len: uint64(len(header))},
		{Base: &payload[0], Len: uint64(len(payload))},
	}
	total := len(header) + len(payload)

	nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs)
	if err != nil {
		return fmt.Errorf("failed to write cache with vectorio: %w", err)
	}
	// writev may stop short on large payloads; finish with plain writes
	if nw < total {
		if nw < len(header) {
			if _, err := file.Write(header[nw:]); err != nil {
				return fmt.Errorf("failed to write cache header: %w", err)
			}
			nw = len(header)
		}
		if _, err := file.Write(payload[nw-len(header):]); err != nil {
			return fmt.Errorf("failed to write cache tail: %w", err)
		}
	}

	if err := unix.Fsync(int(file.Fd())); err != nil {
		return fmt.Errorf("failed to sync temp cache file: %w", err)
	}
	return nil
}

// syncDir fsyncs a directory so a completed rename survives a crash; failures are ignored
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = unix.Fsync(int(d.Fd()))
}

// cleanupOrphanedTempFiles removes temp siblings of cacheFile left by processes that no longer run
func cleanupOrphanedTempFiles(cacheFile string, sink EventSink) {
	dir := filepath.Dir(cacheFile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pid := extractPidFromTempFileName(cacheFile, entry.Name())
		if pid <= 0 || pid == os.Getpid() || isProcessRunning(pid) {
			continue
		}
		orphan := filepath.Join(dir, entry.Name())
		if err := os.Remove(orphan); err == nil {
			sink.Emit(Event{Kind: EventOrphanedTemp, Path: orphan})
		}
	}
}
