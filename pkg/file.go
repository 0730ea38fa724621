package checkfiledups

import (
	"encoding/hex"
	"fmt"
)

// FileDescriptor is a regular file found by the enumerator
type FileDescriptor struct {
	Path    string // Path as walked, rooted at the scan root
	Size    uint64 // Size in bytes
	ModTime uint64 // Modification time, Unix seconds
}

// FileRecord is a FileDescriptor with the digest of its contents
type FileRecord struct {
	FileDescriptor
	Digest    Digest
	FromCache bool // Digest was served by the cache rather than read
}

// Digest is a BLAKE3-256 content hash
type Digest [DigestSize]byte

// String returns the digest as 64 lowercase hex characters
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether no digest has been set
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses a 64 character hex digest
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("invalid digest length %d, expected %d", len(s), DigestSize*2)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}
