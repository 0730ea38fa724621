package checkfiledups

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// chunkPool holds ChunkSize read buffers shared by the hash workers
var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// hasherPool reuses BLAKE3 state between files
var hasherPool = sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// HashReader streams r through BLAKE3 in ChunkSize reads and returns the digest and byte count
func HashReader(r io.Reader) (Digest, uint64, error) {
	var digest Digest

	h := hasherPool.Get().(*blake3.Hasher)
	h.Reset()
	defer hasherPool.Put(h)

	bufPtr := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bufPtr)
	buf := *bufPtr

	var total uint64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += uint64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return digest, total, err
		}
	}

	h.Sum(digest[:0])
	return digest, total, nil
}

// HashFile calculates the digest of a file's contents
func HashFile(fs afero.Fs, filePath string) (Digest, uint64, error) {
	file, err := fs.Open(filePath)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	digest, n, err := HashReader(file)
	if err != nil {
		return Digest{}, n, fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}
	return digest, n, nil
}

// HashBytes returns the digest of data
func HashBytes(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}
