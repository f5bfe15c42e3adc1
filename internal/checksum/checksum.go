package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the read granularity used for all content hashing.
const DefaultChunkSize = 8192

// Digest is the SHA-256 fingerprint of a complete byte stream.
type Digest [sha256.Size]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Counter receives the length of every chunk consumed while hashing.
// Implementations must be safe for concurrent use.
type Counter interface {
	Add(n int64)
}

// Hasher calculates SHA-256 digests by reading fixed-size chunks.
// The zero value uses DefaultChunkSize and reports to no counter.
type Hasher struct {
	ChunkSize int
	Counter   Counter
}

// Sum consumes r until EOF and returns the digest of everything read.
// Read errors abort hashing of this one source and are returned to the
// caller. A cancelled context aborts at the next chunk boundary.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (Digest, error) {
	chunkSize := h.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var digest Digest
	hash := sha256.New()
	buffer := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return digest, err
		}

		n, err := r.Read(buffer)
		if n > 0 {
			if _, werr := hash.Write(buffer[:n]); werr != nil {
				return digest, fmt.Errorf("write to hash: %w", werr)
			}
			if h.Counter != nil {
				h.Counter.Add(int64(n))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return digest, fmt.Errorf("read: %w", err)
		}
	}

	hash.Sum(digest[:0])
	return digest, nil
}

// SumFile calculates the digest of the file at path.
func (h *Hasher) SumFile(ctx context.Context, path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return h.Sum(ctx, file)
}
