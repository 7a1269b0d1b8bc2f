package model

import (
	"encoding/hex"
	"hash"
	"io"

	blake2b "github.com/minio/blake2b-simd"
)

// checksumSize is the size of a checksum in bytes
const checksumSize = 32

// Checksum computes the content hash used to detect changes and deduplicate content
func Checksum(data []byte) string {
	h := NewHasher()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChecksumReader computes the content hash of a stream
func ChecksumReader(r io.Reader) (string, int64, error) {
	h := NewHasher()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// NewHasher returns the hash function used for checksums (blake2b, 256 bits)
func NewHasher() hash.Hash {
	return blake2b.New256()
}

// IsChecksum tells if a string looks like a checksum
func IsChecksum(s string) bool {
	if len(s) != 2*checksumSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
