// Package cos ("common OS") holds small, dependency-bearing utilities
// shared across the engine: checksums, byte-size formatting, and other
// odds and ends that would otherwise be duplicated in every package that
// crosses an I/O boundary.
package cos

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"
)

// ChecksumProjection returns a fast, non-cryptographic checksum of a
// projection's raw pixels, suitable for detecting truncated or corrupted
// reads from a projio backend. xxhash is used here (not blake2b) because
// it runs on every projection on the hot ingest path.
func ChecksumProjection(data []float32) uint64 {
	h := xxhash.New64()
	buf := make([]byte, 4)
	for _, f := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// ChecksumVolumeSlice returns a BLAKE2b-256 digest of a finished volume
// slice. Unlike projection ingest, a slice is written once and read back
// rarely (forensic inspection, resumed analysis), so the stronger, slower
// digest is worth it: it protects the one artifact this engine is
// entrusted to hand off durably.
func ChecksumVolumeSlice(data []float32) [32]byte {
	buf := make([]byte, 4*len(data))
	for i, f := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return blake2b.Sum256(buf)
}

// ToSizeIEC formats a byte count using IEC (1024-based) units, for use
// in human-readable log lines.
func ToSizeIEC(b int64, digits int) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.*f%ciB", digits, float64(b)/float64(div), "KMGTPE"[exp])
}
