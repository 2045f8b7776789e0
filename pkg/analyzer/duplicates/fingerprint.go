package duplicates

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/dedoop/pkg/config"
	"github.com/zeebo/blake3"
)

// Fingerprint is a fixed-size hash of a normalized line. Lines with equal
// normalized text always share a fingerprint. Different texts collide with
// probability about n²/2¹²⁹ for blake3 and n²/2⁶⁵ for xxhash, where n is
// the number of unique lines; a collision can only merge lines, never split
// them.
type Fingerprint [16]byte

// String returns the hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Hasher computes fingerprints with one algorithm. It is safe for
// concurrent use.
type Hasher struct {
	algorithm string
	sum       func(string) Fingerprint
}

// NewHasher returns a hasher for "blake3" (the default when empty) or
// "xxhash".
func NewHasher(algorithm string) (*Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", config.FingerprintBLAKE3:
		return &Hasher{algorithm: config.FingerprintBLAKE3, sum: blake3Fingerprint}, nil
	case config.FingerprintXXHash:
		return &Hasher{algorithm: config.FingerprintXXHash, sum: xxhashFingerprint}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fingerprint algorithm %q", ErrInvalidConfig, algorithm)
	}
}

// Algorithm returns the canonical algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Sum fingerprints normalized text.
func (h *Hasher) Sum(text string) Fingerprint {
	return h.sum(text)
}

func blake3Fingerprint(text string) Fingerprint {
	digest := blake3.Sum256([]byte(text))
	var fp Fingerprint
	copy(fp[:], digest[:16])
	return fp
}

func xxhashFingerprint(text string) Fingerprint {
	var fp Fingerprint
	binary.LittleEndian.PutUint64(fp[:8], xxhash.Sum64String(text))
	return fp
}
