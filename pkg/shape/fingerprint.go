package shape

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a BLAKE2b-256 digest over everything that decides a
// shape's solid. The zero value means "never built".
type Fingerprint [blake2b.Size256]byte

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// String returns the full hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for logs.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// ParseFingerprint decodes a full hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("shape: parse fingerprint: %w", err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("shape: parse fingerprint: got %d bytes, want %d", len(b), len(f))
	}
	copy(f[:], b)
	return f, nil
}

// Digest hashes the parts, each prefixed with its length so that no two
// distinct part lists hash the same input.
func Digest(parts ...string) Fingerprint {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s", len(p), p)
	}
	var f Fingerprint
	h.Sum(f[:0])
	return f
}
