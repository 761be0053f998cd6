// Package hash provides the SHA-256 content hash used to address store
// entries and pointer records.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	hashpkg "hash"
)

// Size is the length of a Hash in bytes.
const Size = sha256.Size

// HexSize is the length of the hex encoding of a Hash.
const HexSize = Size * 2

var (
	ErrInvalidHash = errors.New("invalid hash")
)

// Hash is the SHA-256 digest of some content.
type Hash [Size]byte

// Sum returns the hash of b.
func Sum(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Parse parses a hash from its 64 character lowercase hex form.
func Parse(s string) (Hash, error) {
	var h Hash
	if len(s) != HexSize {
		return h, fmt.Errorf("%w: %q is %d characters, want %d", ErrInvalidHash, s, len(s), HexSize)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return h, fmt.Errorf("%w: %q contains non lowercase hex character %q", ErrInvalidHash, s, c)
		}
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 16 hex characters of h, for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:8])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Hasher computes a Hash over everything written to it.
type Hasher struct {
	h hashpkg.Hash
	n int64
}

// New returns a Hasher ready for writing.
func New() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (w *Hasher) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	return n, err
}

// Hash returns the hash of the bytes written so far.
func (w *Hasher) Hash() Hash {
	var h Hash
	copy(h[:], w.h.Sum(nil))
	return h
}

// Written returns the number of bytes written so far.
func (w *Hasher) Written() int64 {
	return w.n
}
