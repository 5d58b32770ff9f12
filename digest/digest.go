// Package digest implements the 20-byte content identifier that every
// object in a Chasm repository is addressed by.
package digest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Size is the length in bytes of a Digest.
const Size = sha1.Size

// Digest is a 20-byte SHA-1 content identifier.
type Digest [Size]byte

// Zero is the all-zero Digest, the well-defined "empty" sentinel.
var Zero Digest

// IsZero reports whether d is the all-zero sentinel.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Of computes the Digest of b.
func Of(b []byte) Digest {
	return Digest(sha1.Sum(b))
}

// New constructs a Digest from exactly Size bytes.
func New(b []byte) (Digest, error) {
	if len(b) != Size {
		return Zero, InvalidLengthError{Got: len(b)}
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// String formats d as 40 lowercase hex characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Less reports whether d sorts before other under byte-wise (ordinal)
// comparison.
func (d Digest) Less(other Digest) bool {
	return bytes.Compare(d[:], other[:]) < 0
}

// Compare returns -1, 0, or 1 as d is less than, equal to, or greater than
// other, in byte-wise order.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// Split divides d's hex representation at prefix length p, yielding a
// sharded-path pair: a 2*p-character prefix and a (40-2*p)-character
// remainder. Used by on-disk backends to form two-level directory paths.
func (d Digest) Split(p int) (prefix, remainder string) {
	h := d.String()
	if p < 0 {
		p = 0
	}
	n := 2 * p
	if n > len(h) {
		n = len(h)
	}
	return h[:n], h[n:]
}

// FromHex parses a hex-encoded digest. It accepts the 40-character
// unseparated form ("n"-style) and the dashed form ("d"-style, e.g.
// "ab3f-...-00"), which is recognized by stripping dashes before decoding.
func FromHex(s string) (Digest, error) {
	clean := s
	if strings.Contains(clean, "-") {
		clean = strings.ReplaceAll(clean, "-", "")
	}
	if len(clean) != 2*Size {
		return Zero, InvalidFormatError{Value: s}
	}
	var d Digest
	if _, err := hex.Decode(d[:], []byte(clean)); err != nil {
		return Zero, InvalidFormatError{Value: s, Cause: err}
	}
	return d, nil
}

// InvalidLengthError is returned when constructing a Digest from a byte
// sequence whose length is not exactly Size.
type InvalidLengthError struct {
	Got int
}

func (e InvalidLengthError) Error() string {
	return errors.Errorf("invalid digest length: got %d bytes, want %d", e.Got, Size).Error()
}

// InvalidFormatError is returned when parsing a malformed hex digest.
type InvalidFormatError struct {
	Value string
	Cause error
}

func (e InvalidFormatError) Error() string {
	if e.Cause != nil {
		return errors.Wrapf(e.Cause, "invalid digest format %q", e.Value).Error()
	}
	return errors.Errorf("invalid digest format %q", e.Value).Error()
}

func (e InvalidFormatError) Unwrap() error {
	return e.Cause
}
