package chasm

import "github.com/bobg/chasm/digest"

// TreeId is the digest of a stored tree object. It is a distinct type from
// CommitId so a tree digest cannot be passed where a commit digest is
// required.
type TreeId digest.Digest

// ZeroTreeId is the empty TreeId, equal to the zero digest.
var ZeroTreeId TreeId

// IsZero reports whether id is the empty sentinel.
func (id TreeId) IsZero() bool {
	return digest.Digest(id).IsZero()
}

// Digest returns id as a plain Digest.
func (id TreeId) Digest() digest.Digest {
	return digest.Digest(id)
}

// String formats id as 40 lowercase hex characters.
func (id TreeId) String() string {
	return digest.Digest(id).String()
}

// CommitId is the digest of a stored commit object.
type CommitId digest.Digest

// ZeroCommitId is the empty CommitId, equal to the zero digest.
var ZeroCommitId CommitId

// IsZero reports whether id is the empty sentinel.
func (id CommitId) IsZero() bool {
	return digest.Digest(id).IsZero()
}

// Digest returns id as a plain Digest.
func (id CommitId) Digest() digest.Digest {
	return digest.Digest(id)
}

// String formats id as 40 lowercase hex characters.
func (id CommitId) String() string {
	return digest.Digest(id).String()
}

// Less reports whether id sorts before other under byte-wise comparison of
// the underlying digests.
func (id CommitId) Less(other CommitId) bool {
	return digest.Digest(id).Less(digest.Digest(other))
}
