package chasm

import "github.com/bobg/chasm/digest"

// Serializer is the codec contract: it maps the logical data model (tree
// node maps, commits, commit ids, digests) to byte sequences and back, with
// round-trip fidelity. Implementations are stateless after construction and
// freely shared across goroutines.
//
// A repository's digests are computed by hashing the serialized form of an
// object, so a given object's digest is codec-dependent: the codec
// implementation is effectively part of a store's persistent format and
// must not change for an existing store.
//
// Deserializing a zero-length byte slice yields the default (zero) value
// for the corresponding type, never an error; the repository layer relies
// on this to mean "absent".
type Serializer interface {
	// SerializeDigest encodes a digest. DeserializeDigest decodes it back.
	SerializeDigest(d digest.Digest) ([]byte, error)
	DeserializeDigest(b []byte) (digest.Digest, error)

	// SerializeCommitId encodes a CommitId. DeserializeCommitId decodes it
	// back.
	SerializeCommitId(id CommitId) ([]byte, error)
	DeserializeCommitId(b []byte) (CommitId, error)

	// SerializeTreeNodeMap encodes a TreeNodeMap. DeserializeTreeNodeMap
	// decodes it back.
	SerializeTreeNodeMap(m TreeNodeMap) ([]byte, error)
	DeserializeTreeNodeMap(b []byte) (TreeNodeMap, error)

	// SerializeCommit encodes a Commit. DeserializeCommit decodes it back.
	SerializeCommit(c Commit) ([]byte, error)
	DeserializeCommit(b []byte) (Commit, error)
}
