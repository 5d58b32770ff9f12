// Package binarycodec implements the compact binary Serializer: fixed-width
// digests and length-prefixed framing for variable-length fields, matching
// the wire layout (parents as a length-prefixed
// list of digests, an audit as a length-prefixed name plus two int64 tick
// fields, and an optional message as a nullable length-prefixed string).
//
// This is the preferred codec for production use: it is smaller and faster
// to parse than the JSON codec, at the cost of human-readability.
package binarycodec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

// Codec is the compact binary Serializer implementation.
type Codec struct{}

// New returns a binary Codec. It has no configuration and is safe to share.
func New() Codec {
	return Codec{}
}

var _ chasm.Serializer = Codec{}

// SerializeDigest encodes d as its 20 raw bytes.
func (Codec) SerializeDigest(d digest.Digest) ([]byte, error) {
	out := make([]byte, digest.Size)
	copy(out, d[:])
	return out, nil
}

// DeserializeDigest decodes 20 raw bytes into a Digest. An empty input
// yields the zero Digest.
func (Codec) DeserializeDigest(b []byte) (digest.Digest, error) {
	if len(b) == 0 {
		return digest.Zero, nil
	}
	if len(b) != digest.Size {
		return digest.Zero, chasm.SerializationError{Entity: "Digest", Reason: "wrong length", Got: len(b), Expected: digest.Size}
	}
	var d digest.Digest
	copy(d[:], b)
	return d, nil
}

// SerializeCommitId encodes id the same way a Digest is encoded.
func (c Codec) SerializeCommitId(id chasm.CommitId) ([]byte, error) {
	return c.SerializeDigest(digest.Digest(id))
}

// DeserializeCommitId decodes id the same way a Digest is decoded. An empty
// input yields the zero CommitId.
func (c Codec) DeserializeCommitId(b []byte) (chasm.CommitId, error) {
	d, err := c.DeserializeDigest(b)
	return chasm.CommitId(d), err
}

// SerializeTreeNodeMap encodes m as a count-prefixed sequence of nodes,
// each a length-prefixed name, a one-byte kind tag, and a 20-byte target
// digest.
func (Codec) SerializeTreeNodeMap(m chasm.TreeNodeMap) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(m.Len())); err != nil {
		return nil, err
	}
	for i := 0; i < m.Len(); i++ {
		n := m.At(i)
		if err := writeLenPrefixed(&buf, []byte(n.Name)); err != nil {
			return nil, err
		}
		if err := buf.WriteByte(byte(n.Kind)); err != nil {
			return nil, err
		}
		if _, err := buf.Write(n.Target[:]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DeserializeTreeNodeMap decodes the output of SerializeTreeNodeMap. An
// empty input yields the empty TreeNodeMap.
func (Codec) DeserializeTreeNodeMap(b []byte) (chasm.TreeNodeMap, error) {
	if len(b) == 0 {
		return chasm.EmptyTreeNodeMap, nil
	}
	r := bytes.NewReader(b)
	count, err := readUint32(r)
	if err != nil {
		return chasm.TreeNodeMap{}, errors.Wrap(err, "reading node count")
	}
	nodes := make([]chasm.TreeNode, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readLenPrefixed(r)
		if err != nil {
			return chasm.TreeNodeMap{}, errors.Wrap(err, "reading node name")
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return chasm.TreeNodeMap{}, errors.Wrap(err, "reading node kind")
		}
		var target digest.Digest
		if _, err := io.ReadFull(r, target[:]); err != nil {
			return chasm.TreeNodeMap{}, errors.Wrap(err, "reading node target")
		}
		nodes = append(nodes, chasm.TreeNode{Name: string(name), Kind: chasm.NodeKind(kindByte), Target: target})
	}
	// Nodes are already in serialized (sorted) order; NewTreeNodeMap
	// re-validates sort order and uniqueness.
	return chasm.NewTreeNodeMap(nodes)
}

// SerializeCommit encodes c as: a count-prefixed list of parent digests, the
// tree id digest, the author audit, the committer audit, and an optional
// message.
func (c Codec) SerializeCommit(commit chasm.Commit) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeUint32(&buf, uint32(len(commit.Parents))); err != nil {
		return nil, err
	}
	for _, p := range commit.Parents {
		d := digest.Digest(p)
		if _, err := buf.Write(d[:]); err != nil {
			return nil, err
		}
	}

	treeDigest := digest.Digest(commit.TreeId)
	if _, err := buf.Write(treeDigest[:]); err != nil {
		return nil, err
	}

	if err := writeAudit(&buf, commit.Author); err != nil {
		return nil, err
	}
	if err := writeAudit(&buf, commit.Committer); err != nil {
		return nil, err
	}

	if commit.Message == nil {
		if err := buf.WriteByte(0); err != nil {
			return nil, err
		}
	} else {
		if err := buf.WriteByte(1); err != nil {
			return nil, err
		}
		if err := writeLenPrefixed(&buf, []byte(*commit.Message)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DeserializeCommit decodes the output of SerializeCommit. An empty input
// yields the zero Commit.
func (c Codec) DeserializeCommit(b []byte) (chasm.Commit, error) {
	if len(b) == 0 {
		return chasm.Commit{}, nil
	}
	r := bytes.NewReader(b)

	parentCount, err := readUint32(r)
	if err != nil {
		return chasm.Commit{}, errors.Wrap(err, "reading parent count")
	}
	var parents []chasm.CommitId
	for i := uint32(0); i < parentCount; i++ {
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return chasm.Commit{}, errors.Wrap(err, "reading parent digest")
		}
		parents = append(parents, chasm.CommitId(d))
	}

	var treeDigest digest.Digest
	if _, err := io.ReadFull(r, treeDigest[:]); err != nil {
		return chasm.Commit{}, errors.Wrap(err, "reading tree id")
	}

	author, err := readAudit(r)
	if err != nil {
		return chasm.Commit{}, errors.Wrap(err, "reading author")
	}
	committer, err := readAudit(r)
	if err != nil {
		return chasm.Commit{}, errors.Wrap(err, "reading committer")
	}

	hasMessage, err := r.ReadByte()
	if err != nil {
		return chasm.Commit{}, errors.Wrap(err, "reading message presence")
	}
	var message *string
	if hasMessage != 0 {
		m, err := readLenPrefixed(r)
		if err != nil {
			return chasm.Commit{}, errors.Wrap(err, "reading message")
		}
		s := string(m)
		message = &s
	}

	return chasm.Commit{
		Parents:   parents,
		TreeId:    chasm.TreeId(treeDigest),
		Author:    author,
		Committer: committer,
		Message:   message,
	}, nil
}

func writeAudit(buf *bytes.Buffer, a chasm.Audit) error {
	if err := writeLenPrefixed(buf, []byte(a.Name)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, a.Ticks); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, a.OffsetTicks)
}

func readAudit(r *bytes.Reader) (chasm.Audit, error) {
	name, err := readLenPrefixed(r)
	if err != nil {
		return chasm.Audit{}, err
	}
	var ticks, offset int64
	if err := binary.Read(r, binary.BigEndian, &ticks); err != nil {
		return chasm.Audit{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
		return chasm.Audit{}, err
	}
	return chasm.Audit{Name: string(name), Ticks: ticks, OffsetTicks: offset}, nil
}

func writeUint32(buf *bytes.Buffer, n uint32) error {
	return binary.Write(buf, binary.BigEndian, n)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.BigEndian, &n)
	return n, err
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) error {
	if err := writeUint32(buf, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
