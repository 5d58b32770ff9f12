// Package jsoncodec implements a human-readable JSON Serializer, useful for
// debugging and interop. It is interchangeable with binarycodec through the
// chasm.Serializer contract, though the two produce different bytes for the
// same logical value and so compute different digests for the same object.
package jsoncodec

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

// Codec is the JSON Serializer implementation.
type Codec struct{}

// New returns a JSON Codec. It has no configuration and is safe to share.
func New() Codec {
	return Codec{}
}

var _ chasm.Serializer = Codec{}

// SerializeDigest encodes d as a JSON string of 40 lowercase hex
// characters.
func (Codec) SerializeDigest(d digest.Digest) ([]byte, error) {
	return json.Marshal(d.String())
}

// DeserializeDigest decodes a JSON hex string. An empty input yields the
// zero Digest, matching the repository layer's "empty means absent"
// convention.
func (Codec) DeserializeDigest(b []byte) (digest.Digest, error) {
	if len(b) == 0 {
		return digest.Zero, nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return digest.Zero, errors.Wrap(err, "unmarshaling digest")
	}
	d, err := digest.FromHex(s)
	if err != nil {
		return digest.Zero, chasm.SerializationError{Entity: "Digest", Reason: err.Error()}
	}
	return d, nil
}

type jsonCommitId struct {
	Id string `json:"id"`
}

// SerializeCommitId encodes id as {"id": "<40-char hex>"}.
func (Codec) SerializeCommitId(id chasm.CommitId) ([]byte, error) {
	return json.Marshal(jsonCommitId{Id: digest.Digest(id).String()})
}

// DeserializeCommitId decodes the output of SerializeCommitId. An empty
// input yields the zero CommitId.
func (Codec) DeserializeCommitId(b []byte) (chasm.CommitId, error) {
	if len(b) == 0 {
		return chasm.ZeroCommitId, nil
	}
	var v jsonCommitId
	if err := json.Unmarshal(b, &v); err != nil {
		return chasm.ZeroCommitId, errors.Wrap(err, "unmarshaling commit id")
	}
	if v.Id == "" {
		return chasm.ZeroCommitId, nil
	}
	d, err := digest.FromHex(v.Id)
	if err != nil {
		return chasm.ZeroCommitId, chasm.SerializationError{Entity: "CommitId", Reason: err.Error()}
	}
	return chasm.CommitId(d), nil
}

type jsonTreeNode struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	NodeId string `json:"nodeId"`
}

type jsonTreeNodeMap struct {
	Nodes []jsonTreeNode `json:"nodes"`
}

func kindToString(k chasm.NodeKind) string {
	if k == chasm.KindTree {
		return "tree"
	}
	return "blob"
}

func kindFromString(s string) (chasm.NodeKind, error) {
	switch s {
	case "blob":
		return chasm.KindBlob, nil
	case "tree":
		return chasm.KindTree, nil
	default:
		return 0, errors.Errorf("unknown node kind %q", s)
	}
}

// SerializeTreeNodeMap encodes m as {"nodes": [{"name", "kind", "nodeId"}, ...]}.
func (Codec) SerializeTreeNodeMap(m chasm.TreeNodeMap) ([]byte, error) {
	v := jsonTreeNodeMap{Nodes: make([]jsonTreeNode, 0, m.Len())}
	for i := 0; i < m.Len(); i++ {
		n := m.At(i)
		v.Nodes = append(v.Nodes, jsonTreeNode{Name: n.Name, Kind: kindToString(n.Kind), NodeId: n.Target.String()})
	}
	return json.Marshal(v)
}

// DeserializeTreeNodeMap decodes the output of SerializeTreeNodeMap. An
// empty input yields the empty TreeNodeMap.
func (Codec) DeserializeTreeNodeMap(b []byte) (chasm.TreeNodeMap, error) {
	if len(b) == 0 {
		return chasm.EmptyTreeNodeMap, nil
	}
	var v jsonTreeNodeMap
	if err := json.Unmarshal(b, &v); err != nil {
		return chasm.TreeNodeMap{}, errors.Wrap(err, "unmarshaling tree node map")
	}
	nodes := make([]chasm.TreeNode, 0, len(v.Nodes))
	for _, jn := range v.Nodes {
		kind, err := kindFromString(jn.Kind)
		if err != nil {
			return chasm.TreeNodeMap{}, err
		}
		target, err := digest.FromHex(jn.NodeId)
		if err != nil {
			return chasm.TreeNodeMap{}, chasm.SerializationError{Entity: "TreeNode", Reason: err.Error()}
		}
		nodes = append(nodes, chasm.TreeNode{Name: jn.Name, Kind: kind, Target: target})
	}
	return chasm.NewTreeNodeMap(nodes)
}

type jsonAudit struct {
	Name        string `json:"name"`
	Ticks       int64  `json:"ticks"`
	OffsetTicks int64  `json:"offsetTicks"`
}

func auditToJSON(a chasm.Audit) jsonAudit {
	return jsonAudit{Name: a.Name, Ticks: a.Ticks, OffsetTicks: a.OffsetTicks}
}

func auditFromJSON(j jsonAudit) chasm.Audit {
	return chasm.Audit{Name: j.Name, Ticks: j.Ticks, OffsetTicks: j.OffsetTicks}
}

type jsonCommit struct {
	Parents   []string  `json:"parents"`
	TreeId    string    `json:"treeId"`
	Author    jsonAudit `json:"author"`
	Committer jsonAudit `json:"committer"`
	Message   *string   `json:"message"`
}

// SerializeCommit encodes commit with field names parents, treeId, author,
// committer, message.
func (Codec) SerializeCommit(commit chasm.Commit) ([]byte, error) {
	v := jsonCommit{
		Parents:   make([]string, len(commit.Parents)),
		TreeId:    digest.Digest(commit.TreeId).String(),
		Author:    auditToJSON(commit.Author),
		Committer: auditToJSON(commit.Committer),
		Message:   commit.Message,
	}
	for i, p := range commit.Parents {
		v.Parents[i] = digest.Digest(p).String()
	}
	return json.Marshal(v)
}

// DeserializeCommit decodes the output of SerializeCommit. An empty input
// yields the zero Commit.
func (Codec) DeserializeCommit(b []byte) (chasm.Commit, error) {
	if len(b) == 0 {
		return chasm.Commit{}, nil
	}
	var v jsonCommit
	if err := json.Unmarshal(b, &v); err != nil {
		return chasm.Commit{}, errors.Wrap(err, "unmarshaling commit")
	}
	parents := make([]chasm.CommitId, 0, len(v.Parents))
	for _, p := range v.Parents {
		d, err := digest.FromHex(p)
		if err != nil {
			return chasm.Commit{}, chasm.SerializationError{Entity: "Commit.parents", Reason: err.Error()}
		}
		parents = append(parents, chasm.CommitId(d))
	}
	var treeId chasm.TreeId
	if v.TreeId != "" {
		d, err := digest.FromHex(v.TreeId)
		if err != nil {
			return chasm.Commit{}, chasm.SerializationError{Entity: "Commit.treeId", Reason: err.Error()}
		}
		treeId = chasm.TreeId(d)
	}
	return chasm.Commit{
		Parents:   parents,
		TreeId:    treeId,
		Author:    auditFromJSON(v.Author),
		Committer: auditFromJSON(v.Committer),
		Message:   v.Message,
	}, nil
}
