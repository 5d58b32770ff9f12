package chasm

import (
	"sort"

	"github.com/bobg/chasm/digest"
)

// NodeKind tags whether a TreeNode names a leaf blob or a subtree.
type NodeKind int

const (
	// KindBlob marks a TreeNode whose target is a leaf object.
	KindBlob NodeKind = iota
	// KindTree marks a TreeNode whose target is a subtree.
	KindTree
)

func (k NodeKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// TreeNode is one entry of a TreeNodeMap: a name, its kind (blob or
// subtree), and the digest of the object it names.
type TreeNode struct {
	Name   string
	Kind   NodeKind
	Target digest.Digest
}

// TreeNodeMap is an ordered, immutable sequence of TreeNode entries sorted
// ascending by Name under ordinal (byte-wise) comparison. Names are unique
// within a map. The zero value is the well-defined empty map.
type TreeNodeMap struct {
	nodes []TreeNode
}

// EmptyTreeNodeMap is the well-defined empty TreeNodeMap singleton.
var EmptyTreeNodeMap = TreeNodeMap{}

// NewTreeNodeMap builds a TreeNodeMap from nodes, sorting them by name. It
// returns DuplicateNameError if two nodes share a name, and
// InvalidArgumentError if any node's name is empty.
func NewTreeNodeMap(nodes []TreeNode) (TreeNodeMap, error) {
	cp := make([]TreeNode, len(nodes))
	copy(cp, nodes)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
	for i, n := range cp {
		if n.Name == "" {
			return TreeNodeMap{}, InvalidArgumentError{Name: "node.Name"}
		}
		if i > 0 && cp[i-1].Name == n.Name {
			return TreeNodeMap{}, DuplicateNameError{Name: n.Name}
		}
	}
	return TreeNodeMap{nodes: cp}, nil
}

// Len returns the number of nodes in m.
func (m TreeNodeMap) Len() int {
	return len(m.nodes)
}

// At returns the i'th node in ascending-name order.
func (m TreeNodeMap) At(i int) TreeNode {
	return m.nodes[i]
}

// Nodes returns a copy of m's nodes in ascending-name order.
func (m TreeNodeMap) Nodes() []TreeNode {
	out := make([]TreeNode, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// Lookup finds the node named name, if any.
func (m TreeNodeMap) Lookup(name string) (TreeNode, bool) {
	i := sort.Search(len(m.nodes), func(i int) bool { return m.nodes[i].Name >= name })
	if i < len(m.nodes) && m.nodes[i].Name == name {
		return m.nodes[i], true
	}
	return TreeNode{}, false
}

// Equal reports whether m and other contain the same nodes in the same
// order.
func (m TreeNodeMap) Equal(other TreeNodeMap) bool {
	if len(m.nodes) != len(other.nodes) {
		return false
	}
	for i := range m.nodes {
		if m.nodes[i] != other.nodes[i] {
			return false
		}
	}
	return true
}

// DuplicateNameError is returned by NewTreeNodeMap when two nodes share a
// name.
type DuplicateNameError struct {
	Name string
}

func (e DuplicateNameError) Error() string {
	return "duplicate tree node name: " + e.Name
}
