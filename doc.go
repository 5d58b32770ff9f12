// Package chasm is a content-addressed object store modeled after a
// Git-style object database.
//
// It stores three kinds of durable artifacts — opaque binary blobs,
// directory-like trees, and commits that bind trees into a history graph —
// plus a mutable pointer namespace, commit refs, that names the tip of each
// branch. Consumers hash their content, address it by its digest, and
// publish progress by atomically advancing a named branch ref from one
// commit to the next.
//
// The digest type itself lives in the digest subpackage. This package
// defines the data model (TreeNode, TreeNodeMap, Commit, CommitRef, ...),
// the Serializer contract, and the Backend interface a storage
// implementation must satisfy. The repository subpackage builds the full
// read/write/batch surface on top of a minimal Backend; the diskstore and
// memstore subpackages are Backend implementations.
package chasm
