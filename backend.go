package chasm

import (
	"context"
	"io"

	"github.com/bobg/chasm/digest"
)

// Backend is the minimal capability interface a storage implementation
// must satisfy. The repository subpackage builds the full read/write/batch
// surface (readTree, writeTree, readBatch, writeBatch,
// ...) on top of Backend's single-object and single-ref primitives, so a
// backend specializes only the operations it can optimize.
//
// Every method takes a context.Context as its sole cancellation channel;
// a correlation id, if any, rides inside ctx (see the reqctx package) and
// is never threaded as a separate parameter, per the "don't hide
// cancellation" design rule — cancellation stays on ctx, identity rides in
// ctx values, and the two are never conflated.
type Backend interface {
	// Exists reports whether an object with the given digest is present.
	Exists(ctx context.Context, d digest.Digest) (bool, error)

	// Read returns the object named by d, or nil if absent.
	Read(ctx context.Context, d digest.Digest) (*ChasmBlob, error)

	// ReadStream is the lazy variant of Read. The caller must Close the
	// returned stream's Reader. Returns nil if absent.
	ReadStream(ctx context.Context, d digest.Digest) (*ChasmStream, error)

	// WriteFunc is the fundamental write primitive: produce is invoked
	// against an internal hashing sink, so the bytes produce writes — not
	// any pre-transform input — define the resulting digest. When an object
	// with the derived digest already exists, the write is a no-op
	// (Created=false) unless forceOverwrite is set.
	WriteFunc(ctx context.Context, metadata Metadata, forceOverwrite bool, produce func(io.Writer) error) (WriteResult[digest.Digest], error)

	// ListNames enumerates commit-ref namespaces.
	ListNames(ctx context.Context) ([]string, error)

	// ListBranches enumerates the commit refs under one namespace.
	ListBranches(ctx context.Context, name string) ([]CommitRef, error)

	// ReadCommitRef resolves a branch within a namespace to its current
	// commit ref, or nil if the branch does not exist.
	ReadCommitRef(ctx context.Context, name, branch string) (*CommitRef, error)

	// WriteCommitRef implements the compare-and-swap protocol for branch refs:
	// previous is the caller's belief about the current commit id (nil if
	// the caller believes the ref does not yet exist). It must be atomic
	// against concurrent writers of the same (name, ref.Branch) pair.
	WriteCommitRef(ctx context.Context, name string, previous *CommitId, ref CommitRef) error
}

// BatchReader is implemented by backends that can optimize a multi-digest
// read into a single round trip. The repository layer uses it when present
// and falls back to bounded-parallel single Reads otherwise.
type BatchReader interface {
	ReadBatch(ctx context.Context, digests []digest.Digest) (map[digest.Digest]ChasmBlob, error)
}
