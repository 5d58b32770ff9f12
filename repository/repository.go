// Package repository builds the full Repository read/write/batch surface of
// the repository contract on top of a minimal chasm.Backend: batch fan-out with a bounded
// degree of parallelism, and the derived tree/commit helpers (readTree
// variants, writeTree(parents, ...)) that every backend gets for free.
//
// This mirrors the "capability interface plus default-methods layer"
// design note: a backend specializes only the operations it can
// optimize (see chasm.BatchReader), and everything else is derived here
// once.
package repository

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

// Repository is the default-methods layer: a Backend plus a Serializer,
// exposing the full operation surface.
type Repository struct {
	backend chasm.Backend
	ser     chasm.Serializer
	maxDop  int
}

// Option configures a Repository at construction.
type Option func(*Repository)

// WithMaxDop bounds the degree of parallelism used by batch operations.
// -1 means unbounded. The default is 8.
func WithMaxDop(n int) Option {
	return func(r *Repository) { r.maxDop = n }
}

// New builds a Repository over backend using ser for tree and commit
// encoding.
func New(backend chasm.Backend, ser chasm.Serializer, opts ...Option) *Repository {
	r := &Repository{backend: backend, ser: ser, maxDop: 8}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) limit() int {
	if r.maxDop < 0 {
		return 0
	}
	return r.maxDop
}

// Exists reports whether an object with the given digest is present.
func (r *Repository) Exists(ctx context.Context, d digest.Digest) (bool, error) {
	return r.backend.Exists(ctx, d)
}

// Read returns the blob named by d, or nil if absent.
func (r *Repository) Read(ctx context.Context, d digest.Digest) (*chasm.ChasmBlob, error) {
	return r.backend.Read(ctx, d)
}

// ReadStream is the lazy variant of Read.
func (r *Repository) ReadStream(ctx context.Context, d digest.Digest) (*chasm.ChasmStream, error) {
	return r.backend.ReadStream(ctx, d)
}

// ReadBatch reads multiple objects in one call. Absent objects are omitted
// from the result map. It uses the backend's optimized ReadBatch when
// available, falling back to bounded-parallel individual Reads.
func (r *Repository) ReadBatch(ctx context.Context, digests []digest.Digest) (map[digest.Digest]chasm.ChasmBlob, error) {
	if len(digests) == 0 {
		return map[digest.Digest]chasm.ChasmBlob{}, nil
	}

	if br, ok := r.backend.(chasm.BatchReader); ok {
		return br.ReadBatch(ctx, digests)
	}

	var (
		result = make(map[digest.Digest]chasm.ChasmBlob, len(digests))
		resCh  = make(chan struct {
			d digest.Digest
			b *chasm.ChasmBlob
		}, len(digests))
	)

	// A plain errgroup.Group, not errgroup.WithContext: a failing sibling
	// must not cancel the others, only the caller's own ctx does.
	var eg errgroup.Group
	if n := r.limit(); n > 0 {
		eg.SetLimit(n)
	}
	for _, d := range digests {
		d := d
		eg.Go(func() error {
			b, err := r.backend.Read(ctx, d)
			if err != nil {
				return err
			}
			resCh <- struct {
				d digest.Digest
				b *chasm.ChasmBlob
			}{d, b}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(resCh)
	for pair := range resCh {
		if pair.b != nil {
			result[pair.d] = *pair.b
		}
	}
	return result, nil
}

// Write hashes b while storing it, returning the resulting digest. If an
// object with that digest already exists, the write is a no-op
// (Created=false) unless forceOverwrite is set.
func (r *Repository) Write(ctx context.Context, b []byte, metadata chasm.Metadata, forceOverwrite bool) (chasm.WriteResult[digest.Digest], error) {
	return r.backend.WriteFunc(ctx, metadata, forceOverwrite, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// WriteStream is the streaming variant of Write.
func (r *Repository) WriteStream(ctx context.Context, src io.Reader, metadata chasm.Metadata, forceOverwrite bool) (chasm.WriteResult[digest.Digest], error) {
	return r.backend.WriteFunc(ctx, metadata, forceOverwrite, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
}

// WriteFunc invokes produce against the internal hashing sink; the bytes
// produce writes, not any pre-transform input, define the digest. This
// permits transformations (e.g. encoding a tree or commit) whose output
// defines the address.
func (r *Repository) WriteFunc(ctx context.Context, metadata chasm.Metadata, forceOverwrite bool, produce func(io.Writer) error) (chasm.WriteResult[digest.Digest], error) {
	return r.backend.WriteFunc(ctx, metadata, forceOverwrite, produce)
}

// WriteBatch writes multiple blobs in one call, bounded by the
// Repository's configured parallelism.
func (r *Repository) WriteBatch(ctx context.Context, blobs []chasm.ChasmBlob, forceOverwrite bool) ([]chasm.WriteResult[digest.Digest], error) {
	results := make([]chasm.WriteResult[digest.Digest], len(blobs))

	// A plain errgroup.Group, not errgroup.WithContext: a failing sibling
	// must not cancel the others, only the caller's own ctx does.
	var eg errgroup.Group
	if n := r.limit(); n > 0 {
		eg.SetLimit(n)
	}
	for i, blob := range blobs {
		i, blob := i, blob
		eg.Go(func() error {
			res, err := r.Write(ctx, blob.Bytes, blob.Metadata, forceOverwrite)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ReadCommit reads and deserializes a commit, or nil if absent.
func (r *Repository) ReadCommit(ctx context.Context, id chasm.CommitId) (*chasm.Commit, error) {
	blob, err := r.backend.Read(ctx, digest.Digest(id))
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	c, err := r.ser.DeserializeCommit(blob.Bytes)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteCommit serializes and writes a commit object, returning its id.
func (r *Repository) WriteCommit(ctx context.Context, c chasm.Commit) (chasm.CommitId, error) {
	res, err := r.WriteFunc(ctx, chasm.Metadata{}, false, func(w io.Writer) error {
		b, err := r.ser.SerializeCommit(c)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	})
	if err != nil {
		return chasm.ZeroCommitId, err
	}
	return chasm.CommitId(res.Id), nil
}

// ReadTree reads and deserializes the tree object named by id, or nil if
// absent.
func (r *Repository) ReadTree(ctx context.Context, id chasm.TreeId) (*chasm.TreeNodeMap, error) {
	blob, err := r.backend.Read(ctx, digest.Digest(id))
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	m, err := r.ser.DeserializeTreeNodeMap(blob.Bytes)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadTreeForCommit reads the commit, then the tree it references.
func (r *Repository) ReadTreeForCommit(ctx context.Context, id chasm.CommitId) (*chasm.TreeNodeMap, error) {
	c, err := r.ReadCommit(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return r.ReadTree(ctx, c.TreeId)
}

// ReadTreeForBranch resolves the ref, then the commit, then the tree.
func (r *Repository) ReadTreeForBranch(ctx context.Context, name, branch string) (*chasm.TreeNodeMap, error) {
	ref, err := r.ReadCommitRef(ctx, name, branch)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, nil
	}
	return r.ReadTreeForCommit(ctx, ref.CommitId)
}

// ReadTreeBatch reads multiple tree objects in one call. A nil or empty
// input returns an empty map and makes no backend calls. Absent ids are
// omitted from the result.
func (r *Repository) ReadTreeBatch(ctx context.Context, ids []chasm.TreeId) (map[chasm.TreeId]chasm.TreeNodeMap, error) {
	if len(ids) == 0 {
		return map[chasm.TreeId]chasm.TreeNodeMap{}, nil
	}

	digests := make([]digest.Digest, len(ids))
	for i, id := range ids {
		digests[i] = digest.Digest(id)
	}
	blobs, err := r.ReadBatch(ctx, digests)
	if err != nil {
		return nil, err
	}

	result := make(map[chasm.TreeId]chasm.TreeNodeMap, len(blobs))
	for _, id := range ids {
		blob, ok := blobs[digest.Digest(id)]
		if !ok {
			continue
		}
		m, err := r.ser.DeserializeTreeNodeMap(blob.Bytes)
		if err != nil {
			return nil, err
		}
		result[id] = m
	}
	return result, nil
}

// WriteTree serializes and writes a tree object, returning its digest
// wrapped as a TreeId.
func (r *Repository) WriteTree(ctx context.Context, m chasm.TreeNodeMap) (chasm.TreeId, error) {
	res, err := r.WriteFunc(ctx, chasm.Metadata{}, false, func(w io.Writer) error {
		b, err := r.ser.SerializeTreeNodeMap(m)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	})
	if err != nil {
		return chasm.ZeroTreeId, err
	}
	return chasm.TreeId(res.Id), nil
}

// WriteTreeCommit writes a tree, then constructs and writes a commit
// pointing to it, returning the commit's id.
func (r *Repository) WriteTreeCommit(ctx context.Context, parents []chasm.CommitId, m chasm.TreeNodeMap, author, committer chasm.Audit, message *string) (chasm.CommitId, error) {
	treeId, err := r.WriteTree(ctx, m)
	if err != nil {
		return chasm.ZeroCommitId, err
	}
	return r.WriteCommit(ctx, chasm.Commit{
		Parents:   parents,
		TreeId:    treeId,
		Author:    author,
		Committer: committer,
		Message:   message,
	})
}

// ListNames enumerates commit-ref namespaces.
func (r *Repository) ListNames(ctx context.Context) ([]string, error) {
	return r.backend.ListNames(ctx)
}

// ListBranches enumerates the commit refs under one namespace.
func (r *Repository) ListBranches(ctx context.Context, name string) ([]chasm.CommitRef, error) {
	if name == "" {
		return nil, chasm.InvalidArgumentError{Name: "name"}
	}
	return r.backend.ListBranches(ctx, name)
}

// ReadCommitRef resolves a branch within a namespace, or nil if absent.
func (r *Repository) ReadCommitRef(ctx context.Context, name, branch string) (*chasm.CommitRef, error) {
	if name == "" {
		return nil, chasm.InvalidArgumentError{Name: "name"}
	}
	if branch == "" {
		return nil, chasm.InvalidArgumentError{Name: "branch"}
	}
	return r.backend.ReadCommitRef(ctx, name, branch)
}

// WriteCommitRef implements the compare-and-swap protocol for branch refs.
// previous is the caller's belief about the ref's current commit id (nil if
// the caller believes it does not yet exist).
func (r *Repository) WriteCommitRef(ctx context.Context, name string, previous *chasm.CommitId, ref chasm.CommitRef) error {
	if name == "" {
		return chasm.InvalidArgumentError{Name: "name"}
	}
	if ref.Branch == "" {
		return chasm.InvalidArgumentError{Name: "ref.Branch"}
	}
	if ref.CommitId.IsZero() {
		return chasm.InvalidArgumentError{Name: "ref.CommitId"}
	}
	return r.backend.WriteCommitRef(ctx, name, previous, ref)
}
