// Package memstore implements chasm.Backend as an in-memory map, for tests
// and short-lived repositories. It is adapted from the disk backend's
// discipline (hash-while-write via a buffering sink, compare-and-swap ref
// updates under a mutex) without any filesystem involved.
package memstore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"io"
	"sort"
	"sync"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

var _ chasm.Backend = &Store{}

// Store is a memory-based Backend.
type Store struct {
	mu    sync.Mutex
	blobs map[digest.Digest]chasm.ChasmBlob
	names map[string]map[string]chasm.CommitId // namespace -> branch -> commit id
}

// New produces a new, empty Store.
func New() *Store {
	return &Store{
		blobs: make(map[digest.Digest]chasm.ChasmBlob),
		names: make(map[string]map[string]chasm.CommitId),
	}
}

// Exists reports whether an object with the given digest is present.
func (s *Store) Exists(_ context.Context, d digest.Digest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[d]
	return ok, nil
}

// Read returns the object named by d, or nil if absent.
func (s *Store) Read(_ context.Context, d digest.Digest) (*chasm.ChasmBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[d]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(b.Bytes))
	copy(cp, b.Bytes)
	return &chasm.ChasmBlob{Bytes: cp, Metadata: b.Metadata}, nil
}

// ReadStream is the lazy variant of Read.
func (s *Store) ReadStream(ctx context.Context, d digest.Digest) (*chasm.ChasmStream, error) {
	b, err := s.Read(ctx, d)
	if err != nil || b == nil {
		return nil, err
	}
	return &chasm.ChasmStream{Reader: io.NopCloser(bytes.NewReader(b.Bytes)), Metadata: b.Metadata}, nil
}

// ReadBatch implements chasm.BatchReader.
func (s *Store) ReadBatch(_ context.Context, digests []digest.Digest) (map[digest.Digest]chasm.ChasmBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[digest.Digest]chasm.ChasmBlob, len(digests))
	for _, d := range digests {
		if b, ok := s.blobs[d]; ok {
			cp := make([]byte, len(b.Bytes))
			copy(cp, b.Bytes)
			result[d] = chasm.ChasmBlob{Bytes: cp, Metadata: b.Metadata}
		}
	}
	return result, nil
}

// WriteFunc hashes the bytes produce writes and stores them keyed by the
// resulting digest.
func (s *Store) WriteFunc(_ context.Context, metadata chasm.Metadata, forceOverwrite bool, produce func(io.Writer) error) (chasm.WriteResult[digest.Digest], error) {
	hasher := sha1.New()
	var buf bytes.Buffer
	if err := produce(io.MultiWriter(hasher, &buf)); err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: err}
	}
	d, err := digest.New(hasher.Sum(nil))
	if err != nil {
		return chasm.WriteResult[digest.Digest]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[d]; ok && !forceOverwrite {
		return chasm.WriteResult[digest.Digest]{Id: d, Created: false}, nil
	}
	s.blobs[d] = chasm.ChasmBlob{Bytes: buf.Bytes(), Metadata: metadata}
	return chasm.WriteResult[digest.Digest]{Id: d, Created: true}, nil
}

// ListNames enumerates commit-ref namespaces.
func (s *Store) ListNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.names))
	for n := range s.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ListBranches enumerates the commit refs under one namespace.
func (s *Store) ListBranches(_ context.Context, name string) ([]chasm.CommitRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branches := s.names[name]
	refs := make([]chasm.CommitRef, 0, len(branches))
	for branch, id := range branches {
		refs = append(refs, chasm.CommitRef{Branch: branch, CommitId: id})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Branch < refs[j].Branch })
	return refs, nil
}

// ReadCommitRef resolves a branch within a namespace, or nil if absent.
func (s *Store) ReadCommitRef(_ context.Context, name, branch string) (*chasm.CommitRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.names[name][branch]
	if !ok {
		return nil, nil
	}
	return &chasm.CommitRef{Branch: branch, CommitId: id}, nil
}

// WriteCommitRef implements the compare-and-swap protocol for branch refs under a
// single process-wide mutex.
func (s *Store) WriteCommitRef(_ context.Context, name string, previous *chasm.CommitId, ref chasm.CommitRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	branches, ok := s.names[name]
	var current *chasm.CommitId
	if ok {
		if id, ok := branches[ref.Branch]; ok {
			current = &id
		}
	}

	switch {
	case current == nil && previous == nil:
		// create
	case current == nil && previous != nil:
		return chasm.ConcurrencyConflictError{Name: name, Branch: ref.Branch}
	case current != nil && previous != nil && *current == *previous:
		// replace
	case current != nil && *current == ref.CommitId:
		return nil
	default:
		return chasm.ConcurrencyConflictError{Name: name, Branch: ref.Branch}
	}

	if !ok {
		branches = make(map[string]chasm.CommitId)
		s.names[name] = branches
	}
	branches[ref.Branch] = ref.CommitId
	return nil
}
