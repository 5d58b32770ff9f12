// Package diskstore implements chasm.Backend as a file hierarchy: objects
// hash-while-write through a temp file and are renamed into a sharded path
// derived from their digest; commit refs compare-and-swap through the same
// temp-and-rename discipline, guarded by a file lock.
package diskstore

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

var _ chasm.Backend = &Store{}

// Store is a filesystem-backed Backend rooted at a directory.
type Store struct {
	root       string
	ser        chasm.Serializer
	prefixLen  int
	retries    int
	retryDelay time.Duration
	flocker    flock.Locker
}

// Option configures a Store at construction.
type Option func(*Store)

// WithPrefixLen sets the sharded-path prefix length. Default 2.
func WithPrefixLen(p int) Option {
	return func(s *Store) { s.prefixLen = p }
}

// WithRetries sets the contention-retry count and delay for transient I/O
// errors. Defaults are 10 retries at 25ms.
func WithRetries(n int, delay time.Duration) Option {
	return func(s *Store) { s.retries = n; s.retryDelay = delay }
}

// New produces a new Store storing data beneath root, using ser to encode
// ref payloads (a ref file holds exactly ser's serialized CommitId).
func New(root string, ser chasm.Serializer, opts ...Option) *Store {
	s := &Store{root: root, ser: ser, prefixLen: 2, retries: 10, retryDelay: 25 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) objectsRoot() string {
	return filepath.Join(s.root, "objects")
}

func (s *Store) objectPath(d digest.Digest) string {
	prefix, remainder := d.Split(s.prefixLen)
	return filepath.Join(s.objectsRoot(), prefix, remainder)
}

func (s *Store) metadataPath(d digest.Digest) string {
	return s.objectPath(d) + ".metadata"
}

func (s *Store) refsRoot() string {
	return filepath.Join(s.root, "refs")
}

func (s *Store) refDir(name string) string {
	return filepath.Join(s.refsRoot(), url.PathEscape(name))
}

func (s *Store) refPath(name, branch string) string {
	return filepath.Join(s.refDir(name), url.PathEscape(branch)+".commit")
}

// withRetry retries fn up to s.retries times with a fixed delay between
// attempts, on any non-nil, non-NotExist error, honoring ctx's
// cancellation between attempts. After the retry budget is exhausted the
// last error is returned.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		lastErr = fn()
		if lastErr == nil || os.IsNotExist(lastErr) {
			return lastErr
		}
		if attempt == s.retries {
			break
		}
		select {
		case <-ctx.Done():
			return chasm.CancelledError{Cause: ctx.Err()}
		case <-time.After(s.retryDelay):
		}
	}
	return lastErr
}

// Exists reports whether an object with the given digest is present.
func (s *Store) Exists(_ context.Context, d digest.Digest) (bool, error) {
	_, err := os.Stat(s.objectPath(d))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, chasm.BackendError{Op: "Exists", Cause: err}
	}
	return true, nil
}

func readMetadata(path string) (chasm.Metadata, error) {
	b, err := os.ReadFile(path + ".metadata")
	if os.IsNotExist(err) {
		return chasm.Metadata{}, nil
	}
	if err != nil {
		return chasm.Metadata{}, err
	}
	var m chasm.Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return chasm.Metadata{}, errors.Wrap(err, "unmarshaling metadata sidecar")
	}
	return m, nil
}

// Read returns the object named by d, or nil if absent.
func (s *Store) Read(ctx context.Context, d digest.Digest) (*chasm.ChasmBlob, error) {
	path := s.objectPath(d)

	var b []byte
	err := s.withRetry(ctx, func() error {
		var readErr error
		b, readErr = os.ReadFile(path)
		return readErr
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chasm.BackendError{Op: "Read", Cause: errors.Wrapf(err, "reading %s", path)}
	}

	metadata, err := readMetadata(path)
	if err != nil {
		return nil, chasm.BackendError{Op: "Read", Cause: err}
	}

	return &chasm.ChasmBlob{Bytes: b, Metadata: metadata}, nil
}

// ReadStream is the lazy variant of Read. The caller must Close the
// returned stream's Reader.
func (s *Store) ReadStream(ctx context.Context, d digest.Digest) (*chasm.ChasmStream, error) {
	path := s.objectPath(d)

	var f *os.File
	err := s.withRetry(ctx, func() error {
		var openErr error
		f, openErr = os.Open(path)
		return openErr
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chasm.BackendError{Op: "ReadStream", Cause: errors.Wrapf(err, "opening %s", path)}
	}

	metadata, err := readMetadata(path)
	if err != nil {
		f.Close()
		return nil, chasm.BackendError{Op: "ReadStream", Cause: err}
	}

	return &chasm.ChasmStream{Reader: f, Metadata: metadata}, nil
}

// WriteFunc hashes while writing: produce is invoked against a SHA-1 sink
// wrapped around a scratch temp file; on success the temp file is renamed
// into the sharded path derived from the resulting digest. The temp file is
// deleted on every exit path.
func (s *Store) WriteFunc(ctx context.Context, metadata chasm.Metadata, forceOverwrite bool, produce func(io.Writer) error) (chasm.WriteResult[digest.Digest], error) {
	if err := os.MkdirAll(s.objectsRoot(), 0o755); err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(err, "creating objects root")}
	}

	tmp, err := os.CreateTemp(s.objectsRoot(), "tmp-*")
	if err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(err, "creating temp file")}
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha1.New()
	mw := io.MultiWriter(tmp, hasher)
	produceErr := produce(mw)
	closeErr := tmp.Close()
	if produceErr != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(produceErr, "producing object content")}
	}
	if closeErr != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(closeErr, "closing temp file")}
	}

	d, err := digest.New(hasher.Sum(nil))
	if err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: err}
	}

	path := s.objectPath(d)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrapf(err, "creating %s", dir)}
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(path); statErr == nil {
			return chasm.WriteResult[digest.Digest]{Id: d, Created: false}, nil
		} else if !os.IsNotExist(statErr) {
			return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: statErr}
		}
	} else {
		os.Remove(path)
		os.Remove(s.metadataPath(d))
	}

	err = s.withRetry(ctx, func() error { return os.Rename(tmpPath, path) })
	if err != nil {
		return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrapf(err, "renaming into %s", path)}
	}
	renamed = true

	if !metadata.IsZero() {
		b, err := json.Marshal(metadata)
		if err != nil {
			return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(err, "marshaling metadata")}
		}
		if err := os.WriteFile(s.metadataPath(d), b, 0o644); err != nil {
			return chasm.WriteResult[digest.Digest]{}, chasm.BackendError{Op: "WriteFunc", Cause: errors.Wrap(err, "writing metadata sidecar")}
		}
	} else {
		os.Remove(s.metadataPath(d))
	}

	return chasm.WriteResult[digest.Digest]{Id: d, Created: true}, nil
}

// ListNames enumerates commit-ref namespaces: the top-level directories
// under refs/, url-unescaped.
func (s *Store) ListNames(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.refsRoot())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chasm.BackendError{Op: "ListNames", Cause: err}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

const refSuffix = ".commit"

// ListBranches enumerates the commit refs under one namespace: leaf files
// ending in ".commit", url-unescaped, whose content is the serialized
// CommitId.
func (s *Store) ListBranches(_ context.Context, name string) ([]chasm.CommitRef, error) {
	dir := s.refDir(name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chasm.BackendError{Op: "ListBranches", Cause: err}
	}

	var refs []chasm.CommitRef
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), refSuffix) {
			continue
		}
		branch, err := url.PathUnescape(strings.TrimSuffix(e.Name(), refSuffix))
		if err != nil {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		id, err := s.ser.DeserializeCommitId(b)
		if err != nil {
			continue
		}
		refs = append(refs, chasm.CommitRef{Branch: branch, CommitId: id})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Branch < refs[j].Branch })
	return refs, nil
}

// ReadCommitRef resolves a branch within a namespace, or nil if absent.
func (s *Store) ReadCommitRef(ctx context.Context, name, branch string) (*chasm.CommitRef, error) {
	path := s.refPath(name, branch)

	var b []byte
	err := s.withRetry(ctx, func() error {
		var readErr error
		b, readErr = os.ReadFile(path)
		return readErr
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, chasm.BackendError{Op: "ReadCommitRef", Cause: errors.Wrapf(err, "reading %s", path)}
	}

	if len(b) < digest.Size {
		return nil, chasm.SerializationError{Entity: "CommitRef", Reason: "payload shorter than a digest", Got: len(b), Expected: digest.Size}
	}

	id, err := s.ser.DeserializeCommitId(b)
	if err != nil {
		return nil, chasm.SerializationError{Entity: "CommitRef", Reason: err.Error()}
	}
	return &chasm.CommitRef{Branch: branch, CommitId: id}, nil
}

// WriteCommitRef implements the compare-and-swap protocol for branch refs via a
// compare-then-temp-and-rename discipline, guarded by a file lock against
// other processes racing on the same ref. Creation of a new ref uses the same
// locked compare and rename; no exclusive-create open is made.
func (s *Store) WriteCommitRef(ctx context.Context, name string, previous *chasm.CommitId, ref chasm.CommitRef) error {
	dir := s.refDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrapf(err, "creating %s", dir)}
	}

	path := s.refPath(name, ref.Branch)
	if err := s.flocker.Lock(path); err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrap(err, "locking ref file")}
	}
	defer s.flocker.Unlock(path)

	current, err := s.readCurrentRef(path)
	if err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: err}
	}

	switch {
	case current == nil && previous == nil:
		// create
	case current == nil && previous != nil:
		return chasm.ConcurrencyConflictError{Name: name, Branch: ref.Branch}
	case current != nil && previous != nil && *current == *previous:
		// replace
	case current != nil && *current == ref.CommitId:
		// idempotent no-op; still a success
		return nil
	default:
		return chasm.ConcurrencyConflictError{Name: name, Branch: ref.Branch}
	}

	b, err := s.ser.SerializeCommitId(ref.CommitId)
	if err != nil {
		return chasm.SerializationError{Entity: "CommitId", Reason: err.Error()}
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrap(err, "creating temp ref file")}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrap(err, "writing temp ref file")}
	}
	if err := tmp.Close(); err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrap(err, "closing temp ref file")}
	}

	err = s.withRetry(ctx, func() error { return os.Rename(tmpPath, path) })
	if err != nil {
		return chasm.BackendError{Op: "WriteCommitRef", Cause: errors.Wrapf(err, "renaming into %s", path)}
	}
	return nil
}

// readCurrentRef reads the ref file at path, returning nil if it does not
// exist. Caller must hold the ref's file lock.
func (s *Store) readCurrentRef(path string) (*chasm.CommitId, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	id, err := s.ser.DeserializeCommitId(b)
	if err != nil {
		return nil, errors.Wrap(err, "deserializing current ref")
	}
	return &id, nil
}
