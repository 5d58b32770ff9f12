package diskstore_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/diskstore"
	"github.com/bobg/chasm/serializer/binarycodec"
)

func newStore(t *testing.T) *diskstore.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "diskstore")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return diskstore.New(dir, binarycodec.New())
}

func TestWriteReadBlob(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	res, err := s.WriteFunc(ctx, chasm.Metadata{}, false, func(w io.Writer) error {
		_, err := w.Write([]byte("abc"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created {
		t.Error("want Created=true on first write")
	}
	if got, want := res.Id.String(), "a9993e364706816aba3e25717850c26c9cd0d89d"; got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}

	blob, err := s.Read(ctx, res.Id)
	if err != nil {
		t.Fatal(err)
	}
	if blob == nil {
		t.Fatal("Read returned nil for a written object")
	}
	if !bytes.Equal(blob.Bytes, []byte("abc")) {
		t.Errorf("got %q, want %q", blob.Bytes, "abc")
	}

	exists, err := s.Exists(ctx, res.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("Exists = false, want true")
	}
}

func TestIdempotentWrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	produce := func(w io.Writer) error {
		_, err := w.Write([]byte("abc"))
		return err
	}

	res1, err := s.WriteFunc(ctx, chasm.Metadata{}, false, produce)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := s.WriteFunc(ctx, chasm.Metadata{}, false, produce)
	if err != nil {
		t.Fatal(err)
	}
	if !res1.Created || res2.Created {
		t.Errorf("got Created=%v,%v; want true,false", res1.Created, res2.Created)
	}
	if res1.Id != res2.Id {
		t.Errorf("digests differ: %s vs %s", res1.Id, res2.Id)
	}
}

func TestForceOverwriteDropsStaleMetadata(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	produce := func(content []byte) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}
	}

	contentType := "text/plain"
	res1, err := s.WriteFunc(ctx, chasm.Metadata{ContentType: &contentType}, false, produce([]byte("abc")))
	if err != nil {
		t.Fatal(err)
	}

	blob, err := s.Read(ctx, res1.Id)
	if err != nil {
		t.Fatal(err)
	}
	if blob.Metadata.ContentType == nil || *blob.Metadata.ContentType != "text/plain" {
		t.Fatalf("got metadata %+v, want ContentType=text/plain", blob.Metadata)
	}

	res2, err := s.WriteFunc(ctx, chasm.Metadata{}, true, produce([]byte("abc")))
	if err != nil {
		t.Fatal(err)
	}
	if res2.Id != res1.Id {
		t.Fatalf("digests differ: %s vs %s", res1.Id, res2.Id)
	}

	blob, err = s.Read(ctx, res2.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !blob.Metadata.IsZero() {
		t.Errorf("stale metadata survived forceOverwrite: %+v", blob.Metadata)
	}
}

func TestReadAbsent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	d := chasm.ZeroTreeId.Digest()
	blob, err := s.Read(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if blob != nil {
		t.Error("want nil for absent digest")
	}
}

func TestRefCAS(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1 := mustCommitId(t, s, []byte("commit one"))
	id2 := mustCommitId(t, s, []byte("commit two"))
	id3 := mustCommitId(t, s, []byte("commit three"))

	if err := s.WriteCommitRef(ctx, "repo", nil, chasm.CommitRef{Branch: "main", CommitId: id1}); err != nil {
		t.Fatal(err)
	}

	ref, err := s.ReadCommitRef(ctx, "repo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if ref == nil || ref.CommitId != id1 {
		t.Fatalf("got %v, want CommitId=%s", ref, id1)
	}

	if err := s.WriteCommitRef(ctx, "repo", &id1, chasm.CommitRef{Branch: "main", CommitId: id2}); err != nil {
		t.Fatal(err)
	}
	ref, err = s.ReadCommitRef(ctx, "repo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if ref.CommitId != id2 {
		t.Fatalf("got %s, want %s", ref.CommitId, id2)
	}

	err = s.WriteCommitRef(ctx, "repo", &id1, chasm.CommitRef{Branch: "main", CommitId: id3})
	if _, ok := err.(chasm.ConcurrencyConflictError); !ok {
		t.Fatalf("got %v, want ConcurrencyConflictError", err)
	}

	ref, err = s.ReadCommitRef(ctx, "repo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if ref.CommitId != id2 {
		t.Fatalf("stored ref changed after rejected CAS: got %s, want %s", ref.CommitId, id2)
	}
}

func TestRefIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1 := mustCommitId(t, s, []byte("commit one"))

	if err := s.WriteCommitRef(ctx, "repo", nil, chasm.CommitRef{Branch: "main", CommitId: id1}); err != nil {
		t.Fatal(err)
	}
	// Replaying the same write (caller still believes the ref is absent) with
	// the value already in place must be a no-op success, not a conflict.
	if err := s.WriteCommitRef(ctx, "repo", nil, chasm.CommitRef{Branch: "main", CommitId: id1}); err != nil {
		t.Fatalf("idempotent replay failed: %v", err)
	}
}

func mustCommitId(t *testing.T, s *diskstore.Store, content []byte) chasm.CommitId {
	t.Helper()
	res, err := s.WriteFunc(context.Background(), chasm.Metadata{}, false, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return chasm.CommitId(res.Id)
}
