// Package testutil provides reusable property- and scenario-style checks
// for anything implementing chasm.Backend.
package testutil

import (
	"context"
	"io"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
)

// WriteReadRoundTrip writes a random set of byte blobs to an empty backend
// and checks that each one reads back unchanged and that its digest
// matches hash(bytes).
func WriteReadRoundTrip(ctx context.Context, t *testing.T, backendFactory func() chasm.Backend) {
	t.Helper()

	f := func(blobs [][]byte) bool {
		backend := backendFactory()

		for _, b := range blobs {
			res, err := backend.WriteFunc(ctx, chasm.Metadata{}, false, func(w io.Writer) error {
				_, err := w.Write(b)
				return err
			})
			if err != nil {
				t.Error(err)
				return false
			}
			if res.Id != digest.Of(b) {
				t.Errorf("digest mismatch for %q: got %s", b, res.Id)
				return false
			}

			got, err := backend.Read(ctx, res.Id)
			if err != nil {
				t.Error(err)
				return false
			}
			if got == nil {
				t.Errorf("Read(%s) returned nil immediately after write", res.Id)
				return false
			}
			if diff := cmp.Diff(b, got.Bytes); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

// IdempotentWrite writes the same content twice to a fresh backend and
// checks that exactly the first write reports Created=true.
func IdempotentWrite(ctx context.Context, t *testing.T, backend chasm.Backend, content []byte) {
	t.Helper()

	produce := func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	}

	res1, err := backend.WriteFunc(ctx, chasm.Metadata{}, false, produce)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := backend.WriteFunc(ctx, chasm.Metadata{}, false, produce)
	if err != nil {
		t.Fatal(err)
	}
	if !res1.Created {
		t.Error("first write: Created = false, want true")
	}
	if res2.Created {
		t.Error("second write: Created = true, want false")
	}
	if res1.Id != res2.Id {
		t.Errorf("digests differ: %s vs %s", res1.Id, res2.Id)
	}
}

// RefCASMatrix exercises the ref compare-and-swap decision matrix against a fresh
// backend, under one namespace/branch pair.
func RefCASMatrix(ctx context.Context, t *testing.T, backend chasm.Backend, name, branch string, c0, c1, c2 chasm.CommitId) {
	t.Helper()

	t.Run("create_requires_no_previous", func(t *testing.T) {
		err := backend.WriteCommitRef(ctx, name, &c0, chasm.CommitRef{Branch: branch, CommitId: c1})
		if _, ok := err.(chasm.ConcurrencyConflictError); !ok {
			t.Fatalf("got %v, want ConcurrencyConflictError", err)
		}
	})

	t.Run("create", func(t *testing.T) {
		if err := backend.WriteCommitRef(ctx, name, nil, chasm.CommitRef{Branch: branch, CommitId: c0}); err != nil {
			t.Fatal(err)
		}
		got, err := backend.ReadCommitRef(ctx, name, branch)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.CommitId != c0 {
			t.Fatalf("got %v, want CommitId=%s", got, c0)
		}
	})

	t.Run("replace_with_matching_previous", func(t *testing.T) {
		if err := backend.WriteCommitRef(ctx, name, &c0, chasm.CommitRef{Branch: branch, CommitId: c1}); err != nil {
			t.Fatal(err)
		}
		got, err := backend.ReadCommitRef(ctx, name, branch)
		if err != nil {
			t.Fatal(err)
		}
		if got.CommitId != c1 {
			t.Fatalf("got %s, want %s", got.CommitId, c1)
		}
	})

	t.Run("idempotent_replay", func(t *testing.T) {
		if err := backend.WriteCommitRef(ctx, name, &c0, chasm.CommitRef{Branch: branch, CommitId: c1}); err != nil {
			t.Fatalf("replay of already-applied write should succeed: %v", err)
		}
	})

	t.Run("conflict_on_stale_previous", func(t *testing.T) {
		err := backend.WriteCommitRef(ctx, name, &c0, chasm.CommitRef{Branch: branch, CommitId: c2})
		if _, ok := err.(chasm.ConcurrencyConflictError); !ok {
			t.Fatalf("got %v, want ConcurrencyConflictError", err)
		}
		got, err := backend.ReadCommitRef(ctx, name, branch)
		if err != nil {
			t.Fatal(err)
		}
		if got.CommitId != c1 {
			t.Fatalf("stored ref changed after rejected CAS: got %s, want %s", got.CommitId, c1)
		}
	})
}

// ListBranchesSorted writes refs for each of the given branches and checks
// that ListBranches returns them sorted by name.
func ListBranchesSorted(ctx context.Context, t *testing.T, backend chasm.Backend, name string, branches []string, id chasm.CommitId) {
	t.Helper()

	for _, b := range branches {
		if err := backend.WriteCommitRef(ctx, name, nil, chasm.CommitRef{Branch: b, CommitId: id}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := backend.ListBranches(ctx, name)
	if err != nil {
		t.Fatal(err)
	}

	gotNames := make([]string, len(got))
	for i, r := range got {
		gotNames[i] = r.Branch
	}
	wantNames := append([]string(nil), branches...)
	sort.Strings(wantNames)

	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Errorf("branch order mismatch (-want +got):\n%s", diff)
	}
}
