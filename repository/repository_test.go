package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/memstore"
	"github.com/bobg/chasm/repository"
	"github.com/bobg/chasm/serializer/binarycodec"
)

func newRepo() *repository.Repository {
	return repository.New(memstore.New(), binarycodec.New())
}

func TestWriteReadBlob(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	res, err := repo.Write(ctx, []byte("hello"), chasm.Metadata{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created {
		t.Error("want Created=true")
	}

	got, err := repo.Read(ctx, res.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || string(got.Bytes) != "hello" {
		t.Errorf("got %v, want hello", got)
	}
}

func TestWriteIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	res1, err := repo.Write(ctx, []byte("hello"), chasm.Metadata{}, false)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := repo.Write(ctx, []byte("hello"), chasm.Metadata{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res1.Created || res2.Created {
		t.Errorf("got Created=%v,%v, want true,false", res1.Created, res2.Created)
	}
}

func TestReadBatchEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	got, err := repo.ReadBatch(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
}

func TestReadTreeBatchEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	got, err := repo.ReadTreeBatch(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
}

func TestTreeAndCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	blobRes, err := repo.Write(ctx, []byte("file contents"), chasm.Metadata{}, false)
	if err != nil {
		t.Fatal(err)
	}

	nodes, err := chasm.NewTreeNodeMap([]chasm.TreeNode{
		{Name: "README.md", Kind: chasm.KindBlob, Target: blobRes.Id},
	})
	if err != nil {
		t.Fatal(err)
	}

	treeId, err := repo.WriteTree(ctx, nodes)
	if err != nil {
		t.Fatal(err)
	}

	gotTree, err := repo.ReadTree(ctx, treeId)
	if err != nil {
		t.Fatal(err)
	}
	if gotTree == nil {
		t.Fatal("ReadTree returned nil")
	}
	if diff := cmp.Diff(nodes.Nodes(), gotTree.Nodes()); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	author := chasm.NewAudit("alice", when)
	msg := "initial commit"

	commitId, err := repo.WriteTreeCommit(ctx, nil, nodes, author, author, &msg)
	if err != nil {
		t.Fatal(err)
	}

	gotCommit, err := repo.ReadCommit(ctx, commitId)
	if err != nil {
		t.Fatal(err)
	}
	if gotCommit == nil {
		t.Fatal("ReadCommit returned nil")
	}
	if gotCommit.TreeId != treeId {
		t.Errorf("TreeId = %s, want %s", gotCommit.TreeId, treeId)
	}
	if gotCommit.Message == nil || *gotCommit.Message != msg {
		t.Errorf("Message = %v, want %q", gotCommit.Message, msg)
	}

	gotTreeForCommit, err := repo.ReadTreeForCommit(ctx, commitId)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(nodes.Nodes(), gotTreeForCommit.Nodes()); diff != "" {
		t.Errorf("tree-for-commit mismatch (-want +got):\n%s", diff)
	}
}

func TestRefCASAndBranchResolution(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	nodes, err := chasm.NewTreeNodeMap([]chasm.TreeNode{
		{Name: "a", Kind: chasm.KindBlob, Target: chasm.ZeroTreeId.Digest()},
	})
	if err != nil {
		t.Fatal(err)
	}
	when := time.Now()
	author := chasm.NewAudit("bob", when)

	commitId, err := repo.WriteTreeCommit(ctx, nil, nodes, author, author, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.WriteCommitRef(ctx, "myrepo", nil, chasm.CommitRef{Branch: "main", CommitId: commitId}); err != nil {
		t.Fatal(err)
	}

	gotTree, err := repo.ReadTreeForBranch(ctx, "myrepo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if gotTree == nil {
		t.Fatal("ReadTreeForBranch returned nil")
	}

	// Replaying the same write with previous=nil is idempotent: the ref
	// already holds this commitId, so it's a no-op success, not a conflict.
	if err := repo.WriteCommitRef(ctx, "myrepo", nil, chasm.CommitRef{Branch: "main", CommitId: commitId}); err != nil {
		t.Fatalf("idempotent replay failed: %v", err)
	}

	otherNodes, err := chasm.NewTreeNodeMap([]chasm.TreeNode{
		{Name: "b", Kind: chasm.KindBlob, Target: chasm.ZeroTreeId.Digest()},
	})
	if err != nil {
		t.Fatal(err)
	}
	otherCommitId, err := repo.WriteTreeCommit(ctx, nil, otherNodes, author, author, nil)
	if err != nil {
		t.Fatal(err)
	}

	// previous=nil claims the ref is absent, but it actually holds commitId:
	// a genuine conflict.
	err = repo.WriteCommitRef(ctx, "myrepo", nil, chasm.CommitRef{Branch: "main", CommitId: otherCommitId})
	if _, ok := err.(chasm.ConcurrencyConflictError); !ok {
		t.Fatalf("got %v, want ConcurrencyConflictError", err)
	}

	ref, err := repo.ReadCommitRef(ctx, "myrepo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if ref == nil || ref.CommitId != commitId {
		t.Fatalf("stored ref changed after rejected CAS: got %v, want %s", ref, commitId)
	}
}

func TestWriteCommitRefValidation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	cases := []struct {
		name   string
		branch string
		id     chasm.CommitId
	}{
		{"", "main", chasm.CommitId{1}},
		{"repo", "", chasm.CommitId{1}},
		{"repo", "main", chasm.ZeroCommitId},
	}
	for _, c := range cases {
		err := repo.WriteCommitRef(ctx, c.name, nil, chasm.CommitRef{Branch: c.branch, CommitId: c.id})
		if _, ok := err.(chasm.InvalidArgumentError); !ok {
			t.Errorf("name=%q branch=%q id=%v: got %v, want InvalidArgumentError", c.name, c.branch, c.id, err)
		}
	}
}

func TestListNamesAndBranches(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	id := chasm.CommitId{1}
	if err := repo.WriteCommitRef(ctx, "repoA", nil, chasm.CommitRef{Branch: "main", CommitId: id}); err != nil {
		t.Fatal(err)
	}
	if err := repo.WriteCommitRef(ctx, "repoA", nil, chasm.CommitRef{Branch: "dev", CommitId: id}); err != nil {
		t.Fatal(err)
	}

	names, err := repo.ListNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"repoA"}, names); diff != "" {
		t.Errorf("ListNames mismatch (-want +got):\n%s", diff)
	}

	branches, err := repo.ListBranches(ctx, "repoA")
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 2 {
		t.Errorf("got %d branches, want 2", len(branches))
	}
}
