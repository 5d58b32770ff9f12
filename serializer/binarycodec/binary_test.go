package binarycodec_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chasm"
	"github.com/bobg/chasm/digest"
	"github.com/bobg/chasm/serializer/binarycodec"
)

func TestDigestRoundTrip(t *testing.T) {
	c := binarycodec.New()
	d := digest.Of([]byte("abc"))
	b, err := c.SerializeDigest(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.DeserializeDigest(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != d {
		t.Errorf("got %s, want %s", got, d)
	}
}

func TestDeserializeEmptyIsDefault(t *testing.T) {
	c := binarycodec.New()

	d, err := c.DeserializeDigest(nil)
	if err != nil || d != digest.Zero {
		t.Errorf("DeserializeDigest(nil) = %v, %v; want zero digest, nil", d, err)
	}

	id, err := c.DeserializeCommitId(nil)
	if err != nil || id != chasm.ZeroCommitId {
		t.Errorf("DeserializeCommitId(nil) = %v, %v; want zero, nil", id, err)
	}

	m, err := c.DeserializeTreeNodeMap(nil)
	if err != nil || m.Len() != 0 {
		t.Errorf("DeserializeTreeNodeMap(nil) = %v, %v; want empty, nil", m, err)
	}

	commit, err := c.DeserializeCommit(nil)
	if err != nil || !commit.TreeId.IsZero() {
		t.Errorf("DeserializeCommit(nil) = %v, %v; want zero, nil", commit, err)
	}
}

func TestTreeNodeMapRoundTrip(t *testing.T) {
	c := binarycodec.New()
	d1 := digest.Of([]byte("one"))
	d2 := digest.Of([]byte("two"))
	m, err := chasm.NewTreeNodeMap([]chasm.TreeNode{
		{Name: "b", Kind: chasm.KindTree, Target: d2},
		{Name: "a", Kind: chasm.KindBlob, Target: d1},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.SerializeTreeNodeMap(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.DeserializeTreeNodeMap(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(m) {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if got.At(0).Name != "a" || got.At(1).Name != "b" {
		t.Error("nodes not in ascending-name order")
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := binarycodec.New()
	msg := "hello"
	commit := chasm.Commit{
		Parents:   []chasm.CommitId{chasm.CommitId(digest.Of([]byte("p1"))), chasm.CommitId(digest.Of([]byte("p2")))},
		TreeId:    chasm.TreeId(digest.Of([]byte("tree"))),
		Author:    chasm.NewAudit("alice", mustTime()),
		Committer: chasm.NewAudit("bob", mustTime()),
		Message:   &msg,
	}
	b, err := c.SerializeCommit(commit)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.DeserializeCommit(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(commit, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitNoMessageRoundTrip(t *testing.T) {
	c := binarycodec.New()
	commit := chasm.Commit{
		Author:    chasm.NewAudit("", mustTime()),
		Committer: chasm.NewAudit("", mustTime()),
	}
	b, err := c.SerializeCommit(commit)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.DeserializeCommit(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Message != nil {
		t.Errorf("got message %v, want nil", *got.Message)
	}
}

func mustTime() time.Time {
	return time.Date(1977, 8, 5, 12, 0, 0, 0, time.FixedZone("UTC-4", -4*60*60))
}
