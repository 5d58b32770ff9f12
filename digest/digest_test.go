package digest_test

import (
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/chasm/digest"
)

func TestOf(t *testing.T) {
	got := digest.Of([]byte("abc"))
	want, err := digest.FromHex("a9993e364706816aba3e25717850c26c9cd0d89d")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestNewWrongLength(t *testing.T) {
	if _, err := digest.New([]byte{1, 2, 3}); err == nil {
		t.Fatal("want error for short input")
	}
}

func TestFromHexMalformed(t *testing.T) {
	cases := []string{"", "zz", "a9993e364706816aba3e25717850c26c9cd0d8"}
	for _, c := range cases {
		if _, err := digest.FromHex(c); err == nil {
			t.Errorf("FromHex(%q): want error, got nil", c)
		}
	}
}

func TestFromHexDashed(t *testing.T) {
	plain, err := digest.FromHex("a9993e364706816aba3e25717850c26c9cd0d89d")
	if err != nil {
		t.Fatal(err)
	}
	dashed, err := digest.FromHex("a9993e36-4706816a-ba3e2571-7850c26c-9cd0d89d")
	if err != nil {
		t.Fatal(err)
	}
	if plain != dashed {
		t.Errorf("dashed form parsed differently: %s vs %s", plain, dashed)
	}
}

func TestSplit(t *testing.T) {
	d, err := digest.FromHex("a9993e364706816aba3e25717850c26c9cd0d89d")
	if err != nil {
		t.Fatal(err)
	}
	prefix, remainder := d.Split(2)
	if prefix != "a999" {
		t.Errorf("prefix = %q, want %q", prefix, "a999")
	}
	if remainder != "3e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("remainder = %q", remainder)
	}
	if prefix+remainder != d.String() {
		t.Error("prefix+remainder does not reconstruct the hex string")
	}
}

func TestZero(t *testing.T) {
	if !digest.Zero.IsZero() {
		t.Error("Zero.IsZero() = false")
	}
	var d digest.Digest
	if !d.IsZero() {
		t.Error("default Digest value is not zero")
	}
}

func TestOrdering(t *testing.T) {
	f := func(a, b [digest.Size]byte) bool {
		da, db := digest.Digest(a), digest.Digest(b)
		return da.Less(db) == (da.Compare(db) < 0)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestRoundTripHex(t *testing.T) {
	f := func(b [digest.Size]byte) bool {
		d := digest.Digest(b)
		got, err := digest.FromHex(d.String())
		if err != nil {
			return false
		}
		return cmp.Equal(got, d)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
