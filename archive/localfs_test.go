package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payload := []byte("captured trace bytes")
	id, err := store.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !id.Defined() {
		t.Fatal("expected defined CID")
	}
	if !store.Has(id) {
		t.Error("Has: expected true after Put")
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get returned %q, want %q", got, payload)
	}
}

func TestStore_PutIdempotent(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("same bytes twice")

	first, err := store.Put(payload)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	second, err := store.Put(payload)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if !first.Equals(second) {
		t.Errorf("Put not idempotent: %s vs %s", first, second)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sum, err := multihash.Sum([]byte("never stored"), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.Get(cid.NewCidV1(cid.Raw, sum))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if store.Has(cid.NewCidV1(cid.Raw, sum)) {
		t.Error("Has: expected false for absent object")
	}

	if _, err := store.Get(cid.Undef); !errors.Is(err, ErrInvalidCID) {
		t.Errorf("Get(Undef) = %v, want ErrInvalidCID", err)
	}
	if store.Has(cid.Undef) {
		t.Error("Has(Undef) = true")
	}
}

func TestStore_GetDetectsCorruption(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.Put([]byte("original bytes"))
	if err != nil {
		t.Fatal(err)
	}

	path := store.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("corrupted bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(id); !errors.Is(err, ErrImmutable) {
		t.Errorf("Get on corrupted object = %v, want ErrImmutable", err)
	}
}

func TestStore_ShardLayout(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.Put([]byte("sharded"))
	if err != nil {
		t.Fatal(err)
	}

	str := id.String()
	want := filepath.Join(root, str[len(str)-4:], str)
	if _, err := os.Stat(want); err != nil {
		t.Errorf("object not at sharded path %s: %v", want, err)
	}
}

func TestOpen_RequiresRoot(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty root")
	}
}
