package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"uclab.dev/conncheck/attest"
)

// Store is a filesystem-backed CAS rooted at one directory. Objects are
// written once with read-only permissions and sharded by CID prefix.
type Store struct {
	root string
}

// Open creates (if needed) and opens a store rooted at root.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("archive: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// DefaultRoot returns ~/.conncheck/archive.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".conncheck", "archive"), nil
}

func (s *Store) pathFor(id cid.Cid) string {
	str := id.String()
	shard := str
	if len(str) > 4 {
		shard = str[len(str)-4:]
	}
	return filepath.Join(s.root, shard, str)
}

func (s *Store) Put(data []byte) (cid.Cid, error) {
	id, err := attest.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, ErrInvalidCID
	}

	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := s.Get(id)
			if rerr != nil {
				return cid.Undef, ErrImmutable
			}
			if !bytes.Equal(existing, data) {
				return cid.Undef, ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Guard against on-disk corruption: the bytes must still hash to
	// the requested CID.
	got, err := attest.CIDv1RawSHA256CID(data)
	if err != nil {
		return nil, err
	}
	if got.String() != id.String() {
		return nil, ErrImmutable
	}
	return data, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}
