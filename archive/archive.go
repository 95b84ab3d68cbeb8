// Package archive stores captured traces and attested reports in a
// content-addressed local store, so a run can be re-checked later by
// CID. Objects are immutable and keyed strictly by the CID of their
// bytes; the store is offline and deterministic.
package archive

import (
	"errors"

	"github.com/ipfs/go-cid"
)

var (
	ErrNotFound   = errors.New("archive: object not found")
	ErrInvalidCID = errors.New("archive: invalid CID")
	ErrImmutable  = errors.New("archive: object exists with different bytes")
)

// CAS is the minimal content-addressable storage contract.
//
// Put MUST be idempotent; stored objects MUST be immutable; Get MUST
// return ErrNotFound when the CID is absent.
type CAS interface {
	Put(data []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
