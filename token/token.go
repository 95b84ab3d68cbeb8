// Package token validates the lexical well-formedness of protocol
// identifiers appearing in node traces: peer IDs, multiaddrs, and DHT
// content keys. All validators are pure functions; identical input and
// constraints always produce identical output.
package token

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
)

// PeerID is an opaque base58 token naming a network participant's
// cryptographic identity. Compared by value; never mutated.
type PeerID string

// Multiaddr is a validated multiaddr in its original string form.
type Multiaddr string

// Recognized multihash-derived PeerID prefixes.
//
// 12D3KooW: Ed25519 (identity multihash over the public key)
// 16Uiu2HA: secp256k1
// Qm:       legacy RSA (sha2-256 multihash)
var peerIDPrefixes = []string{"12D3KooW", "16Uiu2HA", "Qm"}

const (
	peerIDMinLen = 45
	peerIDMaxLen = 60
)

// base58btc alphabet; excludes the visually ambiguous 0, O, I, l.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidatePeerID checks s against the PeerID invariants in order:
// recognized prefix, length in [45,60], base58 alphabet, and finally a
// real base58+multihash decode. The first violated invariant is
// reported; no side effects.
func ValidatePeerID(s string) (PeerID, error) {
	hasPrefix := false
	for _, p := range peerIDPrefixes {
		if strings.HasPrefix(s, p) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", newError(KindPeerID, ReasonPrefixMismatch, "CC-TOK-001",
			fmt.Sprintf("peer id %q does not start with a recognized prefix (12D3KooW, 16Uiu2HA, Qm)", s))
	}
	if len(s) < peerIDMinLen || len(s) > peerIDMaxLen {
		return "", newError(KindPeerID, ReasonLengthOutOfRange, "CC-TOK-002",
			fmt.Sprintf("peer id length %d outside [%d,%d]: %q", len(s), peerIDMinLen, peerIDMaxLen, s))
	}
	for _, r := range s {
		if !strings.ContainsRune(base58Alphabet, r) {
			e := newError(KindPeerID, ReasonBadAlphabet, "CC-TOK-003",
				fmt.Sprintf("peer id contains non-base58 character %q: %q", r, s))
			e.Char = r
			return "", e
		}
	}
	raw, err := base58.Decode(s)
	if err != nil {
		e := newError(KindPeerID, ReasonUndecodable, "CC-TOK-004",
			fmt.Sprintf("peer id is not valid base58: %q", s))
		e.Cause = err
		return "", e
	}
	dec, err := multihash.Decode(raw)
	if err != nil {
		e := newError(KindPeerID, ReasonUndecodable, "CC-TOK-005",
			fmt.Sprintf("peer id is not a valid multihash: %q", s))
		e.Cause = err
		return "", e
	}
	switch dec.Code {
	case multihash.IDENTITY, multihash.SHA2_256:
	default:
		return "", newError(KindPeerID, ReasonUndecodable, "CC-TOK-006",
			fmt.Sprintf("peer id uses unexpected multihash code 0x%x: %q", dec.Code, s))
	}
	return PeerID(s), nil
}

// AddrConstraints parameterizes multiaddr validation per call site.
//
// RequireCircuit is two-sided: when true the address must contain a
// p2p-circuit marker, when false it must not (relay-advertised addresses
// require it; direct listen addresses forbid it). RequireEmbeddedPeerID
// only requires a trailing /p2p/<PeerID> when true; a peer component is
// always validated if present. An empty RequireAnyTransport accepts any
// of tcp, udp, quic-v1, ws.
type AddrConstraints struct {
	RequireCircuit        bool
	RequireEmbeddedPeerID bool
	RequireAnyTransport   []string
}

var defaultTransports = []string{"tcp", "udp", "quic-v1", "ws"}

// ValidateMultiaddr checks s structurally and against c, failing fast
// with the first violated constraint.
func ValidateMultiaddr(s string, c AddrConstraints) (Multiaddr, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		e := newError(KindMultiaddr, ReasonBadStructure, "CC-TOK-010",
			fmt.Sprintf("not a valid multiaddr: %q", s))
		e.Cause = err
		return "", e
	}

	protos := addr.Protocols()
	if len(protos) == 0 || (protos[0].Code != ma.P_IP4 && protos[0].Code != ma.P_IP6) {
		return "", newError(KindMultiaddr, ReasonBadStructure, "CC-TOK-011",
			fmt.Sprintf("multiaddr must start with /ip4/ or /ip6/: %q", s))
	}

	want := c.RequireAnyTransport
	if len(want) == 0 {
		want = defaultTransports
	}
	if !hasAnyTransport(protos, want) {
		return "", newError(KindMultiaddr, ReasonMissingTransport, "CC-TOK-012",
			fmt.Sprintf("multiaddr missing a transport from %v: %q", want, s))
	}

	hasCircuit := hasProtocol(protos, ma.P_CIRCUIT)
	if c.RequireCircuit && !hasCircuit {
		return "", newError(KindMultiaddr, ReasonCircuitRequired, "CC-TOK-013",
			fmt.Sprintf("multiaddr must include /p2p-circuit for relayed addresses: %q", s))
	}
	if !c.RequireCircuit && hasCircuit {
		return "", newError(KindMultiaddr, ReasonCircuitForbidden, "CC-TOK-014",
			fmt.Sprintf("direct multiaddr must not include /p2p-circuit: %q", s))
	}

	embedded, perr := addr.ValueForProtocol(ma.P_P2P)
	if c.RequireEmbeddedPeerID && perr != nil {
		return "", newError(KindMultiaddr, ReasonPeerIDRequired, "CC-TOK-015",
			fmt.Sprintf("multiaddr must contain /p2p/<PeerID>: %q", s))
	}
	if perr == nil {
		if _, err := ValidatePeerID(embedded); err != nil {
			e := newError(KindMultiaddr, ReasonUndecodable, "CC-TOK-016",
				fmt.Sprintf("embedded peer id in multiaddr is invalid: %q", s))
			e.Cause = err
			return "", e
		}
	}

	return Multiaddr(s), nil
}

// ValidateContentKey checks that s decodes as a CID, the key form used
// for DHT provider records.
func ValidateContentKey(s string) error {
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		e := newError(KindContentKey, ReasonUndecodable, "CC-TOK-020",
			fmt.Sprintf("content key is not a valid CID: %q", s))
		e.Cause = err
		return e
	}
	return nil
}

func hasProtocol(protos []ma.Protocol, code int) bool {
	for _, p := range protos {
		if p.Code == code {
			return true
		}
	}
	return false
}

func hasAnyTransport(protos []ma.Protocol, names []string) bool {
	for _, p := range protos {
		for _, n := range names {
			if p.Name == n {
				return true
			}
		}
	}
	return false
}
