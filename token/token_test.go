package token

import (
	"errors"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// ed25519PeerID builds a syntactically valid ed25519 peer id: an
// identity multihash over a 36-byte public key protobuf. All such ids
// encode with the 12D3KooW prefix.
func ed25519PeerID(fill byte) string {
	payload := make([]byte, 36)
	payload[0], payload[1], payload[2], payload[3] = 0x08, 0x01, 0x12, 0x20
	for i := 4; i < len(payload); i++ {
		payload[i] = fill
	}
	raw := append([]byte{0x00, 0x24}, payload...)
	return base58.Encode(raw)
}

// qmPeerID builds a legacy RSA-style peer id (sha2-256 multihash).
func qmPeerID(seed string) string {
	sum, err := multihash.Sum([]byte(seed), multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return base58.Encode(sum)
}

func TestValidatePeerID_Valid(t *testing.T) {
	for _, s := range []string{
		ed25519PeerID(0x01),
		ed25519PeerID(0xAB),
		qmPeerID("node-a"),
		qmPeerID("node-b"),
	} {
		got, err := ValidatePeerID(s)
		if err != nil {
			t.Errorf("ValidatePeerID(%q): %v", s, err)
			continue
		}
		if string(got) != s {
			t.Errorf("ValidatePeerID(%q) returned %q", s, got)
		}
	}
}

func TestValidatePeerID_Invalid(t *testing.T) {
	valid := ed25519PeerID(0x01)

	cases := []struct {
		name   string
		in     string
		reason Reason
		ruleID string
	}{
		{"empty", "", ReasonPrefixMismatch, "CC-TOK-001"},
		{"wrong prefix", "XX" + valid[2:], ReasonPrefixMismatch, "CC-TOK-001"},
		{"near-miss prefix", "12d3KooW" + valid[8:], ReasonPrefixMismatch, "CC-TOK-001"},
		{"too short", "12D3KooWabc", ReasonLengthOutOfRange, "CC-TOK-002"},
		{"too long", valid + strings.Repeat("a", 30), ReasonLengthOutOfRange, "CC-TOK-002"},
		{"zero digit", valid[:len(valid)-1] + "0", ReasonBadAlphabet, "CC-TOK-003"},
		{"letter l", valid[:len(valid)-1] + "l", ReasonBadAlphabet, "CC-TOK-003"},
		{"not a multihash", "12D3KooW" + strings.Repeat("a", 40), ReasonUndecodable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidatePeerID(tc.in)
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			if got := ReasonOf(err); got != tc.reason {
				t.Errorf("reason = %q, want %q", got, tc.reason)
			}
			if tc.ruleID != "" {
				if got := RuleID(err); got != tc.ruleID {
					t.Errorf("rule id = %q, want %q", got, tc.ruleID)
				}
			}
		})
	}
}

func TestValidatePeerID_BadAlphabetChar(t *testing.T) {
	valid := ed25519PeerID(0x02)
	_, err := ValidatePeerID(valid[:len(valid)-1] + "O")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Char != 'O' {
		t.Errorf("Char = %q, want 'O'", e.Char)
	}
}

func TestValidateMultiaddr(t *testing.T) {
	peer := ed25519PeerID(0x03)
	relay := qmPeerID("relay")

	cases := []struct {
		name   string
		in     string
		c      AddrConstraints
		reason Reason
	}{
		{"direct tcp", "/ip4/127.0.0.1/tcp/4001", AddrConstraints{}, ""},
		{"direct quic", "/ip4/10.0.0.7/udp/9999/quic-v1", AddrConstraints{}, ""},
		{"direct ws", "/ip6/::1/tcp/8080/ws", AddrConstraints{}, ""},
		{"tcp with peer", "/ip4/1.2.3.4/tcp/4001/p2p/" + peer,
			AddrConstraints{RequireAnyTransport: []string{"tcp"}, RequireEmbeddedPeerID: true}, ""},
		{"circuit addr", "/ip4/1.2.3.4/tcp/4001/p2p/" + relay + "/p2p-circuit/p2p/" + peer,
			AddrConstraints{RequireCircuit: true, RequireEmbeddedPeerID: true}, ""},

		{"garbage", "not-a-multiaddr", AddrConstraints{}, ReasonBadStructure},
		{"no ip prefix", "/dns4/example.com/tcp/443", AddrConstraints{}, ReasonBadStructure},
		{"no transport", "/ip4/127.0.0.1", AddrConstraints{}, ReasonMissingTransport},
		{"wrong transport", "/ip4/127.0.0.1/udp/53",
			AddrConstraints{RequireAnyTransport: []string{"tcp"}}, ReasonMissingTransport},
		{"circuit missing", "/ip4/1.2.3.4/tcp/4001/p2p/" + peer,
			AddrConstraints{RequireCircuit: true}, ReasonCircuitRequired},
		{"circuit forbidden", "/ip4/1.2.3.4/tcp/4001/p2p/" + relay + "/p2p-circuit/p2p/" + peer,
			AddrConstraints{}, ReasonCircuitForbidden},
		{"peer id missing", "/ip4/1.2.3.4/tcp/4001",
			AddrConstraints{RequireEmbeddedPeerID: true}, ReasonPeerIDRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateMultiaddr(tc.in, tc.c)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("ValidateMultiaddr(%q): %v", tc.in, err)
				}
				if string(got) != tc.in {
					t.Errorf("returned %q, want %q", got, tc.in)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			if r := ReasonOf(err); r != tc.reason {
				t.Errorf("reason = %q, want %q", r, tc.reason)
			}
		})
	}
}

// Every address is accepted by exactly one side of the circuit
// constraint: relayed addresses require the marker, direct ones forbid
// it.
func TestValidateMultiaddr_CircuitTwoSided(t *testing.T) {
	peer := ed25519PeerID(0x04)
	addrs := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip4/1.2.3.4/tcp/4001/p2p/" + peer,
		"/ip4/1.2.3.4/tcp/4001/p2p/" + peer + "/p2p-circuit",
		"/ip4/9.9.9.9/udp/1/quic-v1/p2p/" + peer + "/p2p-circuit/p2p/" + peer,
	}
	for _, a := range addrs {
		_, directErr := ValidateMultiaddr(a, AddrConstraints{})
		_, relayErr := ValidateMultiaddr(a, AddrConstraints{RequireCircuit: true})
		if (directErr == nil) == (relayErr == nil) {
			t.Errorf("%q: direct err=%v, relay err=%v; want exactly one accepted", a, directErr, relayErr)
		}
	}
}

func TestValidateContentKey(t *testing.T) {
	sum, err := multihash.Sum([]byte("content"), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatal(err)
	}
	valid := cid.NewCidV1(cid.Raw, sum).String()

	if err := ValidateContentKey(valid); err != nil {
		t.Errorf("ValidateContentKey(%q): %v", valid, err)
	}
	if err := ValidateContentKey(qmPeerID("also-a-cidv0")); err != nil {
		t.Errorf("CIDv0 form rejected: %v", err)
	}

	err = ValidateContentKey("not-a-cid")
	if err == nil {
		t.Fatal("expected error for invalid content key")
	}
	if RuleID(err) != "CC-TOK-020" {
		t.Errorf("rule id = %q, want CC-TOK-020", RuleID(err))
	}
}
