// Package lesson holds the checkpoint definitions for the connectivity
// workshop lessons, plus the CKDF text format for loading external
// definitions. Built-in definitions are static configuration; Lookup
// returns them by name.
package lesson

import (
	"fmt"
	"sort"

	"uclab.dev/conncheck/checkpoint"
	"uclab.dev/conncheck/token"
	"uclab.dev/conncheck/trace"
)

func directAddr() *token.AddrConstraints { return &token.AddrConstraints{} }

func tcpP2PAddr() *token.AddrConstraints {
	return &token.AddrConstraints{RequireAnyTransport: []string{"tcp"}, RequireEmbeddedPeerID: true}
}

func circuitAddr() *token.AddrConstraints {
	return &token.AddrConstraints{RequireCircuit: true, RequireEmbeddedPeerID: true}
}

func quicAddr() *token.AddrConstraints {
	return &token.AddrConstraints{RequireAnyTransport: []string{"quic-v1"}}
}

var builtins = []checkpoint.Definition{
	{
		Name:  "01-identity-and-swarm",
		Title: "Identity and basic host",
		Rules: []checkpoint.Rule{
			{ID: "CC-L01-R1", Kind: trace.StartupAnnounced, Describe: "application announces startup"},
			{ID: "CC-L01-R2", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L01-R3", Kind: trace.Listening, Describe: "node listens on a direct multiaddr",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: directAddr()}}},
		},
	},
	{
		Name:  "02-tcp-transport",
		Title: "TCP transport",
		Rules: []checkpoint.Rule{
			{ID: "CC-L02-R1", Kind: trace.StartupAnnounced, Describe: "application announces startup", Optional: true},
			{ID: "CC-L02-R2", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L02-R3", Kind: trace.Listening, Describe: "node listens on a TCP multiaddr carrying its peer id",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: tcpP2PAddr()}}},
		},
	},
	{
		Name:  "03-ping-checkpoint",
		Title: "Ping checkpoint",
		Rules: []checkpoint.Rule{
			{ID: "CC-L03-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}}},
			{ID: "CC-L03-R2", Kind: trace.Connected, Describe: "connection opened to a remote peer",
				Where: []checkpoint.FieldCheck{
					{Field: "peer", PeerID: true, IfPresent: true},
					{Field: "addr", Addr: directAddr(), IfPresent: true},
					{Field: "local_addr", Addr: directAddr(), IfPresent: true},
				},
				Bind: map[string]string{"remote_peer": "peer"}},
			{ID: "CC-L03-R3", Kind: trace.PingMeasured, Describe: "ping round-trip time reported",
				Where: []checkpoint.FieldCheck{
					{Field: "rtt_ms", Present: true},
					{Field: "peer", Ref: "remote_peer", IfPresent: true},
				}},
			{ID: "CC-L03-R4", Kind: trace.Disconnected, Describe: "peer disconnect names the connected peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", Ref: "remote_peer"}}},
			{ID: "CC-L03-R5", Kind: trace.ConnectionClosed, Describe: "connection close names the connected peer",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}, {Field: "peer", Ref: "remote_peer"}}},
		},
	},
	{
		Name:  "04-circuit-relay",
		Title: "Circuit relay v2",
		Rules: []checkpoint.Rule{
			{ID: "CC-L04-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L04-R2", Kind: trace.Listening, Describe: "node listens on a direct (non-circuit) multiaddr",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: directAddr()}}},
			{ID: "CC-L04-R3", Kind: trace.Connected, Describe: "node connects to the relay",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true, IfPresent: true}},
				Bind:  map[string]string{"relay_peer": "peer"}},
			{ID: "CC-L04-R4", Kind: trace.RelayReserved, Describe: "relay reservation accepted", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "relay", Ref: "relay_peer", IfPresent: true}}},
			{ID: "CC-L04-R5", Kind: trace.CircuitAddrAdvertised, Describe: "node advertises a relayed circuit address",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: circuitAddr()}}},
		},
	},
	{
		Name:  "04-quic-transport",
		Title: "QUIC transport",
		Rules: []checkpoint.Rule{
			{ID: "CC-L04Q-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L04Q-R2", Kind: trace.Listening, Describe: "node listens on a QUIC multiaddr",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: quicAddr()}}},
			{ID: "CC-L04Q-R3", Kind: trace.Connected, Describe: "connection established over QUIC", Optional: true,
				Where: []checkpoint.FieldCheck{
					{Field: "peer", PeerID: true, IfPresent: true},
					{Field: "addr", Addr: quicAddr(), IfPresent: true},
				}},
			{ID: "CC-L04Q-R4", Kind: trace.PingMeasured, Describe: "ping round-trip measured", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "rtt_ms", Present: true}}},
			{ID: "CC-L04Q-R5", Kind: trace.ConnectionClosed, Describe: "connection close names a valid peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}}},
		},
	},
	{
		Name:  "05-identify-checkpoint",
		Title: "Identify checkpoint",
		Rules: []checkpoint.Rule{
			{ID: "CC-L05-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L05-R2", Kind: trace.DialAttempted, Describe: "node dials the remote multiaddr", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: directAddr(), IfPresent: true}}},
			{ID: "CC-L05-R3", Kind: trace.Connected, Describe: "connection established with remote peer",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true, IfPresent: true}},
				Bind:  map[string]string{"remote_peer": "peer"}},
			{ID: "CC-L05-R4", Kind: trace.PingMeasured, Describe: "ping round-trip measured", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", Ref: "remote_peer", IfPresent: true}}},
			{ID: "CC-L05-R5", Kind: trace.Identified, Describe: "identify exchange names the connected peer",
				Where: []checkpoint.FieldCheck{
					{Field: "peer", PeerID: true},
					{Field: "peer", Ref: "remote_peer", IfPresent: true},
				}},
			{ID: "CC-L05-R6", Kind: trace.ConnectionClosed, Describe: "connection close names the connected peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", Ref: "remote_peer"}}},
		},
	},
	{
		Name:  "06-gossipsub-checkpoint",
		Title: "GossipSub pub/sub",
		Rules: []checkpoint.Rule{
			{ID: "CC-L06-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L06-R2", Kind: trace.Listening, Describe: "node listens on a TCP multiaddr carrying its peer id",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: tcpP2PAddr()}}},
			{ID: "CC-L06-R3", Kind: trace.TopicSubscribed, Describe: "node subscribes to the chat topic",
				Where: []checkpoint.FieldCheck{{Field: "topic", OneOf: []string{"universal-connectivity", "gossipsub-chat"}}}},
			{ID: "CC-L06-R4", Kind: trace.Connected, Describe: "node connects to a remote peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: tcpP2PAddr(), IfPresent: true}}},
			{ID: "CC-L06-R5", Kind: trace.MessagePublished, Describe: "node publishes a message", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "payload", Present: true}}},
			{ID: "CC-L06-R6", Kind: trace.MessageReceived, Describe: "node receives a message from a valid peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "from_peer", PeerID: true, IfPresent: true}}},
		},
	},
	{
		Name:  "07-kademlia-checkpoint",
		Title: "Kademlia DHT checkpoint",
		Rules: []checkpoint.Rule{
			{ID: "CC-L07-R1", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L07-R2", Kind: trace.Listening, Describe: "node listens on a multiaddr", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: directAddr()}}},
			{ID: "CC-L07-R3", Kind: trace.Connected, Describe: "node connects to the bootstrap node", Optional: true},
			{ID: "CC-L07-R4", Kind: trace.DhtValueStored, Describe: "value stored in the DHT",
				Where: []checkpoint.FieldCheck{{Field: "key", Present: true}},
				Bind:  map[string]string{"dht_key": "key", "dht_value": "value"}},
			{ID: "CC-L07-R5", Kind: trace.DhtValueRetrieved, Describe: "stored value retrieved under the same key",
				Where: []checkpoint.FieldCheck{
					{Field: "key", Ref: "dht_key"},
					{Field: "value", Ref: "dht_value", IfPresent: true},
				}},
			{ID: "CC-L07-R6", Kind: trace.ProviderAnnounced, Describe: "node announces itself as content provider", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "content_key", ContentKey: true, IfPresent: true}}},
			{ID: "CC-L07-R7", Kind: trace.ProviderFound, Describe: "content providers located via the DHT", Optional: true},
		},
	},
	{
		Name:  "08-final-checkpoint",
		Title: "Final checkpoint",
		Rules: []checkpoint.Rule{
			{ID: "CC-L08-R1", Kind: trace.StartupAnnounced, Describe: "application announces startup"},
			{ID: "CC-L08-R2", Kind: trace.IdentityGenerated, Describe: "node prints a valid local peer id",
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true}},
				Bind:  map[string]string{"local_peer": "peer"}},
			{ID: "CC-L08-R3", Kind: trace.Listening, Describe: "node listens on a direct multiaddr",
				Where: []checkpoint.FieldCheck{{Field: "addr", Addr: directAddr()}}},
			{ID: "CC-L08-R4", Kind: trace.TopicSubscribed, Describe: "node joins the universal-connectivity topic",
				Where: []checkpoint.FieldCheck{{Field: "topic", Equals: "universal-connectivity"}}},
			{ID: "CC-L08-R5", Kind: trace.Connected, Describe: "node connects to a remote peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", PeerID: true, IfPresent: true}},
				Bind:  map[string]string{"remote_peer": "peer"}},
			{ID: "CC-L08-R6", Kind: trace.PingMeasured, Describe: "ping round-trip measured", Optional: true},
			{ID: "CC-L08-R7", Kind: trace.Identified, Describe: "identify exchange with the connected peer", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "peer", Ref: "remote_peer", IfPresent: true}}},
			{ID: "CC-L08-R8", Kind: trace.MessagePublished, Describe: "node publishes a chat message", Optional: true},
			{ID: "CC-L08-R9", Kind: trace.MessageReceived, Describe: "node receives a chat message", Optional: true,
				Where: []checkpoint.FieldCheck{{Field: "from_peer", PeerID: true, IfPresent: true}}},
		},
	},
}

// Lookup returns the built-in definition with the given name.
func Lookup(name string) (checkpoint.Definition, error) {
	for _, d := range builtins {
		if d.Name == name {
			return d, nil
		}
	}
	return checkpoint.Definition{}, fmt.Errorf("lesson: unknown definition %q", name)
}

// Names returns the built-in definition names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for _, d := range builtins {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}
