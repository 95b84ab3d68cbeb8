package trace

import (
	"errors"
	"reflect"
	"testing"
)

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestExtract_EmptyTrace(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n\t\n"} {
		_, err := Extract(raw)
		if !errors.Is(err, ErrEmptyTrace) {
			t.Errorf("Extract(%q): err = %v, want ErrEmptyTrace", raw, err)
		}
	}
}

func TestExtract_HumanReadable(t *testing.T) {
	raw := `Starting Universal Connectivity Application
Local peer id: 12D3KooWPeerA
noise line that matches nothing
Listening on: /ip4/127.0.0.1/tcp/4001
Connected to: 12D3KooWPeerB via /ip4/10.0.0.2/tcp/4001
Received a ping from 12D3KooWPeerB, round trip time: 23 ms
Connection closed: 12D3KooWPeerB
`
	events, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []Kind{StartupAnnounced, IdentityGenerated, Listening, Connected, PingMeasured, ConnectionClosed}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Fatalf("kinds = %v, want %v", kinds(events), want)
	}

	if got := events[1].Field("peer"); got != "12D3KooWPeerA" {
		t.Errorf("identity peer = %q", got)
	}
	if got := events[2].Field("addr"); got != "/ip4/127.0.0.1/tcp/4001" {
		t.Errorf("listen addr = %q", got)
	}
	if events[3].Field("peer") != "12D3KooWPeerB" || events[3].Field("addr") != "/ip4/10.0.0.2/tcp/4001" {
		t.Errorf("connected fields = %v", events[3].Fields)
	}
	if got := events[4].Field("rtt_ms"); got != "23" {
		t.Errorf("rtt_ms = %q", got)
	}
	if events[1].Line != 2 {
		t.Errorf("identity line = %d, want 2", events[1].Line)
	}
}

func TestExtract_MachineFormats(t *testing.T) {
	raw := `connected,12D3KooWPeerB,/ip4/10.0.0.2/tcp/4001
ping,12D3KooWPeerB,42 ms
identify,12D3KooWPeerB,rust-libp2p/0.53
subscribe,12D3KooWPeerA,universal-connectivity
msg,12D3KooWPeerB,universal-connectivity,hello there
dht-put,my-key,my-value
dht-get,my-key,my-value
closed,12D3KooWPeerB
error,dial backoff
`
	events, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []Kind{Connected, PingMeasured, Identified, TopicSubscribed, MessageReceived,
		DhtValueStored, DhtValueRetrieved, ConnectionClosed, ErrorReported}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Fatalf("kinds = %v, want %v", kinds(events), want)
	}
	if events[2].Field("peer") != "12D3KooWPeerB" || events[2].Field("agent") != "rust-libp2p/0.53" {
		t.Errorf("identify fields = %v", events[2].Fields)
	}
	if events[4].Field("payload") != "hello there" {
		t.Errorf("msg payload = %q", events[4].Field("payload"))
	}
	if events[5].Field("key") != "my-key" || events[5].Field("value") != "my-value" {
		t.Errorf("dht-put fields = %v", events[5].Fields)
	}
}

// The incoming format lists the local listen address before the remote
// send-back address.
func TestExtract_IncomingFieldOrder(t *testing.T) {
	events, err := Extract("incoming,/ip4/0.0.0.0/tcp/4001,/ip4/10.0.0.2/tcp/55555\n")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(events) != 1 || events[0].Kind != DialAttempted {
		t.Fatalf("events = %v", events)
	}
	if got := events[0].Field("local_addr"); got != "/ip4/0.0.0.0/tcp/4001" {
		t.Errorf("local_addr = %q", got)
	}
	if got := events[0].Field("addr"); got != "/ip4/10.0.0.2/tcp/55555" {
		t.Errorf("addr = %q", got)
	}
}

func TestExtract_ConnectionBlock(t *testing.T) {
	raw := `Connection opened:
  Remote peer: 12D3KooWPeerB
  Local addr: /ip4/0.0.0.0/tcp/4001
  Remote addr: /ip4/10.0.0.2/tcp/4001
  Ping RTT: 17 ms
Listening on: /ip4/127.0.0.1/tcp/4001
`
	events, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []Kind{Connected, PingMeasured, Listening}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Fatalf("kinds = %v, want %v", kinds(events), want)
	}
	conn := events[0]
	if conn.Field("peer") != "12D3KooWPeerB" {
		t.Errorf("peer = %q", conn.Field("peer"))
	}
	if conn.Field("addr") != "/ip4/10.0.0.2/tcp/4001" {
		t.Errorf("addr = %q", conn.Field("addr"))
	}
	if conn.Field("local_addr") != "/ip4/0.0.0.0/tcp/4001" {
		t.Errorf("local_addr = %q", conn.Field("local_addr"))
	}
	ping := events[1]
	if ping.Field("rtt_ms") != "17" || ping.Field("peer") != "12D3KooWPeerB" {
		t.Errorf("ping fields = %v", ping.Fields)
	}
}

func TestExtract_IdentifyBlock(t *testing.T) {
	raw := `Identified peer: 12D3KooWPeerB with protocol version: /ipfs/id/1.0.0
  Peer agent: go-libp2p/0.33
  Peer supports 12 protocols
Connection closed: 12D3KooWPeerB
`
	events, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(events) != 2 || events[0].Kind != Identified {
		t.Fatalf("events = %v", events)
	}
	ev := events[0]
	if ev.Field("peer") != "12D3KooWPeerB" {
		t.Errorf("peer = %q", ev.Field("peer"))
	}
	if ev.Field("protocol_version") != "/ipfs/id/1.0.0" {
		t.Errorf("protocol_version = %q", ev.Field("protocol_version"))
	}
	if ev.Field("agent") != "go-libp2p/0.33" {
		t.Errorf("agent = %q", ev.Field("agent"))
	}
	if ev.Field("protocol_count") != "12" {
		t.Errorf("protocol_count = %q", ev.Field("protocol_count"))
	}
}

func TestExtract_ListeningBlock(t *testing.T) {
	raw := `Listening on:
/ip4/127.0.0.1/tcp/4001
/ip4/192.168.1.5/udp/4001/quic-v1
Local peer id: 12D3KooWPeerA
`
	events, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []Kind{Listening, Listening, IdentityGenerated}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Fatalf("kinds = %v, want %v", kinds(events), want)
	}
	if events[0].Field("addr") != "/ip4/127.0.0.1/tcp/4001" {
		t.Errorf("first addr = %q", events[0].Field("addr"))
	}
	if events[1].Field("addr") != "/ip4/192.168.1.5/udp/4001/quic-v1" {
		t.Errorf("second addr = %q", events[1].Field("addr"))
	}
	if events[1].Line != 3 {
		t.Errorf("second addr line = %d, want 3", events[1].Line)
	}
}

// Decorative status glyphs must never change what a line means.
func TestExtract_StripsDecorativeGlyphs(t *testing.T) {
	plain := "Local peer id: 12D3KooWPeerA\nListening on: /ip4/127.0.0.1/tcp/4001\n"
	decorated := "✅ Local peer id: 12D3KooWPeerA\n🎉 Listening on: /ip4/127.0.0.1/tcp/4001\n"

	a, err := Extract(plain)
	if err != nil {
		t.Fatalf("Extract plain: %v", err)
	}
	b, err := Extract(decorated)
	if err != nil {
		t.Fatalf("Extract decorated: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("decorated trace extracted differently:\n%v\nvs\n%v", a, b)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	raw := `Starting Universal Connectivity Application
Local peer id: 12D3KooWPeerA
connected,12D3KooWPeerB,/ip4/10.0.0.2/tcp/4001
garbage in between
ping,12D3KooWPeerB,9 ms
`
	first, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two extractions of the same trace differ")
	}
}
