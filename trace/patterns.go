package trace

import "regexp"

// linePattern maps a compiled pattern to an event kind. fields names the
// capture groups in order; "" drops a group. Patterns are tried in table
// order per line and the first match wins, so more specific entries must
// precede looser ones.
type linePattern struct {
	kind   Kind
	re     *regexp.Regexp
	fields []string
}

// The machine-readable comma formats come first: they are fully anchored
// and would otherwise be shadowed by the looser human-readable patterns.
var linePatterns = []linePattern{
	{Connected, regexp.MustCompile(`^connected,([^,\s]+),([^,\s]+)$`), []string{"peer", "addr"}},
	{PingMeasured, regexp.MustCompile(`^ping,([^,\s]+),(\d+) ms$`), []string{"peer", "rtt_ms"}},
	{Identified, regexp.MustCompile(`^identify,([^,\s]+),(.+)$`), []string{"peer", "agent"}},
	{ConnectionClosed, regexp.MustCompile(`^closed,([^,\s]+)$`), []string{"peer"}},
	// incoming carries the local listen address first, then the remote
	// send-back address.
	{DialAttempted, regexp.MustCompile(`^incoming,([^,\s]+),([^,\s]+)$`), []string{"local_addr", "addr"}},
	{TopicSubscribed, regexp.MustCompile(`^subscribe,([^,\s]+),([^,\s]+)$`), []string{"peer", "topic"}},
	{MessageReceived, regexp.MustCompile(`^msg,([^,]+),([^,]+),(.*)$`), []string{"from_peer", "topic", "payload"}},
	{DhtValueStored, regexp.MustCompile(`^dht-put,([^,]+),([^,\n]+)$`), []string{"key", "value"}},
	{DhtValueRetrieved, regexp.MustCompile(`^dht-get,([^,]+),([^,\n]+)$`), []string{"key", "value"}},
	{ErrorReported, regexp.MustCompile(`^error,(.+)$`), []string{"detail"}},

	{StartupAnnounced, regexp.MustCompile(`Starting Universal Connectivity (?:Application|Checker)`), nil},
	{IdentityGenerated, regexp.MustCompile(`Local peer id:\s*(\S+)`), []string{"peer"}},
	{IdentityGenerated, regexp.MustCompile(`Node started with (?:Peer ID|id):?\s*(\S+)`), []string{"peer"}},
	{IdentityGenerated, regexp.MustCompile(`\[\w+\] (?:Started with|Generated) Peer ID:\s*(\S+)`), []string{"peer"}},
	{IdentityGenerated, regexp.MustCompile(`Host started with PeerId:\s*(\S+)`), []string{"peer"}},

	{CircuitAddrAdvertised, regexp.MustCompile(`Advertising with a relay address of (\S+)`), []string{"addr"}},
	{RelayReserved, regexp.MustCompile(`Relay reservation (?:accepted|granted)(?: from (\S+))?`), []string{"relay"}},
	{Connected, regexp.MustCompile(`Connected to the relay (\S+)`), []string{"peer"}},
	{Connected, regexp.MustCompile(`Connected to the listener node via (\S+)`), []string{"addr"}},
	{Connected, regexp.MustCompile(`Connected to:\s*(\S+) via (\S+)`), []string{"peer", "addr"}},
	{Connected, regexp.MustCompile(`Connected to remote peer:\s*(\S+)`), []string{"addr"}},
	{Connected, regexp.MustCompile(`Successfully connected to bootstrap node`), nil},

	{Listening, regexp.MustCompile(`Listening on:?\s*(/\S+)`), []string{"addr"}},
	{DialAttempted, regexp.MustCompile(`Dialing:?\s+(\S+)`), []string{"addr"}},

	{PingMeasured, regexp.MustCompile(`Received a ping from (\S+), round trip time: (\d+) ms`), []string{"peer", "rtt_ms"}},
	{PingMeasured, regexp.MustCompile(`Ping RTT\s*:?\s*(\d+)\s*ms`), []string{"rtt_ms"}},

	{Identified, regexp.MustCompile(`Remote PeerId:\s*(\S+)`), []string{"peer"}},

	{TopicSubscribed, regexp.MustCompile(`Subscribed to topic:?\s*['"]?([\w./-]+)`), []string{"topic"}},
	{MessagePublished, regexp.MustCompile(`Published message:\s*"([^"]*)"(?:\s+to topic:?\s*['"]?([\w./-]+))?`), []string{"payload", "topic"}},
	{MessageReceived, regexp.MustCompile(`(?:MESSAGE RECEIVED|Received message) from (\S+?)[:,]?\s[^"]*"([^"]*)"`), []string{"from_peer", "payload"}},

	{DhtValueStored, regexp.MustCompile(`Stored value '([^']*)' with key:\s*(\S+)`), []string{"value", "key"}},
	{DhtValueRetrieved, regexp.MustCompile(`Retrieved value '([^']*)' with key:\s*(\S+)`), []string{"value", "key"}},
	{ProviderAnnounced, regexp.MustCompile(`Content CID:\s*(\S+)`), []string{"content_key"}},
	{ProviderAnnounced, regexp.MustCompile(`Announcing as content provider(?:.*?(?:CID|key):?\s*(\S+))?`), []string{"content_key"}},
	{ProviderFound, regexp.MustCompile(`Found (?:\d+\s+)?providers?:?\s*(.*)$`), []string{"providers"}},

	{Disconnected, regexp.MustCompile(`Peer disconnected:\s*(\S+)`), []string{"peer"}},
	{ConnectionClosed, regexp.MustCompile(`Connection closed:\s*(\S+)`), []string{"peer"}},
	{ConnectionClosed, regexp.MustCompile(`Connection to (\S+) closed`), []string{"peer"}},

	{ErrorReported, regexp.MustCompile(`^(?:Error|ERROR):?\s+(.+)`), []string{"detail"}},
}

// Block patterns span several physical lines: a header line followed by
// indented sub-field lines. Blank lines inside a block are tolerated;
// the first non-blank line that is not a sub-field ends the block.
var (
	reConnOpened  = regexp.MustCompile(`Connection opened:`)
	reBlockPeer   = regexp.MustCompile(`Remote\s+peer\s*:\s*(\S+)`)
	reBlockLocal  = regexp.MustCompile(`Local\s+addr\s*:\s*(\S+)`)
	reBlockRemote = regexp.MustCompile(`Remote\s+addr\s*:\s*(\S+)`)
	reBlockRTT    = regexp.MustCompile(`Ping\s+RTT\s*:\s*(\d+)\s*ms`)

	reIdentHeader = regexp.MustCompile(`Identified peer:\s*(\S+)(?: with protocol version:\s*(\S+))?`)
	reIdentAgent  = regexp.MustCompile(`Peer agent:\s*(.+)$`)
	reIdentProtos = regexp.MustCompile(`Peer supports (\d+) protocols`)

	// Bare "Listening on:" header with one multiaddr per following line.
	reListenHeader = regexp.MustCompile(`Listening on:\s*$`)
	reListenAddr   = regexp.MustCompile(`^(/\S+)\s*$`)
)

func matchLine(line string) (Kind, map[string]string, bool) {
	for _, p := range linePatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields := make(map[string]string, len(p.fields))
		for i, name := range p.fields {
			if name == "" || i+1 >= len(m) {
				continue
			}
			if m[i+1] != "" {
				fields[name] = m[i+1]
			}
		}
		return p.kind, fields, true
	}
	return "", nil, false
}
