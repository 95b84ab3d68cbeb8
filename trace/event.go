// Package trace parses a raw text trace captured from a node under test
// into an ordered sequence of typed events. Extraction is table-driven
// and noise-tolerant: unmatched lines are skipped, decorative glyphs are
// ignored, and event order is trace position, not wall clock.
package trace

// Kind tags an event variant.
type Kind string

const (
	StartupAnnounced      Kind = "StartupAnnounced"
	IdentityGenerated     Kind = "IdentityGenerated"
	Listening             Kind = "Listening"
	DialAttempted         Kind = "DialAttempted"
	Connected             Kind = "Connected"
	PingMeasured          Kind = "PingMeasured"
	Identified            Kind = "Identified"
	TopicSubscribed       Kind = "TopicSubscribed"
	MessagePublished      Kind = "MessagePublished"
	MessageReceived       Kind = "MessageReceived"
	DhtValueStored        Kind = "DhtValueStored"
	DhtValueRetrieved     Kind = "DhtValueRetrieved"
	ProviderAnnounced     Kind = "ProviderAnnounced"
	ProviderFound         Kind = "ProviderFound"
	RelayReserved         Kind = "RelayReserved"
	CircuitAddrAdvertised Kind = "CircuitAddrAdvertised"
	Disconnected          Kind = "Disconnected"
	ConnectionClosed      Kind = "ConnectionClosed"
	ErrorReported         Kind = "ErrorReported"
)

// Event is a typed fact extracted from one trace line (or one multi-line
// block). Fields carries the captured payload under stable names:
//
//	peer, from_peer, addr, local_addr, rtt_ms, protocol_version, agent,
//	protocol_count, topic, payload, key, value, content_key, providers,
//	relay, detail
//
// Payload tokens are carried raw; semantic validation (peer id, multiaddr,
// content key) happens at rule-evaluation time so a malformed token fails
// the rule that references it, not the extraction.
type Event struct {
	Kind Kind

	// Line is the 1-based number of the first physical line the event
	// was matched on. Events are ordered by trace position.
	Line int

	Fields map[string]string
}

// Field returns the named payload field, or "" when absent.
func (e Event) Field(name string) string {
	if e.Fields == nil {
		return ""
	}
	return e.Fields[name]
}
