package trace

import (
	"errors"
	"strings"
)

// ErrEmptyTrace is returned when the input contains no text at all.
// Malformed lines are never an error; they are skipped.
var ErrEmptyTrace = errors.New("trace: empty trace")

// Extract parses raw into the ordered event sequence. It is a pure
// function of its input: extracting the same text twice yields an
// identical sequence. Lines matching no pattern are dropped silently.
func Extract(raw string) ([]Event, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyTrace
	}

	lines := strings.Split(raw, "\n")
	norm := make([]string, len(lines))
	for i, l := range lines {
		norm[i] = normalizeLine(l)
	}

	var events []Event
	for i := 0; i < len(norm); i++ {
		line := norm[i]
		if line == "" {
			continue
		}

		if reConnOpened.MatchString(line) {
			evs, next := extractConnBlock(norm, i)
			events = append(events, evs...)
			i = next
			continue
		}
		if m := reIdentHeader.FindStringSubmatch(line); m != nil {
			ev, next := extractIdentBlock(norm, i, m)
			events = append(events, ev)
			i = next
			continue
		}
		if reListenHeader.MatchString(line) {
			evs, next := extractListenBlock(norm, i)
			events = append(events, evs...)
			i = next
			continue
		}

		if kind, fields, ok := matchLine(line); ok {
			events = append(events, Event{Kind: kind, Line: i + 1, Fields: fields})
		}
	}
	return events, nil
}

// extractConnBlock consumes a "Connection opened:" record starting at
// start. It yields a Connected event and, when the block carries a
// "Ping RTT" sub-field, a PingMeasured event referencing the same peer.
// Returns the index of the last consumed line.
func extractConnBlock(lines []string, start int) ([]Event, int) {
	fields := map[string]string{}
	last := start
	for j := start + 1; j < len(lines); j++ {
		l := lines[j]
		if l == "" {
			continue
		}
		switch {
		case fields["peer"] == "" && reBlockPeer.MatchString(l):
			fields["peer"] = reBlockPeer.FindStringSubmatch(l)[1]
		case fields["local_addr"] == "" && reBlockLocal.MatchString(l):
			fields["local_addr"] = reBlockLocal.FindStringSubmatch(l)[1]
		case fields["addr"] == "" && reBlockRemote.MatchString(l):
			fields["addr"] = reBlockRemote.FindStringSubmatch(l)[1]
		case fields["rtt_ms"] == "" && reBlockRTT.MatchString(l):
			fields["rtt_ms"] = reBlockRTT.FindStringSubmatch(l)[1]
		default:
			// First non-blank line that is not a sub-field ends the
			// record; it may belong to a different event.
			return connBlockEvents(fields, start), last
		}
		last = j
	}
	return connBlockEvents(fields, start), last
}

func connBlockEvents(fields map[string]string, start int) []Event {
	conn := Event{Kind: Connected, Line: start + 1, Fields: map[string]string{}}
	for _, k := range []string{"peer", "addr", "local_addr"} {
		if v := fields[k]; v != "" {
			conn.Fields[k] = v
		}
	}
	events := []Event{conn}
	if rtt := fields["rtt_ms"]; rtt != "" {
		ping := Event{Kind: PingMeasured, Line: start + 1, Fields: map[string]string{"rtt_ms": rtt}}
		if p := fields["peer"]; p != "" {
			ping.Fields["peer"] = p
		}
		events = append(events, ping)
	}
	return events
}

// extractIdentBlock consumes an "Identified peer:" record plus its
// optional "Peer agent" / "Peer supports N protocols" follow-up lines.
func extractIdentBlock(lines []string, start int, header []string) (Event, int) {
	fields := map[string]string{"peer": header[1]}
	if header[2] != "" {
		fields["protocol_version"] = header[2]
	}
	last := start
	for j := start + 1; j < len(lines); j++ {
		l := lines[j]
		if l == "" {
			continue
		}
		switch {
		case fields["agent"] == "" && reIdentAgent.MatchString(l):
			fields["agent"] = strings.TrimSpace(reIdentAgent.FindStringSubmatch(l)[1])
		case fields["protocol_count"] == "" && reIdentProtos.MatchString(l):
			fields["protocol_count"] = reIdentProtos.FindStringSubmatch(l)[1]
		default:
			return Event{Kind: Identified, Line: start + 1, Fields: fields}, last
		}
		last = j
	}
	return Event{Kind: Identified, Line: start + 1, Fields: fields}, last
}

// extractListenBlock handles the bare "Listening on:" header followed by
// one multiaddr per line, emitting one Listening event per address.
func extractListenBlock(lines []string, start int) ([]Event, int) {
	var events []Event
	last := start
	for j := start + 1; j < len(lines); j++ {
		l := lines[j]
		if l == "" {
			if len(events) > 0 {
				break
			}
			continue
		}
		m := reListenAddr.FindStringSubmatch(l)
		if m == nil {
			break
		}
		events = append(events, Event{Kind: Listening, Line: j + 1, Fields: map[string]string{"addr": m[1]}})
		last = j
	}
	return events, last
}

// normalizeLine strips decorative status glyphs (check marks, trophies,
// emoji, variation selectors) so they are never structural, then trims
// surrounding whitespace.
func normalizeLine(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isDecorative(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func isDecorative(r rune) bool {
	switch {
	case r >= 0x2100 && r <= 0x2BFF: // letterlike, arrows, dingbats, misc symbols (incl. U+2705, U+274C)
		return true
	case r >= 0x1F000 && r <= 0x1FAFF: // emoji blocks
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r == 0x2022: // bullet
		return true
	}
	return false
}
