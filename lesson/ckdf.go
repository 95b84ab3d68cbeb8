package lesson

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"uclab.dev/conncheck/checkpoint"
	"uclab.dev/conncheck/token"
	"uclab.dev/conncheck/trace"
)

// CKDF (ConnCheck Definition Format) is the line-oriented text format
// for external checkpoint definitions, so divergent lesson variants can
// ship as versioned configuration instead of code.
//
// Layout:
//
//	-----BEGIN CONNCHECK DEFINITION-----
//	META
//	Name: 03-ping-custom
//	Title: Ping checkpoint (js variant)
//	RULES
//	Require:
//	  ID: R1
//	  Kind: Connected
//	  Describe: connection opened
//	  Bind: remote_peer=peer
//	  Where: peer is-peer-id if-present
//	Optional:
//	  ID: R2
//	  Kind: Disconnected
//	  Where: peer ref remote_peer
//	-----END CONNCHECK DEFINITION-----
//
// Where constraints: present, equals <v>, one-of a|b, ref <var>,
// is-peer-id, is-multiaddr [circuit] [p2p] [tcp|udp|quic-v1|ws],
// is-content-key. The trailing modifier if-present applies the
// constraint only when the field exists in the matched event.

const (
	ckdfPreamble  = "-----BEGIN CONNCHECK DEFINITION-----"
	ckdfPostamble = "-----END CONNCHECK DEFINITION-----"
)

// ParseCKDF parses a checkpoint definition from canonical CKDF bytes.
// Non-canonical inputs (BOM, CR line endings, trailing whitespace) are
// rejected.
func ParseCKDF(data []byte) (checkpoint.Definition, error) {
	var def checkpoint.Definition

	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return def, errors.New("ckdf: BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return def, errors.New("ckdf: CR line endings not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return def, errors.New("ckdf: trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(ckdfPreamble)) {
		return def, errors.New("ckdf: missing preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(ckdfPostamble)) {
		return def, errors.New("ckdf: missing postamble")
	}

	rawLines := strings.Split(string(data), "\n")
	lines := make([]string, len(rawLines))
	for i, l := range rawLines {
		lines[i] = strings.TrimSpace(l)
	}

	sections := map[string]bool{"META": true, "RULES": true}
	var currSection string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if sections[line] {
			currSection = line
			continue
		}
		if currSection == "META" {
			if v, ok := strings.CutPrefix(line, "Name: "); ok {
				def.Name = v
			}
			if v, ok := strings.CutPrefix(line, "Title: "); ok {
				def.Title = v
			}
		}
		if currSection == "RULES" && (line == "Require:" || line == "Optional:") {
			rule, next, rerr := parseRuleBlock(lines, i+1, line == "Optional:")
			if rerr != nil {
				return def, rerr
			}
			def.Rules = append(def.Rules, rule)
			i = next - 1
		}
	}

	if def.Name == "" {
		return def, errors.New("ckdf: META missing Name")
	}
	if len(def.Rules) == 0 {
		return def, errors.New("ckdf: no rules declared")
	}
	return def, nil
}

// parseRuleBlock parses rule fields starting at lines[start] and
// returns the index of the first line after the block, so the caller
// resumes at the header or postamble that ended it.
func parseRuleBlock(lines []string, start int, optional bool) (checkpoint.Rule, int, error) {
	rule := checkpoint.Rule{Optional: optional}
	i := start
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" || line == "Require:" || line == "Optional:" || line == ckdfPostamble {
			break
		}
		switch {
		case strings.HasPrefix(line, "ID: "):
			rule.ID = strings.TrimPrefix(line, "ID: ")
		case strings.HasPrefix(line, "Kind: "):
			rule.Kind = trace.Kind(strings.TrimPrefix(line, "Kind: "))
		case strings.HasPrefix(line, "Describe: "):
			rule.Describe = strings.TrimPrefix(line, "Describe: ")
		case strings.HasPrefix(line, "Bind: "):
			name, field, ok := strings.Cut(strings.TrimPrefix(line, "Bind: "), "=")
			if !ok {
				return rule, i, fmt.Errorf("ckdf: invalid Bind %q", line)
			}
			if rule.Bind == nil {
				rule.Bind = map[string]string{}
			}
			rule.Bind[name] = field
		case strings.HasPrefix(line, "Where: "):
			fc, werr := parseWhere(strings.TrimPrefix(line, "Where: "))
			if werr != nil {
				return rule, i, werr
			}
			rule.Where = append(rule.Where, fc)
		default:
			return rule, i, fmt.Errorf("ckdf: unexpected line in rule block: %q", line)
		}
	}
	if rule.Kind == "" {
		return rule, i, errors.New("ckdf: rule block missing Kind")
	}
	if rule.ID == "" {
		return rule, i, errors.New("ckdf: rule block missing ID")
	}
	return rule, i, nil
}

func parseWhere(s string) (checkpoint.FieldCheck, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return checkpoint.FieldCheck{}, fmt.Errorf("ckdf: invalid Where %q", s)
	}
	fc := checkpoint.FieldCheck{Field: parts[0]}
	args := parts[1:]
	if args[len(args)-1] == "if-present" {
		fc.IfPresent = true
		args = args[:len(args)-1]
	}
	if len(args) == 0 {
		return fc, fmt.Errorf("ckdf: Where %q has no constraint", s)
	}
	switch args[0] {
	case "present":
		fc.Present = true
	case "equals":
		if len(args) != 2 {
			return fc, fmt.Errorf("ckdf: equals needs one value in %q", s)
		}
		fc.Equals = args[1]
	case "one-of":
		if len(args) != 2 {
			return fc, fmt.Errorf("ckdf: one-of needs a|b list in %q", s)
		}
		fc.OneOf = strings.Split(args[1], "|")
	case "ref":
		if len(args) != 2 {
			return fc, fmt.Errorf("ckdf: ref needs a variable in %q", s)
		}
		fc.Ref = args[1]
	case "is-peer-id":
		fc.PeerID = true
	case "is-content-key":
		fc.ContentKey = true
	case "is-multiaddr":
		c := &token.AddrConstraints{}
		for _, a := range args[1:] {
			switch a {
			case "circuit":
				c.RequireCircuit = true
			case "p2p":
				c.RequireEmbeddedPeerID = true
			case "tcp", "udp", "quic-v1", "ws":
				c.RequireAnyTransport = append(c.RequireAnyTransport, a)
			default:
				return fc, fmt.Errorf("ckdf: unknown multiaddr flag %q in %q", a, s)
			}
		}
		fc.Addr = c
	default:
		return fc, fmt.Errorf("ckdf: unknown constraint %q in %q", args[0], s)
	}
	return fc, nil
}
