package checkpoint

import (
	"fmt"

	"uclab.dev/conncheck/token"
	"uclab.dev/conncheck/trace"
)

// Evaluate drives the expected-sequence automaton over events.
//
// Rules are evaluated in declared order against a forward-only scan
// cursor that never rewinds: each rule takes the earliest event at or
// after the cursor whose kind matches (earliest-wins, not best-match).
// A matched candidate advances the cursor past itself even when its
// payload checks fail; a rule with no candidate leaves the cursor in
// place. Required misses latch the verdict to fail but evaluation
// continues so every rule produces exactly one diagnostic outcome.
func Evaluate(def Definition, events []trace.Event) *Report {
	r := &Report{Definition: def.Name, Title: def.Title, Pass: true}
	cursor := 0
	bound := map[string]string{}

	for _, rule := range def.Rules {
		idx := -1
		for j := cursor; j < len(events); j++ {
			if events[j].Kind == rule.Kind {
				idx = j
				break
			}
		}

		if idx < 0 {
			if rule.Optional {
				r.append(rule, StatusSkipped, "", fmt.Sprintf("no %s event in trace (optional)", rule.Kind), cursor)
				continue
			}
			r.Pass = false
			r.append(rule, StatusFail, FailNotFound, fmt.Sprintf("required %s event not found in trace", rule.Kind), cursor)
			continue
		}

		ev := events[idx]
		cursor = idx + 1

		if kind, detail := checkFields(rule, ev, bound); kind != "" {
			if !rule.Optional {
				r.Pass = false
			}
			r.append(rule, StatusFail, kind, detail, cursor)
			continue
		}

		for name, field := range rule.Bind {
			if v := ev.Field(field); v != "" {
				bound[name] = v
			}
		}
		r.append(rule, StatusPass, "", matchDetail(ev), cursor)
	}
	return r
}

// checkFields applies a rule's payload constraints to its candidate
// event. Returns the failure kind and diagnostic, or ("", "") on pass.
func checkFields(rule Rule, ev trace.Event, bound map[string]string) (FailureKind, string) {
	for _, c := range rule.Where {
		v := ev.Field(c.Field)
		if v == "" {
			if c.IfPresent {
				continue
			}
			if c.Present || c.Equals != "" || len(c.OneOf) > 0 || c.Ref != "" || c.PeerID || c.Addr != nil || c.ContentKey {
				return FailNotFound, fmt.Sprintf("%s event at line %d carries no %q field", ev.Kind, ev.Line, c.Field)
			}
			continue
		}
		if c.Equals != "" && v != c.Equals {
			return FailValueMismatch, fmt.Sprintf("field %q: expected %q, actual %q", c.Field, c.Equals, v)
		}
		if len(c.OneOf) > 0 && !contains(c.OneOf, v) {
			return FailValueMismatch, fmt.Sprintf("field %q: %q not among %v", c.Field, v, c.OneOf)
		}
		if c.Ref != "" {
			want, ok := bound[c.Ref]
			if !ok {
				return FailIdentifierMismatch, fmt.Sprintf("field %q references %q, which no earlier rule bound", c.Field, c.Ref)
			}
			if v != want {
				return FailIdentifierMismatch, fmt.Sprintf("field %q: expected %q, actual %q", c.Field, want, v)
			}
		}
		if c.PeerID {
			if _, err := token.ValidatePeerID(v); err != nil {
				return FailInvalidToken, err.Error()
			}
		}
		if c.Addr != nil {
			if _, err := token.ValidateMultiaddr(v, *c.Addr); err != nil {
				return FailInvalidToken, err.Error()
			}
		}
		if c.ContentKey {
			if err := token.ValidateContentKey(v); err != nil {
				return FailInvalidToken, err.Error()
			}
		}
	}
	return "", ""
}

func matchDetail(ev trace.Event) string {
	switch {
	case ev.Field("peer") != "":
		return fmt.Sprintf("%s at line %d (peer %s)", ev.Kind, ev.Line, ev.Field("peer"))
	case ev.Field("addr") != "":
		return fmt.Sprintf("%s at line %d (%s)", ev.Kind, ev.Line, ev.Field("addr"))
	case ev.Field("topic") != "":
		return fmt.Sprintf("%s at line %d (topic %s)", ev.Kind, ev.Line, ev.Field("topic"))
	case ev.Field("key") != "":
		return fmt.Sprintf("%s at line %d (key %s)", ev.Kind, ev.Line, ev.Field("key"))
	default:
		return fmt.Sprintf("%s at line %d", ev.Kind, ev.Line)
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
