// Package checkpoint evaluates an ordered rule sequence (a checkpoint
// definition) against the event sequence extracted from a node trace.
// Evaluation is deterministic and pure: it performs no I/O, and the
// same definition and events always produce the same report.
package checkpoint

import (
	"uclab.dev/conncheck/token"
	"uclab.dev/conncheck/trace"
)

// FieldCheck constrains one payload field of the event matched by a rule.
//
// Exactly one of the constraint forms is normally set. Ref names a
// variable bound by an earlier rule; the field must equal its value.
// IfPresent softens any constraint to apply only when the field is
// non-empty, which tolerates trace variants that omit the field.
type FieldCheck struct {
	Field string

	Present    bool
	Equals     string
	OneOf      []string
	Ref        string
	PeerID     bool
	Addr       *token.AddrConstraints
	ContentKey bool

	IfPresent bool
}

// Rule is one declarative expectation: an event kind, payload
// constraints, bindings it introduces for later rules, and whether its
// absence fails the run.
type Rule struct {
	// ID is a stable identifier for the expectation (e.g. CC-L03-R2).
	ID string

	Kind     trace.Kind
	Describe string
	Optional bool

	Where []FieldCheck

	// Bind maps variable names to payload field names. Variables bound
	// here are visible to Ref checks of later rules.
	Bind map[string]string
}

// Definition is the ordered rule collection for one lesson. Static
// configuration: built once, never mutated during evaluation.
type Definition struct {
	Name  string
	Title string
	Rules []Rule
}
