package checkpoint

import (
	"fmt"
	"io"
)

// Status is the outcome of one rule.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// FailureKind classifies a rule failure for programmatic handling.
type FailureKind string

const (
	FailNotFound           FailureKind = "NotFound"
	FailInvalidToken       FailureKind = "InvalidToken"
	FailIdentifierMismatch FailureKind = "IdentifierMismatch"
	FailValueMismatch      FailureKind = "ValueMismatch"
)

// RuleOutcome is the evidence for one evaluated rule.
//
// Cursor records the scan position after the rule was evaluated; across
// one report the cursor sequence is non-decreasing.
type RuleOutcome struct {
	RuleID   string
	Kind     string
	Describe string
	Optional bool

	Status  Status
	Failure FailureKind
	Detail  string
	Cursor  int
}

// Report aggregates per-rule outcomes and the overall verdict. Created
// exactly once per evaluation and immutable thereafter; the verdict is
// the conjunction of all required rules' outcomes, optional outcomes are
// informational only.
type Report struct {
	Definition string
	Title      string
	Outcomes   []RuleOutcome
	Pass       bool
}

func (r *Report) append(rule Rule, st Status, fk FailureKind, detail string, cursor int) {
	r.Outcomes = append(r.Outcomes, RuleOutcome{
		RuleID:   rule.ID,
		Kind:     string(rule.Kind),
		Describe: rule.Describe,
		Optional: rule.Optional,
		Status:   st,
		Failure:  fk,
		Detail:   detail,
		Cursor:   cursor,
	})
}

// Counts returns satisfied and total required rules.
func (r *Report) Counts() (satisfied, required int) {
	for _, o := range r.Outcomes {
		if o.Optional {
			continue
		}
		required++
		if o.Status == StatusPass {
			satisfied++
		}
	}
	return satisfied, required
}

// Render writes one marker-prefixed line per rule outcome followed by a
// final summary line. Rendering is the only side-effecting step; the
// pipeline itself never prints.
func (r *Report) Render(w io.Writer) {
	for _, o := range r.Outcomes {
		marker := "✅"
		switch o.Status {
		case StatusFail:
			marker = "❌"
		case StatusSkipped:
			marker = "➖"
		}
		line := fmt.Sprintf("%s [%s] %s", marker, o.RuleID, o.Describe)
		if o.Detail != "" {
			line += ": " + o.Detail
		}
		fmt.Fprintln(w, line)
	}
	satisfied, required := r.Counts()
	if r.Pass {
		fmt.Fprintf(w, "PASS %s (%d/%d required rules satisfied)\n", r.Definition, satisfied, required)
	} else {
		fmt.Fprintf(w, "FAIL %s (%d/%d required rules satisfied)\n", r.Definition, satisfied, required)
	}
}
