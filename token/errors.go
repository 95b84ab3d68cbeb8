package token

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/Reason/RuleID rather than matching
// error strings; Error() text is for humans and may evolve.
type Kind string

const (
	KindPeerID     Kind = "PeerID"
	KindMultiaddr  Kind = "Multiaddr"
	KindContentKey Kind = "ContentKey"
)

// Reason names the first violated invariant.
type Reason string

const (
	ReasonPrefixMismatch   Reason = "PrefixMismatch"
	ReasonLengthOutOfRange Reason = "LengthOutOfRange"
	ReasonBadAlphabet      Reason = "BadAlphabet"
	ReasonUndecodable      Reason = "Undecodable"
	ReasonBadStructure     Reason = "BadStructure"
	ReasonMissingTransport Reason = "MissingTransport"
	ReasonCircuitRequired  Reason = "CircuitRequired"
	ReasonCircuitForbidden Reason = "CircuitForbidden"
	ReasonPeerIDRequired   Reason = "PeerIDRequired"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g., CC-TOK-001) naming the violated
// invariant. Char carries the first offending rune for BadAlphabet.
type Error struct {
	Kind    Kind
	Reason  Reason
	RuleID  string
	Message string
	Char    rune
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, reason Reason, ruleID, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, RuleID: ruleID, Message: msg}
}

// ReasonOf returns the Reason for a structured error, or "" if unknown.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Reason
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
