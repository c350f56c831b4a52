package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of domain error variants. Everything the
// reconciliation engine can refuse falls into one of these; callers decide
// retry/skip behavior on the kind, never on message text.
type ErrorKind int

const (
	// KindPrecondition marks items that must not be touched at all: missing,
	// redirect, not bot-editable, malformed input. Fatal to the item.
	KindPrecondition ErrorKind = iota
	// KindAmbiguous marks deliberate refusals where guessing could produce a
	// silently wrong edit. Fatal to the item, needs human review.
	KindAmbiguous
	// KindTransient marks infrastructure failures (timeouts, maxlag) that a
	// later run may not hit.
	KindTransient
	// KindInvalid marks malformed values (bad dates, bad identifiers).
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindAmbiguous:
		return "ambiguous"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error is a domain error with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Preconditionf builds a precondition-violation error.
func Preconditionf(format string, args ...interface{}) error {
	return &Error{Kind: KindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Ambiguousf builds an ambiguity-refusal error.
func Ambiguousf(format string, args ...interface{}) error {
	return &Error{Kind: KindAmbiguous, Msg: fmt.Sprintf(format, args...)}
}

// Transientf builds a transient infrastructure error.
func Transientf(format string, args ...interface{}) error {
	return &Error{Kind: KindTransient, Msg: fmt.Sprintf(format, args...)}
}

// Invalidf builds a malformed-value error.
func Invalidf(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalid, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind; unclassified errors count as transient so
// the per-item loop never drops them into the permanent-error ledger by
// accident.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsTransient reports whether the error should be retried on a later run.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }
