// Package direrr defines the closed error taxonomy of spec §7: the kinds a
// Director API call can fail with, distinguishable by callers via Is rather
// than string matching.
package direrr

import (
	"errors"
	"fmt"
)

// Kind enumerates the user-facing failure modes of the Director API, plus
// the Shard-internal faults that terminate a Shard rather than surfacing
// to a caller.
type Kind int

const (
	// InvalidType: add() given neither Int nor List, or modify()'s
	// new_value is not an Int.
	InvalidType Kind = iota
	// OutOfMemory: add() cannot place all elements within max_per_slave.
	OutOfMemory
	// OutOfBounds: a list modify()'s index maps to no stripe.
	OutOfBounds
	// DoubleFree: free() called on an already-empty handle.
	DoubleFree
	// UnknownTag: a Shard received a tag outside the closed enumeration.
	// Fatal — the receiving Shard process aborts.
	UnknownTag
	// MissingName: MODIFY or READ against an unknown local name.
	MissingName
)

func (k Kind) String() string {
	switch k {
	case InvalidType:
		return "InvalidType"
	case OutOfMemory:
		return "OutOfMemory"
	case OutOfBounds:
		return "OutOfBounds"
	case DoubleFree:
		return "DoubleFree"
	case UnknownTag:
		return "UnknownTag"
	case MissingName:
		return "MissingName"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by the Director API. Kind
// identifies the taxonomy entry; Msg adds call-specific detail.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *direrr.Error of the given Kind, unwrapping
// through any wrapping (e.g. github.com/pkg/errors.Wrap) along the way.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
