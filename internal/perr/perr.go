// Package perr defines the fatal error kinds that repo2obj's pipeline can
// raise. Every error surfaced across a package boundary is one of these
// kinds so that cmd/repo2obj can print a single diagnostic line and exit
// non-zero without needing to pattern-match on message text.
package perr

import "github.com/pkg/errors"

// Kind is one of the closed set of fatal error categories.
type Kind int

const (
	IO Kind = iota
	Format
	Missing
	InvariantViolation
	Allocation
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Format:
		return "format"
	case Missing:
		return "missing"
	case InvariantViolation:
		return "invariant violation"
	case Allocation:
		return "allocation"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		// e.err is already msg-prefixed by errors.Wrap in Wrap; don't
		// prefix msg again here.
		return e.Kind.String() + ": " + e.err.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Cause lets github.com/pkg/errors.Cause walk past e to the wrapped
// failure.
func (e *Error) Cause() error { return e.err }

// New creates a Kind-tagged error with no wrapped cause.
func New(k Kind, msg string) error {
	return &Error{Kind: k, msg: msg}
}

// Wrap tags err with Kind k, preserving err as the cause via
// github.com/pkg/errors so that errors.Cause(err) still reaches the
// original failure.
func Wrap(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, msg: msg, err: errors.Wrap(err, msg)}
}

// Is reports whether the outermost *Error in err's chain (err itself or
// the first one it wraps) has kind k. A *Error of another kind nested
// inside that one is not consulted.
func Is(err error, k Kind) bool {
	var pe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			pe = e
			break
		}
		err = errors.Unwrap(err)
	}
	return pe != nil && pe.Kind == k
}
