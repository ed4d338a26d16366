// Package errs implements the error taxonomy the execution core rejects
// actions with. Every domain failure returns a *Error with a Kind the
// caller can switch on. The few panics in the repository are for
// unrecoverable conditions (the system random source failing, SMT node
// arena overflow, Message called for an unsigned action kind), never for a
// domain failure.
package errs

import "fmt"

type Kind int

const (
	Validation Kind = iota
	Authentication
	PreconditionViolation
	Arithmetic
	ProofFailure
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case PreconditionViolation:
		return "precondition_violation"
	case Arithmetic:
		return "arithmetic"
	case ProofFailure:
		return "proof_failure"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, format, args...)
}

func Authf(format string, args ...any) *Error {
	return New(Authentication, format, args...)
}

func Preconditionf(format string, args ...any) *Error {
	return New(PreconditionViolation, format, args...)
}

func Arithmeticf(format string, args ...any) *Error {
	return New(Arithmetic, format, args...)
}

func Prooff(format string, args ...any) *Error {
	return New(ProofFailure, format, args...)
}

func Internalf(format string, args ...any) *Error {
	return New(Internal, format, args...)
}

// KindOf reports the Kind of err, defaulting to Internal for errors not
// produced by this package (which should not happen on any path that
// reaches the action dispatcher).
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return Internal
}
