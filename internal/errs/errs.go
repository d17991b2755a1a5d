// Package errs defines the typed error kinds the core uses to let callers
// branch on retriability without parsing error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error per the propagation policy.
type Kind string

const (
	// KindClient marks a caller contract violation: missing required
	// field, misaligned cache key, uninitialized client. Non-retriable.
	KindClient Kind = "client"
	// KindNetwork marks a retriable transport or timeout failure.
	KindNetwork Kind = "network"
	// KindParseResult marks a malformed or unexpected payload. Treated as
	// KindNetwork for retry purposes but carries the raw text.
	KindParseResult Kind = "parse_result"
	// KindParametersInvalid marks a non-200 exchange rejection. Carries
	// the HTTP status and body. Non-retriable unless the caller adjusts.
	KindParametersInvalid Kind = "parameters_invalid"
	// KindShutdown marks a cancellation that propagated into an in-flight
	// operation.
	KindShutdown Kind = "shutdown"
	// KindExternal wraps a collaborator error we cannot classify.
	KindExternal Kind = "external"
)

// Error is the core's typed error. Kind lets callers decide whether to
// retry; Err (if set) is the wrapped cause.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "wsclient.Call"
	Message string
	Status  int    // HTTP status, set only for KindParametersInvalid
	Body    string // raw response/frame text, set for KindParseResult/KindParametersInvalid
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.Shutdown) match any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil || t.Message != "" {
		return false // sentinel comparisons only compare Kind
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons, e.g. errors.Is(err, errs.Shutdown).
var (
	Shutdown          = &Error{Kind: KindShutdown}
	Network           = &Error{Kind: KindNetwork}
	Client            = &Error{Kind: KindClient}
	ParseResult       = &Error{Kind: KindParseResult}
	ParametersInvalid = &Error{Kind: KindParametersInvalid}
	External          = &Error{Kind: KindExternal}
)

// New builds a new *Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds a new *Error of the given kind wrapping cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// WrapStatus builds a KindParametersInvalid error carrying an HTTP status
// and response body.
func WrapStatus(op, message string, status int, body string) *Error {
	return &Error{Kind: KindParametersInvalid, Op: op, Message: message, Status: status, Body: body}
}

// KindOf extracts the Kind of err, defaulting to KindExternal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExternal
}

// Retriable reports whether an error's kind indicates the caller may retry.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindParseResult:
		return true
	default:
		return false
	}
}
