package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure for callers. Transport and storage failures are
// mapped into one of these at the component boundary.
type Kind int

const (
	// Unknown is an opaque failure; the detail is logged.
	Unknown Kind = iota
	// Unauthorized means the session is invalid or expired; re-authenticate.
	Unauthorized
	// NetworkError is transient; the caller may retry manually.
	NetworkError
	// InvalidArgument is a programmer error and not retryable.
	InvalidArgument
	// StreamFailed means a live subscription broke; the caller should reattach.
	StreamFailed
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case NetworkError:
		return "network error"
	case InvalidArgument:
		return "invalid argument"
	case StreamFailed:
		return "stream failed"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every component-facing API.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "messages.list"
	Message string // human-readable detail
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel errors below: a bare *Error (no op, message or
// cause) matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized    = &Error{Kind: Unauthorized}
	ErrNetwork         = &Error{Kind: NetworkError}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrStreamFailed    = &Error{Kind: StreamFailed}
	ErrUnknown         = &Error{Kind: Unknown}
)

// Errorf builds an *Error whose message is formatted from format and args.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and op to err. An err that already carries a kind
// keeps it.
func Wrap(kind Kind, op string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		kind = existing.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or Unknown when err is not an
// *Error. KindOf(nil) is Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
