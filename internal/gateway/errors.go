package gateway

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

var errConnClosed = errors.New("gateway connection closed")

// serverError marks a failure the gateway reported in a response frame.
type serverError struct {
	code string
}

func (e *serverError) Error() string { return "code " + e.code }

// Reachable reports whether err was produced by the gateway itself, so the
// connection worked even though the call failed.
func Reachable(err error) bool {
	var se *serverError
	return errors.As(err, &se)
}

// kindForCode maps a protocol error code onto the client error taxonomy.
func kindForCode(code string) chat.Kind {
	switch code {
	case protocol.ErrUnauthorized, protocol.ErrForbidden:
		return chat.Unauthorized
	case protocol.ErrUnavailable, protocol.ErrDeadlineExceeded, protocol.ErrResourceExhausted:
		return chat.NetworkError
	case protocol.ErrInvalidRequest, protocol.ErrNotFound, protocol.ErrFailedPrecondition:
		return chat.InvalidArgument
	default:
		return chat.Unknown
	}
}

// responseError converts a failed response into a *chat.Error.
func responseError(method string, shape *protocol.ErrorShape) error {
	if shape == nil {
		return chat.Errorf(chat.Unknown, method, "request failed without error detail")
	}
	kind := kindForCode(shape.Code)
	if kind == chat.Unknown {
		slog.Warn("gateway returned unmapped error", "method", method, "code", shape.Code, "message", shape.Message)
	}
	msg := shape.Message
	if shape.Retryable && shape.RetryAfterMs > 0 {
		msg = fmt.Sprintf("%s (retry after %dms)", msg, shape.RetryAfterMs)
	}
	return &chat.Error{Kind: kind, Op: method, Message: msg, Err: &serverError{code: shape.Code}}
}

// networkError wraps a transport failure.
func networkError(op string, err error) error {
	return &chat.Error{Kind: chat.NetworkError, Op: op, Err: err}
}
