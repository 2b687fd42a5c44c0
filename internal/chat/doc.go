// Package chat holds the data model shared by the session coordinator, the
// message sync engine and the gateway client: sessions, guilds, channels,
// messages and live message events, plus the error taxonomy every component
// reports failures in and the interfaces of the remote services.
//
// Remote services translate their transport failures into *Error values with
// one of the Kind constants. Callers branch on KindOf(err) or use errors.Is
// with the sentinel errors (ErrUnauthorized, ErrNetwork, ...), which match any
// *Error of the same kind.
package chat
