package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// errNotLoggedIn is returned by commands that need a stored session.
var errNotLoggedIn = chat.Errorf(chat.Unauthorized, "session.restore", "not logged in")

// formatError turns a command error into a line for the user. Raw gateway
// payloads are never shown; the full error is logged at debug level.
func formatError(err error) string {
	slog.Debug("command failed", "error", err)

	if errors.Is(err, context.Canceled) {
		return "Cancelled."
	}
	if errors.Is(err, errNotLoggedIn) {
		return "Not logged in. Run `discordlite login` first."
	}

	var ce *chat.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}

	switch ce.Kind {
	case chat.Unauthorized:
		return "Session expired. Please log in again."
	case chat.NetworkError:
		return "Network error. Please check your connection and that the gateway is reachable."
	case chat.StreamFailed:
		return "Live updates stopped. Run the command again to reattach."
	case chat.InvalidArgument:
		return err.Error()
	default:
		slog.Warn("unclassified error", "error", err)
		return "Something went wrong. Please try again."
	}
}
