package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", chat.Errorf(chat.Unauthorized, "guilds.list", "token revoked"), "Session expired"},
		{"network", fmt.Errorf("load: %w", chat.Errorf(chat.NetworkError, "messages.list", "dial")), "Network error"},
		{"stream", chat.Errorf(chat.StreamFailed, "messages.stream", "stream ended"), "reattach"},
		{"invalid argument keeps detail", chat.Errorf(chat.InvalidArgument, "messages.list", "limit 0 out of range"), "limit 0 out of range"},
		{"unknown hides detail", chat.Errorf(chat.Unknown, "guilds.list", `{"raw":"payload"}`), "Something went wrong"},
		{"not logged in", errNotLoggedIn, "discordlite login"},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), "Cancelled."},
		{"plain", errors.New("read config: permission denied"), "read config: permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatError(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("formatError() = %q, want it to contain %q", got, tt.want)
			}
			if tt.name == "unknown hides detail" && strings.Contains(got, "payload") {
				t.Errorf("raw payload leaked: %q", got)
			}
		})
	}
}
