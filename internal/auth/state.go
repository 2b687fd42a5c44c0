package auth

import (
	"fmt"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// Phase tags which variant a State holds.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the coordinator's auth state. Only the fields of the current
// Phase are set:
//   - PhaseAuthenticating: PendingRequestID
//   - PhaseAuthenticated: Session
//   - PhaseError: Reason (user-facing) and Err (cause, may be nil)
type State struct {
	Phase            Phase
	PendingRequestID string
	Session          chat.Session
	Reason           string
	Err              error
}

func unauthenticated() State {
	return State{Phase: PhaseUnauthenticated}
}

func authenticating(pendingRequestID string) State {
	return State{Phase: PhaseAuthenticating, PendingRequestID: pendingRequestID}
}

func authenticated(session chat.Session) State {
	return State{Phase: PhaseAuthenticated, Session: session}
}

func failed(reason string, err error) State {
	return State{Phase: PhaseError, Reason: reason, Err: err}
}

// Authenticated reports whether the state holds a session.
func (s State) Authenticated() bool { return s.Phase == PhaseAuthenticated }

func (s State) String() string {
	switch s.Phase {
	case PhaseAuthenticating:
		return fmt.Sprintf("authenticating(%s)", s.PendingRequestID)
	case PhaseAuthenticated:
		return fmt.Sprintf("authenticated(%s)", s.Session.ID)
	case PhaseError:
		return fmt.Sprintf("error(%s)", s.Reason)
	default:
		return s.Phase.String()
	}
}

// User-facing reasons carried by error states.
const (
	ReasonStartFailed = "Failed to start auth"
	ReasonLoginFailed = "Failed to login with discord, please try again later"
	ReasonTimedOut    = "Login timed out, please try again"
)
