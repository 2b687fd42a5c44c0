package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/discordlite/internal/auth"
)

func loginCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Discord through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if st := a.auth.RestoreSession(ctx); st.Authenticated() && !force {
				fmt.Println(styleOK.Render("Already logged in.") + " Use --force to sign in again.")
				return nil
			}

			st := a.auth.StartAuth(ctx)
			if st.Phase == auth.PhaseError {
				return loginError(st)
			}
			fmt.Fprintln(os.Stderr, styleMuted.Render(fmt.Sprintf("Waiting for sign-in (up to %s, Ctrl-C to cancel)...", a.cfg.PollTimeout())))

			st = a.auth.Wait(ctx)
			if ctx.Err() != nil {
				a.auth.CancelAuth()
				return ctx.Err()
			}
			switch st.Phase {
			case auth.PhaseAuthenticated:
				fmt.Println(styleOK.Render("Logged in."))
				return nil
			case auth.PhaseError:
				return loginError(st)
			default:
				return fmt.Errorf("login ended in state %s", st.Phase)
			}
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sign in even if a session is stored")
	return cmd
}

// loginError reports the user-facing reason; the cause is logged by then.
func loginError(st auth.State) error {
	return errors.New(st.Reason)
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}
			if _, err := a.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

type statusEntry struct {
	LoggedIn  bool       `json:"loggedIn"`
	Endpoint  string     `json:"endpoint"`
	Backend   string     `json:"secretsBackend"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.auth.RestoreSession(ctx)
			entry := statusEntry{
				LoggedIn: st.Authenticated(),
				Endpoint: a.client.URL(),
				Backend:  a.cfg.Secrets.Backend,
			}
			if st.Authenticated() {
				entry.ExpiresAt = st.Session.ExpiresAt
				if !st.Session.CreatedAt.IsZero() {
					created := st.Session.CreatedAt
					entry.CreatedAt = &created
				}
			}
			return printStatus(entry)
		},
	}
}

func printStatus(e statusEntry) error {
	if jsonOutput {
		data, _ := json.MarshalIndent(e, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	state := styleWarn.Render("not logged in")
	if e.LoggedIn {
		state = styleOK.Render("logged in")
	}
	fmt.Printf("  Session:  %s\n", state)
	fmt.Printf("  Gateway:  %s\n", e.Endpoint)
	fmt.Printf("  Secrets:  %s\n", e.Backend)
	if e.ExpiresAt != nil {
		fmt.Printf("  Expires:  %s\n", e.ExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}
