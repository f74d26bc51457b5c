package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwctl/gwctl/pkg/gwctl/auth"
	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/identity"
	"github.com/gwctl/gwctl/pkg/gwctl/output"
)

var errNotLoggedIn = errors.New("not logged in, run `gwctl auth login` first")

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the gateway API",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthLogoutCommand(),
		newAuthVerifyCommand(),
		newAuthStatusCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in through the browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiURL, err := rt.APIURL()
			if err != nil {
				return err
			}
			api, err := rt.APIClient()
			if err != nil {
				return err
			}
			validator, err := rt.Validator()
			if err != nil {
				return err
			}
			store, err := rt.CredentialStore()
			if err != nil {
				return err
			}
			orch, err := auth.NewOrchestrator(auth.Dependencies{
				API:       api,
				Validator: validator,
				Store:     store,
				Browser:   rt.Browser(),
				Out:       rt.Writer(),
				Logger:    rt.Logger(),
				Now:       rt.now,
				Sleep:     rt.sleep,
			}, apiURL)
			if err != nil {
				return err
			}

			outcome, err := orch.Login(cmd.Context())
			if err != nil {
				return fmt.Errorf("login %s: %w; run `gwctl auth login` to try again", outcome.State, err)
			}
			w := rt.Writer()
			if outcome.AlreadyAuthenticated {
				_, _ = fmt.Fprintln(w, "Already logged in.")
				_, _ = fmt.Fprintln(w, "Run `gwctl auth logout` first to log in with a different account.")
				return nil
			}
			_, _ = fmt.Fprintln(w, "Authentication successful.")
			if u := outcome.Credential.User; u != nil {
				_, _ = fmt.Fprintf(w, "Logged in as %s\n", u.Display())
			}
			if exp := outcome.Credential.ExpiresAt; exp != nil {
				left := time.Unix(*exp, 0).Sub(rt.now())
				_, _ = fmt.Fprintf(w, "Token expires in %s\n", output.FormatRemaining(left))
			}
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	var purgeKeys bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.CredentialStore()
			if err != nil {
				return err
			}
			removed, err := store.Clear()
			if err != nil {
				return err
			}
			if purgeKeys {
				cache, err := rt.KeyCache()
				if err != nil {
					return err
				}
				if err := cache.Clear(); err != nil {
					return err
				}
				rt.Logger().Debugw("Removed key set cache", "path", cache.Path())
			}
			if removed {
				_, _ = fmt.Fprintln(rt.Writer(), "Logged out.")
			} else {
				_, _ = fmt.Fprintln(rt.Writer(), "No stored credential.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purgeKeys, "purge-keys", false, "Also delete the cached signing keys")
	return cmd
}

func newAuthVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the stored token against the API's signing keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			apiURL, err := rt.APIURL()
			if err != nil {
				return err
			}
			store, err := rt.CredentialStore()
			if err != nil {
				return err
			}
			cred, err := store.Load()
			if err != nil {
				return err
			}
			if cred == nil {
				return errNotLoggedIn
			}
			validator, err := rt.Validator()
			if err != nil {
				return err
			}

			claims, err := validator.Validate(cmd.Context(), cred.Token, apiURL)
			if errdefs.Is(err, errdefs.KindKeyNotFound) {
				rt.Logger().Debugw("Signing key not cached, refreshing key set", "error", err)
				claims, err = validator.ValidateFresh(cmd.Context(), cred.Token, apiURL)
			}
			if err != nil {
				return fmt.Errorf("token verification failed: %w", err)
			}

			if format == output.FormatTable {
				_, _ = fmt.Fprintln(rt.Writer(), "Token is valid.")
				output.WriteClaims(rt.Writer(), claims, rt.now())
				return nil
			}
			return output.WriteObject(rt.Writer(), format, claims)
		},
	}
}

type authStatus struct {
	LoggedIn  bool               `json:"logged_in" yaml:"logged_in"`
	User      *identity.UserInfo `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool               `json:"expired" yaml:"expired"`
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a credential is stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			store, err := rt.CredentialStore()
			if err != nil {
				return err
			}
			cred, err := store.Load()
			if err != nil {
				return err
			}

			status := authStatus{LoggedIn: cred != nil}
			if cred != nil {
				status.User = cred.User
				if cred.ExpiresAt != nil {
					exp := time.Unix(*cred.ExpiresAt, 0).UTC()
					status.ExpiresAt = &exp
					status.Expired = !rt.now().Before(exp)
				}
			}
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, status)
			}

			w := rt.Writer()
			if !status.LoggedIn {
				_, _ = fmt.Fprintln(w, "Not logged in.")
				return nil
			}
			_, _ = fmt.Fprintln(w, "Logged in.")
			if status.User != nil {
				_, _ = fmt.Fprintf(w, "User: %s\n", status.User.Display())
			}
			switch {
			case status.ExpiresAt == nil:
				_, _ = fmt.Fprintln(w, "Expires: unknown")
			case status.Expired:
				_, _ = fmt.Fprintf(w, "Expired at %s, run `gwctl auth logout` then `gwctl auth login`\n", status.ExpiresAt.Format(time.RFC3339))
			default:
				_, _ = fmt.Fprintf(w, "Expires: %s (%s left)\n", status.ExpiresAt.Format(time.RFC3339), output.FormatRemaining(status.ExpiresAt.Sub(rt.now())))
			}
			return nil
		},
	}
}
