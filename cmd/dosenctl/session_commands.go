package main

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/spf13/cobra"
)

func (c *cli) newLoginCommand() *cobra.Command {
	var (
		username  string
		remember  bool
		biometric bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with username and password, or with the saved credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := c.loadApp()
			if err != nil {
				return err
			}

			if biometric {
				if err := a.Session.BiometricLogin(ctx); err != nil {
					return err
				}
			} else {
				if username == "" {
					if username, err = c.prompt("Username: "); err != nil {
						return err
					}
				}
				password, err := c.prompt("Password: ")
				if err != nil {
					return err
				}
				if err := a.Session.Login(ctx, username, password, remember); err != nil {
					return err
				}
			}

			name, err := a.Session.DisplayName(ctx)
			if err != nil {
				a.Logger.Debug().Err(err).Msg("dosenctl: no display name")
				name = "lecturer"
			}
			fmt.Fprintf(c.out, "Logged in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Save the credential for biometric login")
	cmd.Flags().BoolVar(&biometric, "biometric", false, "Log in with the saved credential after PIN verification")
	cmd.MarkFlagsMutuallyExclusive("biometric", "remember")
	return cmd
}

func (c *cli) newLogoutCommand() *cobra.Command {
	var opts session.LogoutOptions

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			if err := a.Session.Logout(commandContext(cmd), opts); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.ForgetCredential, "forget", false, "Also remove the saved credential")
	cmd.Flags().BoolVar(&opts.ClearProfile, "clear-profile", false, "Also remove the cached lecturer profile")
	return cmd
}

func (c *cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state and token lifetimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "State:            %s\n", a.Session.State())
			if record := a.Store.Snapshot(); record != nil {
				fmt.Fprintf(c.out, "Access expires:   %s\n", describeExpiry(record.AccessExpiresAt))
				fmt.Fprintf(c.out, "Refresh expires:  %s\n", describeExpiry(record.RefreshExpiresAt))
				fmt.Fprintf(c.out, "Last activity:    %s\n", record.LastActivityAt.Local().Format(time.RFC3339))
			}
			fmt.Fprintf(c.out, "Saved credential: %t\n", a.Vault.Has())
			fmt.Fprintf(c.out, "PIN gate:         %s\n", a.PIN.Status())
			return nil
		},
	}
}

func (c *cli) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the logged in lecturer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadApp()
			if err != nil {
				return err
			}
			claims, err := a.Session.Claims(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Name:     %s\n", claims.DisplayName())
			fmt.Fprintf(c.out, "Username: %s\n", claims.PreferredUsername)
			fmt.Fprintf(c.out, "Email:    %s\n", claims.Email)
			fmt.Fprintf(c.out, "Subject:  %s\n", claims.Subject)
			return nil
		},
	}
}

func describeExpiry(at time.Time) string {
	remaining := time.Until(at).Round(time.Second)
	if remaining <= 0 {
		return "expired " + at.Local().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s (in %s)", at.Local().Format(time.RFC3339), remaining)
}
