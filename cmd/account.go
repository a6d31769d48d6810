package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/ui"
)

// readPassword returns flagValue, or prompts for a password without echo
// when stdin is a terminal.
func readPassword(flagValue, prompt string) string {
	if flagValue != "" {
		return flagValue
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		failf("--password is required when stdin is not a terminal")
	}
	fmt.Print(prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		failf("read password: %v", err)
	}
	return string(pw)
}

func registerCmd() *cobra.Command {
	var reg auth.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			reg.Password = readPassword(reg.Password, "  Password: ")
			u, _, err := a.auth.Register(cmd.Context(), reg)
			if err != nil {
				fail(err)
			}
			record("account.register", "", u.Email)
			ui.Notify(os.Stdout, ui.Success("welcome, %s %s", u.Name, u.LastName))
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "First name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("last-name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			password = readPassword(password, "  Password: ")
			u, _, err := a.auth.Login(cmd.Context(), email, password)
			if err != nil {
				fail(err)
			}
			record("account.login", "", u.Email)
			ui.Notify(os.Stdout, ui.Success("signed in as %s", u.Email))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			if err := a.auth.Logout(); err != nil {
				fail(err)
			}
			ui.Notify(os.Stdout, ui.Success("signed out"))
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			creds, err := a.auth.Whoami()
			if err != nil {
				fail(err)
			}
			u, err := a.auth.Get(cmd.Context(), creds.UID)
			if err != nil {
				// The token is valid but the account could not be read;
				// show what the credentials know.
				fmt.Printf("  %s  %s\n", creds.Email, ui.Subtle.Sprint(creds.UID))
				ui.Notify(os.Stderr, ui.FromError(err))
				return
			}
			name := strings.TrimSpace(u.Name + " " + u.LastName)
			fmt.Printf("  %s <%s>  %s\n", ui.Brand.Sprint(name), u.Email, ui.Subtle.Sprint(u.UID))
		},
	}
}
