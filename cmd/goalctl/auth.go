package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"goaltracker/internal/auth"
	"goaltracker/internal/dashboard"
	"goaltracker/internal/session"
)

func loginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		name     string
		register bool
	)
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Sign in and store the session",
		Annotations: map[string]string{annotationPublic: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				email = strings.TrimSpace(line)
			}
			if password == "" {
				p, err := readPassword(cmd, in)
				if err != nil {
					return err
				}
				password = p
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			var (
				resp auth.TokenResponse
				err  error
			)
			if register {
				resp, err = a.client.Register(cmd.Context(), auth.Credentials{Email: email, Password: password, Name: name})
			} else {
				resp, err = a.client.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			if err := a.sessions.Save(session.Session{Token: resp.Token, User: resp.User}); err != nil {
				return err
			}
			a.log.Info("logged in", "user_id", resp.User.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", resp.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name for --register")
	cmd.Flags().BoolVar(&register, "register", false, "create the account first")
	return cmd
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Forget the stored session",
		Annotations: map[string]string{annotationPublic: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.sess.Token != "" {
				if err := a.client.Logout(cmd.Context()); err != nil {
					a.log.Warn("server logout failed", "err", err)
				}
			}
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if u.Name != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d)\n", u.Name, u.Email, u.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", u.Email, u.ID)
			}
			return nil
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise your goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListGoals(cmd.Context())
			if err != nil {
				return err
			}
			st := dashboard.Compute(list)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Goals:        %d\n", st.Total)
			fmt.Fprintf(out, "  completed:   %d\n", st.Completed)
			fmt.Fprintf(out, "  in progress: %d\n", st.InProgress)
			fmt.Fprintf(out, "  not started: %d\n", st.NotStarted)
			fmt.Fprintf(out, "Average:      %d%%\n", st.AverageProgress)
			fmt.Fprintf(out, "Done:         %d%%\n", st.CompletionRate())
			return nil
		},
	}
}
